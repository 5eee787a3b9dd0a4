package tasks

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

var (
	// ErrAlreadyRunning means a conflicting async task is still in flight
	// for the key.
	ErrAlreadyRunning = errors.New("async task still running")

	// ErrTaskNotFound means a removal was requested for a task that does
	// not exist. Remove never silently succeeds on absent tasks; callers
	// that tolerate absence must check for this error explicitly.
	ErrTaskNotFound = errors.New("task not found")
)

// Manager is the task registry: the gate enforcing at-most-one in-flight
// async operation per key.
type Manager struct {
	store storage.Store
}

// NewManager creates a task registry over the given store.
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// EnsureReady fails with ErrAlreadyRunning when a pending task exists for
// the key. It never creates a record.
func (m *Manager) EnsureReady(id string) error {
	_, err := m.store.GetTask(id)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Create inserts a pending task. Duplicate detection is the caller's
// responsibility: call EnsureReady first.
func (m *Manager) Create(task *types.PendingTask) error {
	return m.store.PutTask(task)
}

// Remove deletes the pending task for the key. Removing an absent task is a
// programming error upstream, surfaced as ErrTaskNotFound.
func (m *Manager) Remove(id string) error {
	err := m.EnsureReady(id)
	if errors.Is(err, ErrAlreadyRunning) {
		return m.store.DeleteTask(id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// Update stamps the last restore attempt on an existing task, putting its
// instance into the failure backoff window.
func (m *Manager) Update(id string, lastAttempt time.Time) error {
	task, err := m.store.GetTask(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return err
	}
	task.LastAttempt = &lastAttempt
	return m.store.PutTask(task)
}

// EligibleRestoreTasks returns the restore tasks created at or before the
// cutoff, oldest first is not guaranteed.
func (m *Manager) EligibleRestoreTasks(cutoff time.Time) ([]*types.PendingTask, error) {
	all, err := m.store.ListTasks()
	if err != nil {
		return nil, err
	}
	var out []*types.PendingTask
	for _, task := range all {
		if task.IsRestore() && !task.Created.After(cutoff) {
			out = append(out, task)
		}
	}
	return out, nil
}

// FailureInstances returns the set of instances whose restore tasks carry a
// last_attempt still inside the failure delay window. Restores for those
// instances are suppressed until the window elapses.
func (m *Manager) FailureInstances(failureDelay time.Duration, now time.Time) (map[string]bool, error) {
	all, err := m.store.ListTasks()
	if err != nil {
		return nil, err
	}
	failed := make(map[string]bool)
	for _, task := range all {
		if !task.IsRestore() || task.LastAttempt == nil {
			continue
		}
		if !task.LastAttempt.Add(failureDelay).Before(now) {
			failed[task.Instance] = true
		}
	}
	return failed, nil
}
