package lock

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/google/uuid"
)

// ErrLockUnavailable means the named lock is currently held elsewhere.
// Acquire is non-blocking: callers are expected to skip their tick.
var ErrLockUnavailable = errors.New("lock is held elsewhere")

// Service provides named, timed, extendable mutual-exclusion locks shared
// across workers. Locks auto-expire; a crashed holder is recovered by expiry.
type Service interface {
	// Acquire takes the named lock for ttl, failing fast with
	// ErrLockUnavailable when it is held. The returned handle is a value;
	// pass it to Extend and Release.
	Acquire(name string, ttl time.Duration) (types.LockHandle, error)

	// Extend pushes the lock's expiry out by extra and returns the updated
	// handle.
	Extend(handle types.LockHandle, extra time.Duration) (types.LockHandle, error)

	// Release frees the lock.
	Release(handle types.LockHandle) error
}

// StoreService implements Service over the shared durable store.
type StoreService struct {
	store storage.Store
	now   func() time.Time
}

// NewStoreService creates a lock service backed by the given store.
func NewStoreService(store storage.Store) *StoreService {
	return &StoreService{store: store, now: time.Now}
}

func (s *StoreService) Acquire(name string, ttl time.Duration) (types.LockHandle, error) {
	owner := uuid.New().String()
	now := s.now()
	expiry := now.Add(ttl)
	acquired, err := s.store.TryAcquireLock(name, owner, now, expiry)
	if err != nil {
		return types.LockHandle{}, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !acquired {
		return types.LockHandle{}, fmt.Errorf("%w: %s", ErrLockUnavailable, name)
	}
	return types.LockHandle{Name: name, Owner: owner, Expiry: expiry}, nil
}

func (s *StoreService) Extend(handle types.LockHandle, extra time.Duration) (types.LockHandle, error) {
	expiry := handle.Expiry.Add(extra)
	if err := s.store.UpdateLockExpiry(handle.Name, handle.Owner, expiry); err != nil {
		return handle, fmt.Errorf("failed to extend lock %s: %w", handle.Name, err)
	}
	handle.Expiry = expiry
	return handle, nil
}

func (s *StoreService) Release(handle types.LockHandle) error {
	if err := s.store.ReleaseLock(handle.Name, handle.Owner); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", handle.Name, err)
	}
	return nil
}
