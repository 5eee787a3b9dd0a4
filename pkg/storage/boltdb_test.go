package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTaskCRUD(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTask("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	task := &types.PendingTask{
		ID:      "restore_10.0.0.1",
		Host:    "10.0.0.1",
		Created: time.Now().UTC(),
	}
	require.NoError(t, store.PutTask(task))

	got, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Host, got.Host)
	assert.Nil(t, got.LastAttempt)

	all, err := store.ListTasks()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteTask(task.ID))
	_, err = store.GetTask(task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent task is not an error at the store level.
	assert.NoError(t, store.DeleteTask(task.ID))
}

func TestTaskLastAttemptRoundTrip(t *testing.T) {
	store := newTestStore(t)

	attempt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &types.PendingTask{
		ID:          "restore_10.0.0.2",
		Host:        "10.0.0.2",
		Instance:    "myinstance",
		Created:     attempt.Add(-time.Hour),
		LastAttempt: &attempt,
	}
	require.NoError(t, store.PutTask(task))

	got, err := store.GetTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastAttempt)
	assert.True(t, got.LastAttempt.Equal(attempt))
}

func TestCertificateCRUD(t *testing.T) {
	store := newTestStore(t)

	cert := &types.CertificateRecord{
		Name:        "myinstance",
		Domain:      "example.com",
		Created:     time.Now().UTC(),
		Certificate: []byte("cert-pem"),
		Key:         []byte("key-pem"),
		CSR:         []byte("csr-pem"),
	}
	require.NoError(t, store.PutCertificate(cert))

	got, err := store.GetCertificate("myinstance")
	require.NoError(t, err)
	assert.Equal(t, "example.com", got.Domain)
	assert.Equal(t, []byte("cert-pem"), got.Certificate)

	all, err := store.ListCertificates()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteCertificate("myinstance"))
	_, err = store.GetCertificate("myinstance")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHostKeyedByAddress(t *testing.T) {
	store := newTestStore(t)

	host := &types.Host{
		ID:       "abc",
		DNSName:  "10.0.0.5",
		Manager:  "noop",
		Instance: "myinstance",
	}
	require.NoError(t, store.PutHost(host))

	got, err := store.GetHostByAddress("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "noop", got.Manager)
	assert.Equal(t, "myinstance", got.Instance)

	hosts, err := store.ListHosts()
	require.NoError(t, err)
	assert.Len(t, hosts, 1)

	require.NoError(t, store.DeleteHostByAddress("10.0.0.5"))
	_, err = store.GetHostByAddress("10.0.0.5")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInstanceAndPlanCRUD(t *testing.T) {
	store := newTestStore(t)

	instance := &types.Instance{Name: "myinstance", PlanName: "huge"}
	require.NoError(t, store.PutInstance(instance))

	got, err := store.GetInstance("myinstance")
	require.NoError(t, err)
	assert.Equal(t, "huge", got.PlanName)

	plan := &types.Plan{Name: "huge", Config: map[string]string{"RPAAS_SERVICE_NAME": "rpaas-huge"}}
	require.NoError(t, store.PutPlan(plan))

	gotPlan, err := store.GetPlan("huge")
	require.NoError(t, err)
	assert.Equal(t, "rpaas-huge", gotPlan.Config["RPAAS_SERVICE_NAME"])

	require.NoError(t, store.DeleteInstance("myinstance"))
	_, err = store.GetInstance("myinstance")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockAcquireContention(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	acquired, err := store.TryAcquireLock("restore_lock", "owner-1", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second owner is refused while the lock is live.
	acquired, err = store.TryAcquireLock("restore_lock", "owner-2", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, acquired)

	// A different name is an independent lock.
	acquired, err = store.TryAcquireLock("other_lock", "owner-2", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLockExpiryRecovery(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	acquired, err := store.TryAcquireLock("restore_lock", "owner-1", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, acquired)

	// After expiry the lock is free for a new owner.
	later := now.Add(2 * time.Minute)
	acquired, err = store.TryAcquireLock("restore_lock", "owner-2", later, later.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLockOwnerGuards(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	acquired, err := store.TryAcquireLock("restore_lock", "owner-1", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, acquired)

	assert.Error(t, store.UpdateLockExpiry("restore_lock", "owner-2", now.Add(time.Hour)))
	assert.Error(t, store.ReleaseLock("restore_lock", "owner-2"))

	require.NoError(t, store.UpdateLockExpiry("restore_lock", "owner-1", now.Add(time.Hour)))
	require.NoError(t, store.ReleaseLock("restore_lock", "owner-1"))

	// Released means re-acquirable.
	acquired, err = store.TryAcquireLock("restore_lock", "owner-3", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestReleaseMissingLock(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.ReleaseLock("nope", "owner-1"), ErrNotFound)
	assert.ErrorIs(t, store.UpdateLockExpiry("nope", "owner-1", time.Now()), ErrNotFound)
}
