package storage

import (
	"errors"
	"time"

	"github.com/cuemby/hutch/pkg/types"
)

// ErrNotFound is returned by Get operations when no record exists for the
// given key.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for durable shared state. All mutations are
// single-record upserts or deletes, atomic at the store level; no
// multi-record transactions are used.
type Store interface {
	// Pending tasks
	PutTask(task *types.PendingTask) error
	GetTask(id string) (*types.PendingTask, error)
	ListTasks() ([]*types.PendingTask, error)
	DeleteTask(id string) error

	// Certificates
	PutCertificate(cert *types.CertificateRecord) error
	GetCertificate(name string) (*types.CertificateRecord, error)
	ListCertificates() ([]*types.CertificateRecord, error)
	DeleteCertificate(name string) error

	// Hosts
	PutHost(host *types.Host) error
	GetHostByAddress(address string) (*types.Host, error)
	ListHosts() ([]*types.Host, error)
	DeleteHostByAddress(address string) error

	// Instances
	PutInstance(instance *types.Instance) error
	GetInstance(name string) (*types.Instance, error)
	DeleteInstance(name string) error

	// Plans
	PutPlan(plan *types.Plan) error
	GetPlan(name string) (*types.Plan, error)

	// Locks. TryAcquireLock succeeds when no lock record exists for the name
	// or the existing record has expired relative to now. UpdateLockExpiry
	// and ReleaseLock fail unless the named lock is held by owner.
	TryAcquireLock(name, owner string, now, expiry time.Time) (bool, error)
	UpdateLockExpiry(name, owner string, expiry time.Time) error
	ReleaseLock(name, owner string) error

	// Utility
	Close() error
}
