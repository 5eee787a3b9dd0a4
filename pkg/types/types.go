package types

import (
	"encoding/json"
	"strings"
	"time"
)

// RestoreTaskPrefix prefixes the ID of every pending task created by the
// health sweep for a host awaiting restoration.
const RestoreTaskPrefix = "restore_"

// Instance represents a tenant's reverse-proxy deployment: one load balancer
// plus a pool of hosts. The name is unique and tenant-facing.
type Instance struct {
	Name      string    `json:"name"`
	PlanName  string    `json:"plan_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Host is a provisioned compute node. The Manager field records which host
// manager created it so a later restore goes through the same backend.
type Host struct {
	ID        string    `json:"id"`
	DNSName   string    `json:"dns_name"`
	Manager   string    `json:"manager"`
	Instance  string    `json:"instance"`
	CreatedAt time.Time `json:"created_at"`
}

// LoadBalancer groups the hosts of one instance for routing purposes. It does
// not own the hosts' provisioning lifecycle.
type LoadBalancer struct {
	Name  string  `json:"name"`
	Hosts []*Host `json:"hosts"`
}

// PendingTask is the durable marker that an async operation is in flight for
// a key. At most one exists per ID; its presence blocks conflicting
// operations on the same instance.
//
// Restore tasks are pending tasks whose ID carries RestoreTaskPrefix. They
// additionally fill Host, Instance and, after a failed restore attempt,
// LastAttempt.
type PendingTask struct {
	ID          string     `json:"id"`
	Host        string     `json:"host,omitempty"`
	Instance    string     `json:"instance,omitempty"`
	Created     time.Time  `json:"created"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
}

// IsRestore reports whether the task is a restore task.
func (t *PendingTask) IsRestore() bool {
	return strings.HasPrefix(t.ID, RestoreTaskPrefix)
}

// CertificateRecord tracks an issued certificate for renewal. It is
// re-created with a fresh Created timestamp on each renewal and deleted on
// explicit revoke.
type CertificateRecord struct {
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	Created     time.Time `json:"created"`
	Certificate []byte    `json:"certificate,omitempty"`
	Key         []byte    `json:"key,omitempty"`
	CSR         []byte    `json:"csr,omitempty"`
}

// Plan holds plan-specific configuration overrides merged over the base
// configuration when renewing an instance's certificate.
type Plan struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
}

// LockHandle identifies a held cluster-wide lock. It is a value: Extend
// returns a new handle with the new expiry rather than mutating state.
type LockHandle struct {
	Name   string    `json:"name"`
	Owner  string    `json:"owner"`
	Expiry time.Time `json:"expiry"`
}

// Job is a unit of asynchronous work pulled from the queue by the runner.
// Payload is handler-specific JSON.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}
