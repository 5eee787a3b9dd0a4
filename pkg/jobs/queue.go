package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/types"
	"github.com/google/uuid"
)

// Job names understood by the runner. The API layer enqueues the first
// block; the scheduler enqueues the sweeps.
const (
	JobInstanceProvision       = "instance.provision"
	JobInstanceRemoval         = "instance.removal"
	JobInstanceScale           = "instance.scale"
	JobCertificateDownload     = "certificate.download"
	JobCertificateRevoke       = "certificate.revoke"
	JobMachineRestoreSweep     = "machine.restore_sweep"
	JobMachineHealthSweep      = "machine.health_sweep"
	JobCertificateRenewalSweep = "certificate.renewal_sweep"
)

// Queue is the job transport. The production deployment plugs in a durable
// at-least-once queue; MemoryQueue serves single-process deployments and
// tests. Results are never returned through the queue.
type Queue interface {
	Enqueue(ctx context.Context, job *types.Job) error

	// Dequeue blocks until a job is available or the context is done.
	Dequeue(ctx context.Context) (*types.Job, error)
}

// MemoryQueue is an in-process buffered queue.
type MemoryQueue struct {
	ch chan *types.Job
}

// NewMemoryQueue creates a queue with the given buffer size.
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan *types.Job, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *types.Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*types.Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewJob builds a job with a fresh ID and marshaled payload.
func NewJob(name string, payload interface{}) (*types.Job, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload for %s: %w", name, err)
		}
		raw = data
	}
	return &types.Job{
		ID:         uuid.New().String(),
		Name:       name,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Handler payloads.

// InstanceProvisionPayload provisions a new instance: one host plus a fresh
// load balancer. Plan optionally names the service plan whose configuration
// is honored on certificate renewal.
type InstanceProvisionPayload struct {
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

// InstanceRemovalPayload tears an instance down.
type InstanceRemovalPayload struct {
	Name string `json:"name"`
}

// InstanceScalePayload scales an instance's host pool to Quantity.
type InstanceScalePayload struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// CertificateDownloadPayload issues a certificate through the named
// authority. ConfigOverrides carries plan-specific configuration applied
// over the worker's base config for this job only.
type CertificateDownloadPayload struct {
	Name            string            `json:"name"`
	Authority       string            `json:"authority"`
	CSR             []byte            `json:"csr"`
	Key             []byte            `json:"key"`
	Domain          string            `json:"domain"`
	ConfigOverrides map[string]string `json:"config_overrides,omitempty"`
}

// CertificateRevokePayload revokes an instance's certificate.
type CertificateRevokePayload struct {
	Name      string `json:"name"`
	Authority string `json:"authority"`
	Domain    string `json:"domain"`
}
