package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/certs"
	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/fleet"
	"github.com/cuemby/hutch/pkg/health"
	"github.com/cuemby/hutch/pkg/healthreg"
	"github.com/cuemby/hutch/pkg/lock"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/tasks"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/google/uuid"
)

// ErrInstanceNotFound means the operation's target instance does not exist.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrUnknownJob means the dequeued job has no registered handler.
var ErrUnknownJob = errors.New("unknown job")

// Deps bundles the collaborators every handler may need. The runner is
// explicitly constructed with them; there is no process-wide singleton.
type Deps struct {
	Config *config.Config
	Store  storage.Store
	Tasks  *tasks.Manager
	Locks  lock.Service
	Fleet  *fleet.Provisioner
	Health healthreg.Registry
	Prober *health.Prober
	Certs  *certs.Registry
	Events *events.Broker
	Queue  Queue

	// now is swappable for tests.
	now func() time.Time
}

func (d *Deps) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now().UTC()
}

// HandlerFunc executes one job payload to completion.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Runner dispatches dequeued jobs to their handlers from a pool of workers.
// Job results are ignored by submitters; failures are logged, counted and
// published to the event broker.
type Runner struct {
	deps     *Deps
	workers  int
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
}

// NewRunner creates a runner with the built-in handler set registered.
func NewRunner(deps *Deps, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	r := &Runner{
		deps:     deps,
		workers:  workers,
		handlers: make(map[string]HandlerFunc),
	}
	r.handlers[JobInstanceProvision] = typed(r.handleInstanceProvision)
	r.handlers[JobInstanceRemoval] = typed(r.handleInstanceRemoval)
	r.handlers[JobInstanceScale] = typed(r.handleInstanceScale)
	r.handlers[JobCertificateDownload] = typed(r.handleCertificateDownload)
	r.handlers[JobCertificateRevoke] = typed(r.handleCertificateRevoke)
	r.handlers[JobMachineRestoreSweep] = untyped(r.handleMachineRestoreSweep)
	r.handlers[JobMachineHealthSweep] = untyped(r.handleMachineHealthSweep)
	r.handlers[JobCertificateRenewalSweep] = untyped(r.handleCertificateRenewalSweep)
	return r
}

// typed adapts a handler taking a concrete payload struct.
func typed[P any](fn func(ctx context.Context, payload P) error) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) error {
		var payload P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}
		return fn(ctx, payload)
	}
}

// untyped adapts a payload-less handler.
func untyped(fn func(ctx context.Context) error) HandlerFunc {
	return func(ctx context.Context, _ json.RawMessage) error {
		return fn(ctx)
	}
}

// Run starts the worker pool and blocks until the context is done.
func (r *Runner) Run(ctx context.Context) {
	runnerLog := log.WithComponent("runner")
	runnerLog.Info().Int("workers", r.workers).Msg("Starting job runner")

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	r.wg.Wait()
	runnerLog.Info().Msg("Job runner stopped")
}

// worker pulls jobs until the context is canceled.
func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		job, err := r.deps.Queue.Dequeue(ctx)
		if err != nil {
			return
		}
		r.process(ctx, job)
	}
}

// process runs one job and records its outcome. Errors never propagate to
// the submitter; the queue's at-least-once redelivery plus the pending task
// records cover recovery.
func (r *Runner) process(ctx context.Context, job *types.Job) {
	jobLog := log.WithJobID(job.ID)
	timer := metrics.NewTimer()

	handler, ok := r.handlers[job.Name]
	if !ok {
		jobLog.Error().Str("job", job.Name).Msg("No handler registered for job")
		metrics.JobsFailedTotal.WithLabelValues(job.Name).Inc()
		return
	}

	jobLog.Debug().Str("job", job.Name).Msg("Dispatching job")
	err := handler(ctx, job.Payload)
	timer.ObserveDuration(metrics.JobDuration.WithLabelValues(job.Name))
	metrics.JobsProcessedTotal.WithLabelValues(job.Name).Inc()

	if err != nil {
		metrics.JobsFailedTotal.WithLabelValues(job.Name).Inc()
		jobLog.Error().Err(err).Str("job", job.Name).Msg("Job failed")
		r.publish(events.EventJobFailed, err.Error(), map[string]string{
			"job_id": job.ID,
			"job":    job.Name,
		})
		return
	}

	r.publish(events.EventJobCompleted, "", map[string]string{
		"job_id": job.ID,
		"job":    job.Name,
	})
}

// Handle runs a single job synchronously. The scheduler and tests use it;
// queue consumers go through Run.
func (r *Runner) Handle(ctx context.Context, job *types.Job) error {
	handler, ok := r.handlers[job.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}
	return handler(ctx, job.Payload)
}

// publish emits an event when a broker is configured.
func (r *Runner) publish(eventType events.EventType, message string, metadata map[string]string) {
	if r.deps.Events == nil {
		return
	}
	r.deps.Events.Publish(&events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: r.deps.clock(),
		Message:   message,
		Metadata:  metadata,
	})
}
