package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/fleet"
	"github.com/cuemby/hutch/pkg/lock"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/rs/zerolog"
)

// restoreLockMargin pads the lock timeout beyond the healthcheck timeout so
// a restore that uses the full health wait cannot outlive the lock.
const restoreLockMargin = 60 * time.Second

// handleMachineRestoreSweep restores the machines flagged by the health
// sweep, under a cluster-wide lock so only one worker drives restores at a
// time. After each task the lock is extended by the elapsed processing
// time. Any failure stamps the task's last_attempt, releases the lock and
// aborts the sweep; the next scheduled tick picks up where it left off.
func (r *Runner) handleMachineRestoreSweep(ctx context.Context) error {
	cfg := r.deps.Config
	sweepLog := log.WithComponent("restore")

	handle, err := r.deps.Locks.Acquire(cfg.RestoreLockName, cfg.HealthcheckTimeout+restoreLockMargin)
	if errors.Is(err, lock.ErrLockUnavailable) {
		metrics.RestoreSweepSkipped.Inc()
		sweepLog.Debug().Msg("Restore lock held elsewhere, skipping this tick")
		return nil
	}
	if err != nil {
		return err
	}

	cutoff := r.deps.clock().Add(-cfg.RestoreMachineDelay)
	eligible, err := r.deps.Tasks.EligibleRestoreTasks(cutoff)
	if err != nil {
		r.releaseLock(handle, sweepLog)
		return err
	}

	for _, task := range eligible {
		start := r.deps.clock()

		if err := r.restoreMachine(ctx, task.ID); err != nil {
			if stampErr := r.deps.Tasks.Update(task.ID, r.deps.clock()); stampErr != nil {
				sweepLog.Error().Err(stampErr).Str("task", task.ID).Msg("Failed to stamp restore attempt")
			}
			r.releaseLock(handle, sweepLog)
			metrics.RestoresTotal.WithLabelValues("failure").Inc()
			r.publish(events.EventRestoreFailed, err.Error(), map[string]string{
				"host":     task.Host,
				"instance": task.Instance,
			})
			return err
		}

		// The task is already restored and cleared here; only the failed
		// restore branch stamps an attempt.
		elapsed := r.deps.clock().Sub(start)
		handle, err = r.deps.Locks.Extend(handle, elapsed)
		if err != nil {
			r.releaseLock(handle, sweepLog)
			return err
		}
	}

	return r.deps.Locks.Release(handle)
}

// restoreMachine restores one flagged host, identified by its restore task
// ID. The task is re-read under the lock so a concurrent health sweep
// removal is observed.
func (r *Runner) restoreMachine(ctx context.Context, taskID string) error {
	cfg := r.deps.Config
	task, err := r.deps.Store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("failed to load restore task %s: %w", taskID, err)
	}

	failed, err := r.deps.Tasks.FailureInstances(cfg.RestoreMachineFailureDelay, r.deps.clock())
	if err != nil {
		return err
	}
	if failed[task.Instance] {
		instLog := log.WithInstance(task.Instance)
		instLog.Debug().
			Str("host", task.Host).
			Msg("Instance in failure backoff window, skipping restore")
		return nil
	}

	hostRec, err := r.deps.Store.GetHostByAddress(task.Host)
	if err != nil {
		return fmt.Errorf("failed to resolve host %s: %w", task.Host, err)
	}

	if !cfg.RestoreMachineDryMode {
		manager, err := fleet.HostManagerByName(hostRec.Manager)
		if err != nil {
			return err
		}
		if err := manager.Restore(ctx, hostRec); err != nil {
			return fmt.Errorf("failed to restore host %s: %w", task.Host, err)
		}
		if err := r.deps.Prober.WaitHealthy(ctx, task.Host, cfg.HealthcheckTimeout); err != nil {
			return err
		}
	}

	if err := r.deps.Store.DeleteTask(task.ID); err != nil {
		return err
	}

	metrics.RestoresTotal.WithLabelValues("success").Inc()
	r.publish(events.EventMachineRestored, "", map[string]string{
		"host":     task.Host,
		"instance": task.Instance,
	})
	return nil
}

// releaseLock releases on the failure path without masking the original
// error.
func (r *Runner) releaseLock(handle types.LockHandle, sweepLog zerolog.Logger) {
	if err := r.deps.Locks.Release(handle); err != nil {
		sweepLog.Error().Err(err).Str("lock", handle.Name).Msg("Failed to release restore lock")
	}
}
