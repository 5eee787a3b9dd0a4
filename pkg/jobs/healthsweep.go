package jobs

import (
	"context"
	"errors"
	"strings"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/tasks"
	"github.com/cuemby/hutch/pkg/types"
)

// handleMachineHealthSweep walks the health registry's per-node report and
// keeps the restore task set in sync: a failing node gets a restore task, a
// recovered node loses it. Both directions are idempotent: re-detection of
// an already flagged node and removal of an already cleared one are silent.
func (r *Runner) handleMachineHealthSweep(ctx context.Context) error {
	cfg := r.deps.Config
	sweepLog := log.WithComponent("healthsweep")

	report, err := r.deps.Health.ServiceHealthcheck(ctx)
	if err != nil {
		return err
	}

	for _, entry := range report {
		address := entry.Node.Address
		if _, err := r.deps.Store.GetHostByAddress(address); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Likely a node mid-provisioning; not ours to restore.
				sweepLog.Error().Str("address", address).Msg("Machine not found, skipping")
				continue
			}
			return err
		}

		// The tag that is not the generic service name identifies the
		// owning instance.
		serviceInstance := cfg.ServiceName
		for _, tag := range entry.Service.Tags {
			if strings.Contains(tag, cfg.ServiceName) {
				continue
			}
			serviceInstance = tag
		}

		taskID := types.RestoreTaskPrefix + address
		if entry.Failing() {
			if err := r.deps.Tasks.EnsureReady(taskID); err == nil {
				task := &types.PendingTask{
					ID:       taskID,
					Host:     address,
					Instance: serviceInstance,
					Created:  r.deps.clock(),
				}
				if err := r.deps.Tasks.Create(task); err != nil {
					sweepLog.Error().Err(err).Str("address", address).Msg("Failed to create restore task")
				}
			}
		} else {
			if err := r.deps.Tasks.Remove(taskID); err != nil && !errors.Is(err, tasks.ErrTaskNotFound) {
				sweepLog.Error().Err(err).Str("address", address).Msg("Failed to remove restore task")
			}
		}
	}
	return nil
}
