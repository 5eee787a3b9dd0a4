package jobs

import (
	"context"
	"fmt"

	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
)

// addHost provisions a host for the instance and wires it into the load
// balancer and the health registry. When no load balancer is supplied one is
// created, and only that one is destroyed on rollback: an existing balancer
// never belongs to the failed call.
func (r *Runner) addHost(ctx context.Context, name string, existing *types.LoadBalancer) error {
	cfg := r.deps.Config
	fleetLog := log.WithInstance(name)

	host, err := r.deps.Fleet.Hosts.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create host for %s: %w", name, err)
	}

	var createdLB *types.LoadBalancer
	err = func() error {
		if err := r.deps.Store.PutHost(host); err != nil {
			return fmt.Errorf("failed to record host %s: %w", host.DNSName, err)
		}
		lb := existing
		if lb == nil {
			lb, err = r.deps.Fleet.LBs.Create(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to create load balancer for %s: %w", name, err)
			}
			createdLB = lb
		}
		if err := r.deps.Fleet.LBs.AddHost(ctx, lb, host); err != nil {
			return fmt.Errorf("failed to attach host to load balancer: %w", err)
		}
		if err := r.deps.Prober.WaitHealthy(ctx, host.DNSName, cfg.HealthcheckTimeout); err != nil {
			return err
		}
		if err := r.deps.Health.CreateService(ctx, name); err != nil {
			return fmt.Errorf("failed to create healthcheck service: %w", err)
		}
		if err := r.deps.Health.AddURL(ctx, name, host.DNSName); err != nil {
			return fmt.Errorf("failed to register healthcheck url: %w", err)
		}
		return r.deps.Store.DeleteTask(name)
	}()
	if err == nil {
		return nil
	}

	if !cfg.RollbackOnError {
		return err
	}

	// Best-effort rollback. Each step runs regardless of the others and the
	// original error is the one returned.
	r.publish(events.EventRollbackAttempt, err.Error(), map[string]string{"instance": name})
	if createdLB != nil {
		if rbErr := r.deps.Fleet.LBs.Destroy(ctx, createdLB); rbErr != nil {
			fleetLog.Error().Err(rbErr).Msg("Error in rollback trying to destroy load balancer")
		}
	}
	if rbErr := r.deleteHost(ctx, host, nil); rbErr != nil {
		fleetLog.Error().Err(rbErr).Msg("Error in rollback trying to destroy host")
	}
	if rbErr := r.deps.Health.DestroyService(ctx, name); rbErr != nil {
		fleetLog.Error().Err(rbErr).Msg("Error in rollback trying to remove healthcheck")
	}
	return err
}

// deleteHost destroys a host and cleans up its registrations. When a load
// balancer is given the host is detached from it and its healthcheck URL
// removed.
func (r *Runner) deleteHost(ctx context.Context, host *types.Host, lb *types.LoadBalancer) error {
	if err := r.deps.Fleet.Hosts.Destroy(ctx, host); err != nil {
		return fmt.Errorf("failed to destroy host %s: %w", host.DNSName, err)
	}
	if lb != nil {
		if err := r.deps.Fleet.LBs.RemoveHost(ctx, lb, host); err != nil {
			return fmt.Errorf("failed to detach host from load balancer: %w", err)
		}
	}

	nodes, err := r.deps.Health.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list health registry nodes: %w", err)
	}
	for _, node := range nodes {
		if node.Address == host.DNSName {
			if err := r.deps.Health.RemoveNode(ctx, node.Name); err != nil {
				return fmt.Errorf("failed to remove node %s: %w", node.Name, err)
			}
		}
	}

	if lb != nil {
		if err := r.deps.Health.RemoveURL(ctx, lb.Name, host.DNSName); err != nil {
			return fmt.Errorf("failed to remove healthcheck url: %w", err)
		}
	}
	return r.deps.Store.DeleteHostByAddress(host.DNSName)
}

// handleInstanceProvision creates a new instance: one host behind a fresh
// load balancer.
func (r *Runner) handleInstanceProvision(ctx context.Context, payload InstanceProvisionPayload) error {
	if err := r.addHost(ctx, payload.Name, nil); err != nil {
		return err
	}

	instance := &types.Instance{
		Name:      payload.Name,
		PlanName:  payload.Plan,
		CreatedAt: r.deps.clock(),
	}
	if err := r.deps.Store.PutInstance(instance); err != nil {
		return fmt.Errorf("failed to record instance %s: %w", payload.Name, err)
	}

	r.publish(events.EventInstanceCreated, "", map[string]string{"instance": payload.Name})
	return nil
}

// handleInstanceRemoval tears an instance down: every member host, the load
// balancer and the healthcheck service.
func (r *Runner) handleInstanceRemoval(ctx context.Context, payload InstanceRemovalPayload) error {
	name := payload.Name
	lb, err := r.deps.Fleet.LBs.Find(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up load balancer for %s: %w", name, err)
	}
	if lb == nil {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}

	// Snapshot: deleting detaches hosts from the balancer as we go.
	hosts := append([]*types.Host(nil), lb.Hosts...)
	for _, host := range hosts {
		if err := r.deleteHost(ctx, host, lb); err != nil {
			return err
		}
	}
	if err := r.deps.Fleet.LBs.Destroy(ctx, lb); err != nil {
		return fmt.Errorf("failed to destroy load balancer for %s: %w", name, err)
	}
	if err := r.deps.Health.DestroyService(ctx, name); err != nil {
		return fmt.Errorf("failed to destroy healthcheck service for %s: %w", name, err)
	}
	if err := r.deps.Store.DeleteInstance(name); err != nil {
		return err
	}

	r.publish(events.EventInstanceRemoved, "", map[string]string{"instance": name})
	return nil
}

// handleInstanceScale drives the host pool to the requested quantity. The
// pending task for the instance is cleared when the handler exits, success
// or failure, so a failed scale never wedges the instance.
func (r *Runner) handleInstanceScale(ctx context.Context, payload InstanceScalePayload) (err error) {
	name := payload.Name
	defer func() {
		if clearErr := r.deps.Store.DeleteTask(name); clearErr != nil && err == nil {
			err = clearErr
		}
	}()

	lb, err := r.deps.Fleet.LBs.Find(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up load balancer for %s: %w", name, err)
	}
	if lb == nil {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}

	diff := payload.Quantity - len(lb.Hosts)
	if diff == 0 {
		return nil
	}

	if diff > 0 {
		for i := 0; i < diff; i++ {
			if err := r.addHost(ctx, name, lb); err != nil {
				return err
			}
		}
	} else {
		// Victims come from the front of the current host list.
		victims := append([]*types.Host(nil), lb.Hosts[:-diff]...)
		for _, host := range victims {
			if err := r.deleteHost(ctx, host, lb); err != nil {
				return err
			}
		}
	}

	r.publish(events.EventInstanceScaled, "", map[string]string{"instance": name})
	return nil
}
