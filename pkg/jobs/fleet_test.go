package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/healthreg"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

func TestProvisionCreatesHostAndBalancer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Simulate the API layer's pending task gate.
	require.NoError(t, env.tasks.Create(&types.PendingTask{ID: "myinstance", Created: testNow}))

	err := env.runner.handleInstanceProvision(ctx, InstanceProvisionPayload{Name: "myinstance", Plan: "huge"})
	require.NoError(t, err)

	lb, err := env.lbs.Find(ctx, "myinstance")
	require.NoError(t, err)
	require.NotNil(t, lb)
	require.Len(t, lb.Hosts, 1)

	// The host is recorded by address for later health sweeps.
	host, err := env.store.GetHostByAddress(lb.Hosts[0].DNSName)
	require.NoError(t, err)
	assert.Equal(t, "myinstance", host.Instance)

	// Healthcheck service and member URL registered.
	assert.Equal(t, []string{"myinstance"}, env.registry.createdServices)
	assert.Equal(t, []string{lb.Hosts[0].DNSName}, env.registry.addedURLs)

	// Instance record carries the plan, and the gate is cleared.
	instance, err := env.store.GetInstance("myinstance")
	require.NoError(t, err)
	assert.Equal(t, "huge", instance.PlanName)
	assert.False(t, env.taskExists(t, "myinstance"))
}

func TestProvisionRollbackDestroysCreatedResources(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RollbackOnError = true
	env.lbs.addHostErr = errBoom

	err := env.runner.handleInstanceProvision(context.Background(), InstanceProvisionPayload{Name: "myinstance"})
	require.ErrorIs(t, err, errBoom)

	// The load balancer created by this call is destroyed, the host torn
	// down and its record removed, and the healthcheck service dropped.
	assert.Equal(t, []string{"myinstance"}, env.lbs.destroyed)
	assert.Equal(t, []string{"10.0.0.1"}, env.hosts.destroyed)
	assert.Equal(t, []string{"myinstance"}, env.registry.destroyedServices)
	_, err = env.store.GetHostByAddress("10.0.0.1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// No instance record was written.
	_, err = env.store.GetInstance("myinstance")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// failingPutHostStore rejects host record writes; everything else passes
// through.
type failingPutHostStore struct {
	storage.Store
}

func (s failingPutHostStore) PutHost(host *types.Host) error { return errBoom }

func TestProvisionRollbackOnHostRecordFailure(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RollbackOnError = true
	env.runner.deps.Store = failingPutHostStore{env.store}

	err := env.runner.handleInstanceProvision(context.Background(), InstanceProvisionPayload{Name: "myinstance"})
	require.ErrorIs(t, err, errBoom)

	// The freshly created host does not survive the failed call even when
	// the failure hits before any balancer work.
	assert.Equal(t, []string{"10.0.0.1"}, env.hosts.destroyed)
	assert.Empty(t, env.lbs.destroyed)
	assert.Equal(t, []string{"myinstance"}, env.registry.destroyedServices)
}

func TestProvisionRollbackDisabledLeavesResources(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RollbackOnError = false
	env.lbs.addHostErr = errBoom

	err := env.runner.handleInstanceProvision(context.Background(), InstanceProvisionPayload{Name: "myinstance"})
	require.ErrorIs(t, err, errBoom)

	assert.Empty(t, env.lbs.destroyed)
	assert.Empty(t, env.hosts.destroyed)

	// The host record survives for manual cleanup.
	_, err = env.store.GetHostByAddress("10.0.0.1")
	assert.NoError(t, err)
}

func TestProvisionTaskSurvivesFailure(t *testing.T) {
	env := newTestEnv(t)
	env.lbs.addHostErr = errBoom
	require.NoError(t, env.tasks.Create(&types.PendingTask{ID: "myinstance", Created: testNow}))

	err := env.runner.handleInstanceProvision(context.Background(), InstanceProvisionPayload{Name: "myinstance"})
	require.Error(t, err)

	// The gate stays shut on failure; only a successful provision opens it.
	assert.True(t, env.taskExists(t, "myinstance"))
}

func TestRemovalTearsDownEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.runner.handleInstanceProvision(ctx, InstanceProvisionPayload{Name: "myinstance"}))
	require.NoError(t, env.runner.handleInstanceScale(ctx, InstanceScalePayload{Name: "myinstance", Quantity: 3}))

	err := env.runner.handleInstanceRemoval(ctx, InstanceRemovalPayload{Name: "myinstance"})
	require.NoError(t, err)

	lb, err := env.lbs.Find(ctx, "myinstance")
	require.NoError(t, err)
	assert.Nil(t, lb)
	assert.Len(t, env.hosts.destroyed, 3)
	assert.Contains(t, env.registry.destroyedServices, "myinstance")

	hosts, err := env.store.ListHosts()
	require.NoError(t, err)
	assert.Empty(t, hosts)

	_, err = env.store.GetInstance("myinstance")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemovalMissingInstance(t *testing.T) {
	env := newTestEnv(t)
	err := env.runner.handleInstanceRemoval(context.Background(), InstanceRemovalPayload{Name: "nope"})
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestScaleUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.runner.handleInstanceProvision(ctx, InstanceProvisionPayload{Name: "myinstance"}))
	require.NoError(t, env.runner.handleInstanceScale(ctx, InstanceScalePayload{Name: "myinstance", Quantity: 3}))

	lb, err := env.lbs.Find(ctx, "myinstance")
	require.NoError(t, err)
	assert.Len(t, lb.Hosts, 3)
	assert.Equal(t, 3, env.hosts.creates)
}

func TestScaleDownRemovesFromFront(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.runner.handleInstanceProvision(ctx, InstanceProvisionPayload{Name: "myinstance"}))
	require.NoError(t, env.runner.handleInstanceScale(ctx, InstanceScalePayload{Name: "myinstance", Quantity: 3}))

	require.NoError(t, env.runner.handleInstanceScale(ctx, InstanceScalePayload{Name: "myinstance", Quantity: 1}))

	lb, err := env.lbs.Find(ctx, "myinstance")
	require.NoError(t, err)
	require.Len(t, lb.Hosts, 1)
	// The oldest hosts go first; the most recent one survives.
	assert.Equal(t, "10.0.0.3", lb.Hosts[0].DNSName)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, env.hosts.destroyed)
}

func TestScaleNoopClearsTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.runner.handleInstanceProvision(ctx, InstanceProvisionPayload{Name: "myinstance"}))
	created := env.hosts.creates

	require.NoError(t, env.tasks.Create(&types.PendingTask{ID: "myinstance", Created: testNow}))
	require.NoError(t, env.runner.handleInstanceScale(ctx, InstanceScalePayload{Name: "myinstance", Quantity: 1}))

	// Same size: no fleet activity, but the gate still opens.
	assert.Equal(t, created, env.hosts.creates)
	assert.Empty(t, env.hosts.destroyed)
	assert.False(t, env.taskExists(t, "myinstance"))
}

func TestScaleClearsTaskOnFailure(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.tasks.Create(&types.PendingTask{ID: "nope", Created: testNow}))

	err := env.runner.handleInstanceScale(context.Background(), InstanceScalePayload{Name: "nope", Quantity: 2})
	require.ErrorIs(t, err, ErrInstanceNotFound)

	// Unlike provisioning, a failed scale never wedges the instance.
	assert.False(t, env.taskExists(t, "nope"))
}

func TestScaleUpDownRestoresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.runner.handleInstanceProvision(ctx, InstanceProvisionPayload{Name: "myinstance"}))

	for _, quantity := range []int{4, 2, 5, 1} {
		require.NoError(t, env.runner.handleInstanceScale(ctx, InstanceScalePayload{Name: "myinstance", Quantity: quantity}))
		lb, err := env.lbs.Find(ctx, "myinstance")
		require.NoError(t, err)
		assert.Len(t, lb.Hosts, quantity)

		hosts, err := env.store.ListHosts()
		require.NoError(t, err)
		assert.Len(t, hosts, quantity)
	}
}

func TestDeleteHostRemovesRegistryNode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.runner.handleInstanceProvision(ctx, InstanceProvisionPayload{Name: "myinstance"}))
	lb, err := env.lbs.Find(ctx, "myinstance")
	require.NoError(t, err)
	address := lb.Hosts[0].DNSName

	// The registry knows the host under a node name different from its
	// address; removal matches on address.
	env.registry.nodes = []healthreg.NodeInfo{
		{Name: "node-1", Address: address},
		{Name: "node-2", Address: "10.9.9.9"},
	}

	require.NoError(t, env.runner.handleInstanceRemoval(ctx, InstanceRemovalPayload{Name: "myinstance"}))
	assert.Equal(t, []string{"node-1"}, env.registry.removedNodes)
	assert.Equal(t, []string{address}, env.registry.removedURLs)
}
