package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/healthreg"
	"github.com/cuemby/hutch/pkg/types"
)

func failingEntry(address, instanceTag string) healthreg.ServiceHealth {
	return healthreg.ServiceHealth{
		Node:    healthreg.NodeInfo{Name: "node-" + address, Address: address},
		Service: healthreg.ServiceInfo{Tags: []string{"rpaas", instanceTag}},
		Checks:  []healthreg.Check{{Status: "critical"}},
	}
}

func passingEntry(address, instanceTag string) healthreg.ServiceHealth {
	entry := failingEntry(address, instanceTag)
	entry.Checks = []healthreg.Check{{Status: healthreg.StatusPassing}}
	return entry
}

func (e *testEnv) addHostRecord(t *testing.T, address string) {
	t.Helper()
	require.NoError(t, e.store.PutHost(&types.Host{
		ID:      "host-" + address,
		DNSName: address,
		Manager: "noop",
	}))
}

func TestHealthSweepFlagsFailingNode(t *testing.T) {
	env := newTestEnv(t)
	env.addHostRecord(t, "10.0.0.1")
	env.registry.report = []healthreg.ServiceHealth{failingEntry("10.0.0.1", "myinstance")}

	require.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))

	task, err := env.store.GetTask("restore_10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", task.Host)
	assert.Equal(t, "myinstance", task.Instance)
	assert.True(t, task.Created.Equal(testNow))
	assert.Nil(t, task.LastAttempt)
}

func TestHealthSweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addHostRecord(t, "10.0.0.1")
	env.registry.report = []healthreg.ServiceHealth{failingEntry("10.0.0.1", "myinstance")}

	require.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))

	// Age the task, then re-detect: the original task must survive so the
	// restore delay keeps counting from the first detection.
	earlier := testNow.Add(-10 * time.Minute)
	task, err := env.store.GetTask("restore_10.0.0.1")
	require.NoError(t, err)
	task.Created = earlier
	require.NoError(t, env.store.PutTask(task))

	require.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))

	task, err = env.store.GetTask("restore_10.0.0.1")
	require.NoError(t, err)
	assert.True(t, task.Created.Equal(earlier))
}

func TestHealthSweepClearsRecoveredNode(t *testing.T) {
	env := newTestEnv(t)
	env.addHostRecord(t, "10.0.0.1")

	require.NoError(t, env.tasks.Create(&types.PendingTask{
		ID:      "restore_10.0.0.1",
		Host:    "10.0.0.1",
		Created: testNow.Add(-time.Minute),
	}))
	env.registry.report = []healthreg.ServiceHealth{passingEntry("10.0.0.1", "myinstance")}

	require.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))
	assert.False(t, env.taskExists(t, "restore_10.0.0.1"))
}

func TestHealthSweepHealthyWithNoTaskIsSilent(t *testing.T) {
	env := newTestEnv(t)
	env.addHostRecord(t, "10.0.0.1")
	env.registry.report = []healthreg.ServiceHealth{passingEntry("10.0.0.1", "myinstance")}

	assert.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))
}

func TestHealthSweepSkipsUnknownMachine(t *testing.T) {
	env := newTestEnv(t)
	// No host record: likely mid-provisioning, not ours to restore.
	env.registry.report = []healthreg.ServiceHealth{failingEntry("10.0.0.9", "myinstance")}

	require.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))
	assert.False(t, env.taskExists(t, "restore_10.0.0.9"))
}

func TestHealthSweepTagResolution(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		expected string
	}{
		{"instance tag after service tag", []string{"rpaas", "myinstance"}, "myinstance"},
		{"instance tag before service tag", []string{"myinstance", "rpaas"}, "myinstance"},
		{"tag embedding service name skipped", []string{"rpaas-prod", "myinstance"}, "myinstance"},
		{"only service tags fall back to service name", []string{"rpaas", "rpaas-prod"}, "rpaas"},
		{"no tags fall back to service name", nil, "rpaas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.addHostRecord(t, "10.0.0.1")
			entry := failingEntry("10.0.0.1", "")
			entry.Service.Tags = tt.tags
			env.registry.report = []healthreg.ServiceHealth{entry}

			require.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))

			task, err := env.store.GetTask("restore_10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, task.Instance)
		})
	}
}

func TestHealthSweepMixedReport(t *testing.T) {
	env := newTestEnv(t)
	env.addHostRecord(t, "10.0.0.1")
	env.addHostRecord(t, "10.0.0.2")
	env.registry.report = []healthreg.ServiceHealth{
		failingEntry("10.0.0.1", "myinstance"),
		passingEntry("10.0.0.2", "otherinstance"),
	}

	require.NoError(t, env.runner.handleMachineHealthSweep(context.Background()))
	assert.True(t, env.taskExists(t, "restore_10.0.0.1"))
	assert.False(t, env.taskExists(t, "restore_10.0.0.2"))
}
