package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/hutch/pkg/types"
)

// ErrUnknownManager means no backend is registered under the configured
// manager name.
var ErrUnknownManager = errors.New("unknown fleet manager")

// HostManager is the capability interface for provisioning compute nodes.
// Implementations talk to a cloud backend; they are registered by name and
// selected through configuration.
type HostManager interface {
	// Create provisions a host for the named instance.
	Create(ctx context.Context, instance string) (*types.Host, error)

	// Destroy tears the host down.
	Destroy(ctx context.Context, host *types.Host) error

	// Restore reboots or rebuilds an unhealthy host in place.
	Restore(ctx context.Context, host *types.Host) error
}

// LBManager is the capability interface for load balancer lifecycle and
// membership.
type LBManager interface {
	Create(ctx context.Context, name string) (*types.LoadBalancer, error)

	// Find returns the load balancer for the name, or nil when none exists.
	Find(ctx context.Context, name string) (*types.LoadBalancer, error)

	AddHost(ctx context.Context, lb *types.LoadBalancer, host *types.Host) error
	RemoveHost(ctx context.Context, lb *types.LoadBalancer, host *types.Host) error
	Destroy(ctx context.Context, lb *types.LoadBalancer) error
}

// Provisioner bundles the host and load balancer managers selected by
// configuration.
type Provisioner struct {
	HostManagerName string
	Hosts           HostManager
	LBs             LBManager
}

var (
	registryMu   sync.RWMutex
	hostManagers = make(map[string]HostManager)
	lbManagers   = make(map[string]LBManager)
)

// RegisterHostManager registers a host manager backend under a name.
// Backends register themselves at process start.
func RegisterHostManager(name string, m HostManager) {
	registryMu.Lock()
	defer registryMu.Unlock()
	hostManagers[name] = m
}

// RegisterLBManager registers a load balancer backend under a name.
func RegisterLBManager(name string, m LBManager) {
	registryMu.Lock()
	defer registryMu.Unlock()
	lbManagers[name] = m
}

// HostManagerByName resolves a registered host manager. Restores go through
// the manager that created the host, which is not necessarily the one the
// worker is configured with.
func HostManagerByName(name string) (HostManager, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := hostManagers[name]
	if !ok {
		return nil, fmt.Errorf("%w: host manager %q", ErrUnknownManager, name)
	}
	return m, nil
}

// NewProvisioner resolves the named backends from the registries.
func NewProvisioner(hostManager, lbManager string) (*Provisioner, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	hosts, ok := hostManagers[hostManager]
	if !ok {
		return nil, fmt.Errorf("%w: host manager %q (registered: %v)",
			ErrUnknownManager, hostManager, registeredNames(hostManagers))
	}
	lbs, ok := lbManagers[lbManager]
	if !ok {
		return nil, fmt.Errorf("%w: lb manager %q (registered: %v)",
			ErrUnknownManager, lbManager, registeredNamesLB(lbManagers))
	}
	return &Provisioner{HostManagerName: hostManager, Hosts: hosts, LBs: lbs}, nil
}

func registeredNames(m map[string]HostManager) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func registeredNamesLB(m map[string]LBManager) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
