package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/google/uuid"
)

// NoopHostManager fabricates host records without touching any cloud API.
// It backs dry-run deployments and local development.
type NoopHostManager struct{}

func (NoopHostManager) Create(ctx context.Context, instance string) (*types.Host, error) {
	host := &types.Host{
		ID:        uuid.New().String(),
		DNSName:   fmt.Sprintf("%s-%s.local", instance, uuid.New().String()[:8]),
		Manager:   "noop",
		Instance:  instance,
		CreatedAt: time.Now().UTC(),
	}
	fleetLog := log.WithComponent("fleet")
	fleetLog.Info().
		Str("instance", instance).
		Str("dns_name", host.DNSName).
		Msg("noop: host created")
	return host, nil
}

func (NoopHostManager) Destroy(ctx context.Context, host *types.Host) error {
	fleetLog := log.WithComponent("fleet")
	fleetLog.Info().Str("dns_name", host.DNSName).Msg("noop: host destroyed")
	return nil
}

func (NoopHostManager) Restore(ctx context.Context, host *types.Host) error {
	fleetLog := log.WithComponent("fleet")
	fleetLog.Info().Str("dns_name", host.DNSName).Msg("noop: host restored")
	return nil
}

// NoopLBManager keeps load balancer membership in memory.
type NoopLBManager struct {
	mu  sync.Mutex
	lbs map[string]*types.LoadBalancer
}

func NewNoopLBManager() *NoopLBManager {
	return &NoopLBManager{lbs: make(map[string]*types.LoadBalancer)}
}

func (m *NoopLBManager) Create(ctx context.Context, name string) (*types.LoadBalancer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lb := &types.LoadBalancer{Name: name}
	m.lbs[name] = lb
	return lb, nil
}

func (m *NoopLBManager) Find(ctx context.Context, name string) (*types.LoadBalancer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lbs[name], nil
}

func (m *NoopLBManager) AddHost(ctx context.Context, lb *types.LoadBalancer, host *types.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lb.Hosts = append(lb.Hosts, host)
	return nil
}

func (m *NoopLBManager) RemoveHost(ctx context.Context, lb *types.LoadBalancer, host *types.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range lb.Hosts {
		if h.DNSName == host.DNSName {
			lb.Hosts = append(lb.Hosts[:i], lb.Hosts[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *NoopLBManager) Destroy(ctx context.Context, lb *types.LoadBalancer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lbs, lb.Name)
	return nil
}

func init() {
	RegisterHostManager("noop", NoopHostManager{})
	RegisterLBManager("noop", NewNoopLBManager())
}
