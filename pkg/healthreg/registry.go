package healthreg

import "context"

// Check statuses reported by the health registry.
const StatusPassing = "passing"

// NodeInfo identifies a node known to the health registry.
type NodeInfo struct {
	Name    string `json:"Node"`
	Address string `json:"Address"`
}

// ServiceInfo carries the service tags attached to a node's registration.
// One tag names the owning instance; the generic service tag carries the
// platform service name.
type ServiceInfo struct {
	Tags []string `json:"Tags"`
}

// Check is a single health check result for a node.
type Check struct {
	Status string `json:"Status"`
}

// ServiceHealth is one entry of the aggregated per-node health report.
type ServiceHealth struct {
	Node    NodeInfo    `json:"Node"`
	Service ServiceInfo `json:"Service"`
	Checks  []Check     `json:"Checks"`
}

// Failing reports whether any check on the node is not passing.
func (h ServiceHealth) Failing() bool {
	for _, check := range h.Checks {
		if check.Status != StatusPassing {
			return true
		}
	}
	return false
}

// Registry is the external service-discovery and health-check system. The
// orchestration layer reads aggregated health and maintains per-instance
// healthcheck services with member URLs.
type Registry interface {
	// Node surface
	ServiceHealthcheck(ctx context.Context) ([]ServiceHealth, error)
	ListNodes(ctx context.Context) ([]NodeInfo, error)
	RemoveNode(ctx context.Context, nodeName string) error

	// Per-instance healthcheck service surface
	CreateService(ctx context.Context, name string) error
	AddURL(ctx context.Context, name, dnsName string) error
	RemoveURL(ctx context.Context, name, dnsName string) error
	DestroyService(ctx context.Context, name string) error
}

// Noop is the registry used when no HCAPI endpoint is configured. All writes
// succeed silently and all reads come back empty.
type Noop struct{}

func (Noop) ServiceHealthcheck(ctx context.Context) ([]ServiceHealth, error) { return nil, nil }
func (Noop) ListNodes(ctx context.Context) ([]NodeInfo, error)               { return nil, nil }
func (Noop) RemoveNode(ctx context.Context, nodeName string) error           { return nil }
func (Noop) CreateService(ctx context.Context, name string) error            { return nil }
func (Noop) AddURL(ctx context.Context, name, dnsName string) error          { return nil }
func (Noop) RemoveURL(ctx context.Context, name, dnsName string) error       { return nil }
func (Noop) DestroyService(ctx context.Context, name string) error           { return nil }
