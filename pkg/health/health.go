package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrHealthCheckTimeout means the host did not pass its health check inside
// the configured timeout.
var ErrHealthCheckTimeout = errors.New("timed out waiting for healthcheck")

// Prober polls a newly provisioned or restored host until it answers its
// health endpoint.
type Prober struct {
	// URLFormat builds the health endpoint from the host address
	// (default: "http://%s:8080/healthcheck").
	URLFormat string

	// Interval is the delay between attempts.
	Interval time.Duration

	// ExpectedStatusMin and ExpectedStatusMax bound the acceptable HTTP
	// status codes.
	ExpectedStatusMin int
	ExpectedStatusMax int

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewProber creates a prober with defaults.
func NewProber() *Prober {
	return &Prober{
		URLFormat:         "http://%s:8080/healthcheck",
		Interval:          2 * time.Second,
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WaitHealthy blocks until the host passes a health check or the timeout
// elapses. The timeout is hard: a slow upstream surfaces as
// ErrHealthCheckTimeout, never an unbounded wait.
func (p *Prober) WaitHealthy(ctx context.Context, dnsName string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf(p.URLFormat, dnsName)

	for {
		if p.check(ctx, url) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrHealthCheckTimeout, dnsName, timeout)
		}
		select {
		case <-time.After(p.Interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// check performs a single probe.
func (p *Prober) check(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= p.ExpectedStatusMin && resp.StatusCode <= p.ExpectedStatusMax
}
