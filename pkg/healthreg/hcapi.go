package healthreg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIRegistry talks to the health-check API over HTTP with basic auth.
type APIRegistry struct {
	baseURL   string
	user      string
	password  string
	urlFormat string
	client    *http.Client
}

// APIConfig holds the HCAPI connection settings.
type APIConfig struct {
	URL      string
	User     string
	Password string

	// Format builds the member URL registered for a host address, e.g.
	// "http://%s:8080/".
	Format string
}

// NewAPIRegistry creates a registry client for the configured HCAPI
// endpoint.
func NewAPIRegistry(cfg APIConfig) *APIRegistry {
	format := cfg.Format
	if format == "" {
		format = "http://%s:8080/"
	}
	return &APIRegistry{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		user:      cfg.User,
		password:  cfg.Password,
		urlFormat: format,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *APIRegistry) ServiceHealthcheck(ctx context.Context) ([]ServiceHealth, error) {
	var out []ServiceHealth
	if err := r.do(ctx, http.MethodGet, "/v1/health/service", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *APIRegistry) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	var out []NodeInfo
	if err := r.do(ctx, http.MethodGet, "/v1/nodes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *APIRegistry) RemoveNode(ctx context.Context, nodeName string) error {
	return r.do(ctx, http.MethodDelete, "/v1/nodes/"+url.PathEscape(nodeName), nil, nil)
}

func (r *APIRegistry) CreateService(ctx context.Context, name string) error {
	body := map[string]string{"name": name}
	return r.do(ctx, http.MethodPost, "/resources", body, nil)
}

func (r *APIRegistry) AddURL(ctx context.Context, name, dnsName string) error {
	body := map[string]string{"url": fmt.Sprintf(r.urlFormat, dnsName)}
	return r.do(ctx, http.MethodPost, "/resources/"+url.PathEscape(name)+"/url", body, nil)
}

func (r *APIRegistry) RemoveURL(ctx context.Context, name, dnsName string) error {
	body := map[string]string{"url": fmt.Sprintf(r.urlFormat, dnsName)}
	return r.do(ctx, http.MethodDelete, "/resources/"+url.PathEscape(name)+"/url", body, nil)
}

func (r *APIRegistry) DestroyService(ctx context.Context, name string) error {
	return r.do(ctx, http.MethodDelete, "/resources/"+url.PathEscape(name), nil, nil)
}

// do performs one JSON request against the HCAPI and decodes the response
// into out when non-nil.
func (r *APIRegistry) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build hcapi request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.user != "" {
		req.SetBasicAuth(r.user, r.password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("hcapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("hcapi %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode hcapi response: %w", err)
		}
	}
	return nil
}
