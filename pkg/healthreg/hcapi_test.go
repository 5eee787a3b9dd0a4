package healthreg

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/health/service", r.URL.Path)

		user, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "hutch", user)
		assert.Equal(t, "secret", password)

		_, _ = w.Write([]byte(`[
			{
				"Node": {"Node": "node-1", "Address": "10.0.0.1"},
				"Service": {"Tags": ["rpaas_service", "myinstance"]},
				"Checks": [{"Status": "passing"}, {"Status": "critical"}]
			},
			{
				"Node": {"Node": "node-2", "Address": "10.0.0.2"},
				"Service": {"Tags": ["rpaas_service", "otherinstance"]},
				"Checks": [{"Status": "passing"}]
			}
		]`))
	}))
	defer server.Close()

	registry := NewAPIRegistry(APIConfig{URL: server.URL, User: "hutch", Password: "secret"})
	report, err := registry.ServiceHealthcheck(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 2)

	assert.Equal(t, "10.0.0.1", report[0].Node.Address)
	assert.True(t, report[0].Failing())
	assert.False(t, report[1].Failing())
	assert.Equal(t, []string{"rpaas_service", "otherinstance"}, report[1].Service.Tags)
}

func TestListAndRemoveNodes(t *testing.T) {
	var removed string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/nodes":
			_, _ = w.Write([]byte(`[{"Node": "node-1", "Address": "10.0.0.1"}]`))
		case r.Method == http.MethodDelete:
			removed = r.URL.Path
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	registry := NewAPIRegistry(APIConfig{URL: server.URL})

	nodes, err := registry.ListNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "node-1", nodes[0].Name)

	require.NoError(t, registry.RemoveNode(context.Background(), "node-1"))
	assert.Equal(t, "/v1/nodes/node-1", removed)
}

func TestServiceAndURLLifecycle(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]string
	}
	var calls []call

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		calls = append(calls, call{method: r.Method, path: r.URL.Path, body: body})
	}))
	defer server.Close()

	registry := NewAPIRegistry(APIConfig{URL: server.URL, Format: "http://%s:8080/"})
	ctx := context.Background()

	require.NoError(t, registry.CreateService(ctx, "myinstance"))
	require.NoError(t, registry.AddURL(ctx, "myinstance", "10.0.0.1"))
	require.NoError(t, registry.RemoveURL(ctx, "myinstance", "10.0.0.1"))
	require.NoError(t, registry.DestroyService(ctx, "myinstance"))

	require.Len(t, calls, 4)
	assert.Equal(t, call{http.MethodPost, "/resources", map[string]string{"name": "myinstance"}}, calls[0])
	assert.Equal(t, call{http.MethodPost, "/resources/myinstance/url", map[string]string{"url": "http://10.0.0.1:8080/"}}, calls[1])
	assert.Equal(t, call{http.MethodDelete, "/resources/myinstance/url", map[string]string{"url": "http://10.0.0.1:8080/"}}, calls[2])
	assert.Equal(t, call{http.MethodDelete, "/resources/myinstance", nil}, calls[3])
}

func TestErrorStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("already exists"))
	}))
	defer server.Close()

	registry := NewAPIRegistry(APIConfig{URL: server.URL})
	err := registry.CreateService(context.Background(), "myinstance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "already exists")
}

func TestFailingStatuses(t *testing.T) {
	tests := []struct {
		name     string
		checks   []Check
		expected bool
	}{
		{"all passing", []Check{{Status: "passing"}, {Status: "passing"}}, false},
		{"one critical", []Check{{Status: "passing"}, {Status: "critical"}}, true},
		{"warning counts as failing", []Check{{Status: "warning"}}, true},
		{"no checks", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ServiceHealth{Checks: tt.checks}
			assert.Equal(t, tt.expected, h.Failing())
		})
	}
}
