package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mod ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL}
	for _, m := range mod {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestGetGraph(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/get_graph/g%201", r.URL.EscapedPath())
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		io.WriteString(w, `{"graph":{"nodes":[{"id":"1","label":"A","description":null,"color":null,"comments":null}],"edges":[{"from":"1","to":"1","label":"self"}]}}`)
	})
	snap, err := c.GetGraph(context.Background(), "g 1")
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "A", snap.Nodes[0].Label)
	assert.Equal(t, "", snap.Nodes[0].Description)
	assert.Equal(t, "self", snap.Edges[0].Label)
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", 404, `{"detail":"Grafo no encontrado"}`, "Grafo no encontrado"},
		{"validation list", 422, `{"detail":[{"loc":["body","user_id"]}]}`, `[{"loc":["body","user_id"]}]`},
		{"no json", 502, `<html>bad gateway</html>`, "502 Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.GetGraph(context.Background(), "x")
			var ae *APIError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.status, ae.Status)
			assert.Equal(t, tt.want, ae.Detail)
			assert.Equal(t, tt.status == 404, IsNotFound(err))
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	start := time.Now()
	_, err := c.GetGraph(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.Breaker = BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 3}
	})

	for i := 0; i < 3; i++ {
		_, err := c.GetGraph(context.Background(), "g")
		var ae *APIError
		require.ErrorAs(t, err, &ae)
	}
	_, err := c.GetGraph(context.Background(), "g")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, "open", c.BreakerState())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, func(cfg *Config) {
		cfg.Breaker = BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 2}
	})
	for i := 0; i < 5; i++ {
		_, err := c.GetGraph(context.Background(), "missing")
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, "closed", c.BreakerState())
}

type captured struct {
	mu   sync.Mutex
	path string
	body map[string]any
}

func (c *captured) get() (string, map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path, c.body
}

func TestMutationBodies(t *testing.T) {
	var rec captured
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rec.mu.Lock()
		rec.path, rec.body = r.URL.Path, body
		rec.mu.Unlock()
		io.WriteString(w, `{"graph_id":"g1","graph":{"nodes":[{"id":"n","label":"N","comments":[{"user_id":"u","text":"hola","timestamp":"t"}]}],"edges":[]}}`)
	})
	ctx := context.Background()

	snap, err := c.AddComment(ctx, "g1", "n", "hola", "u")
	require.NoError(t, err)
	path, body := rec.get()
	assert.Equal(t, "/add_comment", path)
	assert.Equal(t, map[string]any{"graph_id": "g1", "node_id": "n", "text": "hola", "user_id": "u"}, body)
	require.Len(t, snap.Nodes[0].Comments, 1)
	assert.Equal(t, "u", snap.Nodes[0].Comments[0].AuthorID)

	res, err := c.Refine(ctx, "g1", "u", "más detalle")
	require.NoError(t, err)
	path, body = rec.get()
	assert.Equal(t, "/refine_graph", path)
	assert.Equal(t, "más detalle", body["feedback"])
	assert.Equal(t, "g1", res.GraphID)

	_, err = c.ExpandNode(ctx, "g1", "u", "Expandir: Célula", &snap)
	require.NoError(t, err)
	path, body = rec.get()
	assert.Equal(t, "/expand_node", path)
	assert.Equal(t, "g1", body["graph_id"])
	assert.NotNil(t, body["previous_graph"])

	_, err = c.DeleteNode(ctx, "g1", "n", "u")
	require.NoError(t, err)
	path, _ = rec.get()
	assert.Equal(t, "/delete_node", path)

	require.NoError(t, c.UpdateTitle(ctx, "g1", "Nuevo", "u"))
	_, body = rec.get()
	assert.Equal(t, "Nuevo", body["title"])
}

func TestHistoryAndAnalytics(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/graph_history/u1":
			io.WriteString(w, `{"graphs":[{"id":"g1","title":"Biología"}]}`)
		case "/analyze_graph":
			io.WriteString(w, `{"analytics":{"in_degree_centrality":{"A":0.5},"out_degree_centrality":{"A":0}}}`)
		case "/graph_versions/g1":
			io.WriteString(w, `{"versions":[{"id":"v1","created_at":"2025-01-01T00:00:00","node_count":3}]}`)
		case "/create_user":
			io.WriteString(w, `{"user_id":"new-id"}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	none, err := c.History(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, int32(0), hits.Load())

	hist, err := c.History(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Biología", hist[0].Title)

	a, err := c.Analyze(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, a.InDegree["A"])

	v, err := c.Versions(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, v[0].NodeCount)

	id, err := c.CreateUser(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
}
