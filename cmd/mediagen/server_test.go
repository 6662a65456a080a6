package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/BaSui01/mediagen/api/handlers"
	"github.com/BaSui01/mediagen/config"
	"github.com/BaSui01/mediagen/internal/metrics"
	"github.com/BaSui01/mediagen/internal/taskstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.APIKeys = []string{"secret"}
	if mutate != nil {
		mutate(cfg)
	}

	collector := metrics.NewCollector("srvtest", prometheus.NewRegistry(), zap.NewNop())
	comps, err := buildComponents(context.Background(), cfg, zap.NewNop(), collector)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	s := &Server{cfg: cfg, logger: zap.NewNop(), metricsCollector: collector, components: comps}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return s, s.Handler(ctx)
}

func TestServerHandler_HealthSkipsAuth(t *testing.T) {
	_, h := newTestServer(t, nil)

	for _, path := range []string{"/health", "/healthz", "/ready", "/version"} {
		w := serve(h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestServerHandler_AdaptersRequireKey(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/v1/adapters", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/v1/adapters", nil)
	r.Header.Set("X-API-Key", "secret")
	w = serve(h, r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 12)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestBuildComponents_Defaults(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := s.components

	assert.IsType(t, &taskstore.MemoryStore{}, c.tasks)
	assert.Nil(t, c.pool)
	assert.Nil(t, c.repo)
	assert.False(t, c.storage.Initialized(), "driver none leaves storage uninitialized")
}

func TestBuildComponents_FilesystemAndSQLite(t *testing.T) {
	dir := t.TempDir()
	s, h := newTestServer(t, func(cfg *config.Config) {
		cfg.Storage.Driver = "filesystem"
		cfg.Storage.LocalRoot = filepath.Join(dir, "media")
		cfg.Storage.LocalBaseURL = "http://files.local"
		cfg.Database.Enabled = true
		cfg.Database.Driver = "sqlite"
		cfg.Database.Name = filepath.Join(dir, "tasks.db")
	})
	c := s.components

	assert.True(t, c.storage.Initialized())
	require.NotNil(t, c.pool)
	require.NotNil(t, c.repo)
	assert.True(t, c.pool.DB().Migrator().HasTable("mediagen_task_records"))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var ready handlers.ServiceHealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Len(t, ready.Checks, 3)
	assert.False(t, ready.Checks["storage"].Critical)
}

func TestBuildComponents_RedisUnavailableFallsBack(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = "127.0.0.1:1"
	})
	assert.IsType(t, &taskstore.MemoryStore{}, s.components.tasks)
}

func TestRetryPolicy(t *testing.T) {
	p := retryPolicy(config.RetryConfig{MaxRetries: 4, Multiplier: 3, Jitter: true})
	assert.Equal(t, 4, p.MaxRetries)
	assert.Equal(t, 3.0, p.Multiplier)
	assert.True(t, p.Jitter)
	assert.Positive(t, p.InitialDelay, "unset delays keep defaults")
}
