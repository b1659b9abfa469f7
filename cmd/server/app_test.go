package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/config"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/events"
	"github.com/phrazzld/scry-concepts/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "info", ShutdownTimeout: 2 * time.Second},
		Database: config.DatabaseConfig{
			Driver: config.DriverMemory,
		},
		Layout: config.LayoutConfig{
			Debounce:        20 * time.Millisecond,
			OriginX:         400,
			OriginY:         300,
			RootRadius:      150,
			InitialRadius:   100,
			RingStep:        150,
			SectorNarrowing: 0.8,
		},
		Store: config.StoreConfig{
			WriteConcurrency: 4,
			Breaker: config.BreakerConfig{
				Enabled:          true,
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          time.Second,
				FailureThreshold: 5,
			},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestApp(t *testing.T) *application {
	t.Helper()
	app, err := newApplication(context.Background(), memoryConfig(), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { app.cleanup(context.Background()) })
	return app
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewApplication_UnsupportedDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"

	app, err := newApplication(context.Background(), cfg, testLogger)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), `unsupported database driver "sqlite"`)
}

func TestRouter_ConceptFlow(t *testing.T) {
	app := newTestApp(t)
	router := app.setupRouter()
	domainID := uuid.New()
	base := "/api/v1/domains/" + domainID.String()

	w := do(t, router, http.MethodPost, base+"/concepts", map[string]any{"name": "Harmony"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var root domain.Concept
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &root))
	assert.Equal(t, domainID, root.DomainID)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = do(t, router, http.MethodPost, base+"/concepts",
		map[string]any{"name": "Chords", "parent_concept_id": root.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, base+"/layout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var mindMap service.MindMap
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mindMap))
	require.Len(t, mindMap.Nodes, 2)
	require.Len(t, mindMap.Edges, 1)
	assert.Equal(t, domain.Position{X: 400, Y: 300}, mindMap.Nodes[0].Position)

	w = do(t, router, http.MethodGet, base+"/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var feed []events.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	assert.Len(t, feed, 2)

	w = do(t, router, http.MethodGet, "/api/v1/domains/not-a-uuid/concepts", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t)
	router := app.setupRouter()

	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.True(t, strings.Contains(w.Body.String(), `route="/health"`))
}

func TestRouter_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Metrics.Enabled = false
	cfg.Store.Breaker.Enabled = false

	app, err := newApplication(context.Background(), cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { app.cleanup(context.Background()) })

	w := do(t, app.setupRouter(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	app := newTestApp(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, listener, app.setupRouter()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = app.service.Concepts(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrServiceClosed)
}

func TestMigrateCommand_RequiresPostgres(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: memory\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", path, "migrate", "up"})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, errMigrateDriver)
}

func TestRootCommand_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  log_level: loud\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", path, "serve"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
