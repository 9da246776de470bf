package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
)

type fakeStats struct {
	stats datasource.ConnectionStats
}

func (f *fakeStats) GetStats() datasource.ConnectionStats { return f.stats }

type fakeChecker struct {
	ids      []string
	failures map[string]error
}

func (f *fakeChecker) TestAll(ctx context.Context) map[string]error { return f.failures }
func (f *fakeChecker) IDs() []string                                { return f.ids }

func testStats() *fakeStats {
	return &fakeStats{stats: datasource.ConnectionStats{
		TotalConnections:  1,
		MaxPools:          32,
		TTLMinutes:        5,
		ConnectionsByType: map[string]int{"sqlite": 1},
		Databases:         []string{"sqlite:local"},
	}}
}

func TestHealthHandler_Health_WithoutStats(t *testing.T) {
	handler := NewHealthHandler(&config.Config{Version: "test-version", Env: "test"}, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Nil(t, response.Connections, "expected nil connections without a stats provider")
}

func TestHealthHandler_Health_WithStats(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, testStats(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.NotNil(t, response.Connections)
	assert.Equal(t, 1, response.Connections.TotalConnections)
	assert.Equal(t, 32, response.Connections.MaxPools)
	assert.Equal(t, 5, response.Connections.TTLMinutes)
	assert.Equal(t, map[string]int{"sqlite": 1}, response.Connections.ConnectionsByType)
}

func TestHealthHandler_Databases(t *testing.T) {
	checker := &fakeChecker{
		ids: []string{"warehouse", "local"},
		failures: map[string]error{
			"warehouse": errors.New("dial postgres://hangar:s3cret@db:5432/wh: connection refused"),
		},
	}
	handler := NewHealthHandler(&config.Config{}, nil, checker, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Databases(rec, httptest.NewRequest(http.MethodGet, "/health/databases", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var statuses []DatabaseStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, DatabaseStatus{ID: "local", Status: "ok"}, statuses[0])
	assert.Equal(t, "warehouse", statuses[1].ID)
	assert.Equal(t, "error", statuses[1].Status)
	assert.NotContains(t, statuses[1].Error, "s3cret")
}

func TestHealthHandler_Databases_AllHealthy(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, nil, &fakeChecker{ids: []string{"local"}}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Databases(rec, httptest.NewRequest(http.MethodGet, "/health/databases", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(&config.Config{Version: "1.2.3", Env: "test"}, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "1.2.3", response.Version)
	assert.Equal(t, "ekaya-hangar", response.Service)
	assert.Equal(t, "test", response.Environment)
	assert.NotEmpty(t, response.GoVersion)
	assert.NotEmpty(t, response.Hostname)
}

func TestHealthHandler_Metrics(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, testStats(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var stats datasource.ConnectionStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, []string{"sqlite:local"}, stats.Databases)
}

func TestHealthHandler_RegisterRoutes(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, nil, nil, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/ping", http.StatusOK},
		// 503 without a stats provider or databases
		{"/metrics", http.StatusServiceUnavailable},
		{"/health/databases", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, tt.path)
	}
}
