package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
	"github.com/ekaya-inc/ekaya-hangar/pkg/logging"
)

const databaseCheckTimeout = 10 * time.Second

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string                             `json:"status"`
	Version     string                             `json:"version"`
	Service     string                             `json:"service"`
	GoVersion   string                             `json:"go_version"`
	Hostname    string                             `json:"hostname"`
	Environment string                             `json:"environment"`
	Adapters    []datasource.DatasourceAdapterInfo `json:"adapters"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status      string                      `json:"status"`
	Connections *datasource.ConnectionStats `json:"connections,omitempty"`
}

// DatabaseStatus is one entry of the /health/databases body.
type DatabaseStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatsProvider reports connection pool statistics.
type StatsProvider interface {
	GetStats() datasource.ConnectionStats
}

// DatabaseChecker tests connectivity of every configured database.
type DatabaseChecker interface {
	TestAll(ctx context.Context) map[string]error
	IDs() []string
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg       *config.Config
	stats     StatsProvider
	databases DatabaseChecker
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. stats and databases may be nil.
func NewHealthHandler(cfg *config.Config, stats StatsProvider, databases DatabaseChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, stats: stats, databases: databases, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/databases", h.Databases)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.HandleFunc("GET /metrics", h.Metrics)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	if h.stats != nil {
		stats := h.stats.GetStats()
		response.Connections = &stats
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Databases handles GET /health/databases requests.
// Opens a connection to every configured database; any failure is a 503.
func (h *HealthHandler) Databases(w http.ResponseWriter, r *http.Request) {
	if h.databases == nil {
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "unavailable", "No databases configured"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), databaseCheckTimeout)
	defer cancel()
	failures := h.databases.TestAll(ctx)

	ids := h.databases.IDs()
	sort.Strings(ids)
	statuses := make([]DatabaseStatus, 0, len(ids))
	for _, id := range ids {
		status := DatabaseStatus{ID: id, Status: "ok"}
		if err, failed := failures[id]; failed {
			status.Status = "error"
			status.Error = logging.SanitizeError(err)
		}
		statuses = append(statuses, status)
	}

	code := http.StatusOK
	if len(failures) > 0 {
		code = http.StatusServiceUnavailable
	}
	if err := WriteJSON(w, code, statuses); err != nil {
		h.logger.Error("Failed to encode database health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-hangar",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Adapters:    datasource.RegisteredAdapters(),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Metrics handles GET /metrics requests with connection pool statistics.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "unavailable", "Connection manager not configured"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, h.stats.GetStats()); err != nil {
		h.logger.Error("Failed to encode metrics response", zap.Error(err))
	}
}
