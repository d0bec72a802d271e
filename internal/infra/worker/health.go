package worker

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"codewatch/internal/usecase/poll"
)

// StatsProvider exposes the poll loop counters. *poll.Loop implements it.
type StatsProvider interface {
	Stats() poll.Stats
}

// HealthServer provides HTTP endpoints for health checks:
//   - /health: liveness, always 200
//   - /health/ready: 200 once the first snapshot is seeded, 503 before
//   - /health/status: poll loop counters as JSON
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady atomic.Bool
	stats   StatsProvider
}

// healthResponse is the JSON response format for health check endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthServer creates a health server for addr. stats may be nil, in
// which case /health/status answers 503.
func NewHealthServer(addr string, logger *slog.Logger, stats StatsProvider) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthServer{addr: addr, logger: logger, stats: stats}
}

// Handler returns the endpoint mux.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleLiveness)
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
	mux.HandleFunc("GET /health/status", h.handleStatus)
	return mux
}

// Start serves until ctx is canceled. It returns nil after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	return listenAndServe(ctx, h.logger, "health", h.addr, h.Handler(), 5*time.Second)
}

// SetReady sets the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// IsReady reports the current readiness state.
func (h *HealthServer) IsReady() bool {
	return h.isReady.Load()
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.isReady.Load() {
		writeJSON(w, h.logger, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	writeJSON(w, h.logger, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, healthResponse{Status: "poll loop not initialized"})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.stats.Stats())
}
