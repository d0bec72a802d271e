package worker

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"codewatch/internal/observability/metrics"
	"codewatch/internal/usecase/notify"
)

// ChannelHealthProvider reports circuit breaker state per notification
// channel. *notify.Service implements it.
type ChannelHealthProvider interface {
	GetChannelHealth() []notify.ChannelHealthStatus
}

// ChannelHealthResponse represents the health status of all notification channels.
type ChannelHealthResponse struct {
	Healthy  bool                         `json:"healthy"`
	Channels []notify.ChannelHealthStatus `json:"channels"`
}

// MetricsServer exposes Prometheus metrics and notification channel health:
//   - GET /metrics
//   - GET /health/channels: 200 when no enabled channel has an open
//     breaker, 503 otherwise
type MetricsServer struct {
	addr     string
	logger   *slog.Logger
	registry *prometheus.Registry
	channels ChannelHealthProvider
}

// NewMetricsServer creates a metrics server for addr. channels may be nil.
func NewMetricsServer(addr string, logger *slog.Logger, registry *prometheus.Registry, channels ChannelHealthProvider) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsServer{addr: addr, logger: logger, registry: registry, channels: channels}
}

// Handler returns the endpoint mux.
func (m *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(m.registry))
	mux.HandleFunc("GET /health/channels", m.handleChannels)
	return mux
}

// Start serves until ctx is canceled. It returns nil after a graceful shutdown.
func (m *MetricsServer) Start(ctx context.Context) error {
	return listenAndServe(ctx, m.logger, "metrics", m.addr, m.Handler(), 10*time.Second)
}

func (m *MetricsServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	if m.channels == nil {
		writeJSON(w, m.logger, http.StatusServiceUnavailable, map[string]string{
			"error": "notification service not initialized",
		})
		return
	}

	statuses := m.channels.GetChannelHealth()
	healthy := true
	for _, s := range statuses {
		if s.Enabled && s.CircuitBreakerOpen {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, m.logger, status, ChannelHealthResponse{Healthy: healthy, Channels: statuses})
}
