package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for notification_dropped_total.
const (
	dropCircuitOpen = "circuit_open"
	dropPanic       = "panic"
)

// Metrics holds the Prometheus collectors for notification delivery.
// A nil *Metrics records nothing.
type Metrics struct {
	dispatched      *prometheus.CounterVec
	sent            *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	breakerOpen     *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	channelsEnabled prometheus.Gauge
}

// NewMetrics registers the notification collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		dispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_dispatched_total",
				Help: "Total number of notifications dispatched",
			},
			[]string{"channel"},
		),
		sent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_sent_total",
				Help: "Total number of notifications sent",
			},
			[]string{"channel", "status"}, // status: success|failure
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notification_duration_seconds",
				Help:    "Notification send duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"channel"},
		),
		breakerOpen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_circuit_breaker_open_total",
				Help: "Total number of circuit breaker open events",
			},
			[]string{"channel"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_dropped_total",
				Help: "Total number of dropped notifications",
			},
			[]string{"channel", "reason"},
		),
		channelsEnabled: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notification_channels_enabled",
				Help: "Number of enabled notification channels",
			},
		),
	}
}

func (m *Metrics) recordDispatch(channel string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(channel).Inc()
}

func (m *Metrics) recordResult(channel string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.sent.WithLabelValues(channel, status).Inc()
	m.duration.WithLabelValues(channel).Observe(d.Seconds())
}

func (m *Metrics) recordDropped(channel, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(channel, reason).Inc()
}

func (m *Metrics) recordBreakerOpen(channel string) {
	if m == nil {
		return
	}
	m.breakerOpen.WithLabelValues(channel).Inc()
}

func (m *Metrics) setChannelsEnabled(n int) {
	if m == nil {
		return
	}
	m.channelsEnabled.Set(float64(n))
}
