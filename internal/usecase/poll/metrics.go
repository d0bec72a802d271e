package poll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle result label values.
const (
	resultSuccess    = "success"
	resultFetchError = "fetch_error"
	resultPartial    = "delivery_error"
)

// Metrics holds the loop's Prometheus instruments. A nil *Metrics records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	fetched       prometheus.Gauge
	newCodes      prometheus.Counter
	seen          prometheus.Gauge
	deliveries    *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

// NewMetrics registers the loop metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codewatch_poll_cycles_total",
			Help: "Total number of poll cycles by result",
		}, []string{"result"}), // result: success|fetch_error|delivery_error
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codewatch_poll_cycle_duration_seconds",
			Help:    "Duration of a poll cycle including deliveries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		fetched: factory.NewGauge(prometheus.GaugeOpts{
			Name: "codewatch_codes_fetched",
			Help: "Number of codes visible in the most recent snapshot",
		}),
		newCodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "codewatch_codes_new_total",
			Help: "Total number of newly discovered codes",
		}),
		seen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "codewatch_seen_codes",
			Help: "Number of codes currently held in the recency set",
		}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codewatch_deliveries_total",
			Help: "Total number of code deliveries by result",
		}, []string{"result"}), // result: success|failure
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "codewatch_last_success_timestamp",
			Help: "Unix timestamp of the last cycle whose fetch succeeded",
		}),
	}
}

func (m *Metrics) observeSeed(fetched, seen int) {
	if m == nil {
		return
	}
	m.fetched.Set(float64(fetched))
	m.seen.Set(float64(seen))
}

func (m *Metrics) observeCycle(res CycleResult, seen int) {
	if m == nil {
		return
	}

	result := resultSuccess
	switch {
	case res.FetchErr != nil:
		result = resultFetchError
	case len(res.Failed()) > 0:
		result = resultPartial
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(res.Duration.Seconds())
	m.fetched.Set(float64(res.Fetched))
	m.seen.Set(float64(seen))
	m.newCodes.Add(float64(len(res.Deliveries)))

	for _, d := range res.Deliveries {
		if d.Err != nil {
			m.deliveries.WithLabelValues("failure").Inc()
		} else {
			m.deliveries.WithLabelValues("success").Inc()
		}
	}
	if res.FetchErr == nil {
		m.lastSuccess.Set(float64(res.StartedAt.Unix()))
	}
}
