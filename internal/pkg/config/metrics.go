package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics is a per-component set of configuration metrics:
//   - {component}_config_load_timestamp
//   - {component}_config_validation_errors_total{field}
//   - {component}_config_fallbacks_total{field}
//   - {component}_config_fallback_active
type ConfigMetrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge

	componentName string
}

// NewConfigMetrics registers the metrics for componentName with reg.
// A nil reg means prometheus.DefaultRegisterer. Registering the same
// component twice on one registry panics.
func NewConfigMetrics(componentName string, reg prometheus.Registerer) *ConfigMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ConfigMetrics{
		LoadTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", componentName),
			Help: fmt.Sprintf("Unix timestamp of last %s configuration load", componentName),
		}),
		ValidationErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration validation errors", componentName),
		}, []string{"field"}),
		FallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration fallback operations", componentName),
		}, []string{"field"}),
		FallbackActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", componentName),
			Help: fmt.Sprintf("1 if any %s configuration fallback is active, 0 otherwise", componentName),
		}),
		componentName: componentName,
	}
}

// RecordLoadTimestamp sets the load timestamp to now.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a rejected value for field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts a default applied in place of field's configured value.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive flips the fallback gauge.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}
