// Package observability groups the daemon's logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog logger construction and context propagation
//   - metrics: the Prometheus registry served on /metrics
//   - tracing: OpenTelemetry provider, tracer and outbound HTTP transport
package observability
