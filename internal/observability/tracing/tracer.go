package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "codewatch"

// GetTracer returns the tracer of the currently installed global provider.
// It is looked up on every call because a tracer obtained before the first
// otel.SetTracerProvider stays bound to that first provider.
func GetTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
