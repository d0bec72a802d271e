package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EndpointEnv selects the OTLP/HTTP collector. The exporter also honours the
// rest of the standard OTEL_EXPORTER_OTLP_* variables (headers, timeout).
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// NewProvider installs a global TracerProvider plus the W3C trace-context
// propagator. Spans go to the OTLP/HTTP collector named by
// OTEL_EXPORTER_OTLP_ENDPOINT; without one they are written as JSON to
// fallback, which may be io.Discard. Callers own the returned provider and
// must Shutdown it.
func NewProvider(ctx context.Context, logger *slog.Logger, fallback io.Writer, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	exporter, err := newExporter(ctx, logger, fallback)
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
	}, opts...)

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}

func newExporter(ctx context.Context, logger *slog.Logger, fallback io.Writer) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if endpoint := os.Getenv(EndpointEnv); endpoint != "" {
		logger.Info("tracer export initialized",
			slog.String("type", "http"),
			slog.String("endpoint", endpoint))
		return otlptracehttp.New(ctx)
	}

	if fallback == nil {
		fallback = io.Discard
	}
	logger.Info("tracer export initialized",
		slog.String("type", "stdout"),
		slog.Bool("discard", fallback == io.Discard))
	return stdouttrace.New(stdouttrace.WithWriter(fallback))
}
