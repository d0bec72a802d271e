// Package tracing provides OpenTelemetry tracing for the poll loop and its
// outbound HTTP calls. Spans are exported over OTLP/HTTP when
// OTEL_EXPORTER_OTLP_ENDPOINT is set and written as JSON otherwise.
//
//	tp, err := tracing.NewProvider(ctx, logger, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tp.Shutdown(context.Background()) }()
//
//	ctx, span := tracing.GetTracer().Start(ctx, "poll.cycle")
//	defer span.End()
//
//	client := &http.Client{Transport: tracing.NewTransport(nil)}
package tracing
