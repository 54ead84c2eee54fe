// Package observability provides logging and tracing functionality
// for virtend.
//
// This package implements structured logging via zap and distributed
// tracing via OpenTelemetry with OTLP export. Prometheus metrics are
// owned by the packages that produce them (cache, dispatch, router).
//
// # Logging
//
// The Logger interface provides structured logging:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request dispatched",
//	    observability.String("method", "GET"),
//	    observability.Int("status", 200),
//	)
//
// # Tracing
//
// OpenTelemetry distributed tracing with OTLP export:
//
//	tracer, err := observability.NewTracer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
//
// The tracer installs a composite TraceContext/Baggage propagator so
// outgoing proxied requests carry trace headers.
package observability
