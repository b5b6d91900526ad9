// Package instrumentation provides OpenTelemetry instrumentation for the
// MailBae dashboard service.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, sign-ins, token persistence,
//     backend queries, and draft sends
//   - Distributed tracing for request flows and backend calls
//   - Prometheus metrics export via /metrics endpoint on a dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of active user sessions
//
// Sign-in Metrics:
//   - signin_total: Counter of sign-in attempts by result
//   - token_persist_total: Counter of credential upserts by result
//
// Backend Metrics:
//   - backend_queries_total: Counter of backend read queries by endpoint and status
//   - backend_query_duration_seconds: Histogram of backend query durations
//   - draft_sends_total: Counter of draft reply sends by status
//   - draft_send_duration_seconds: Histogram of send durations
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mailbae-dashboard)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "mailbae-dashboard",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordBackendQuery(ctx, "auto_respond", "success", time.Since(start))
package instrumentation
