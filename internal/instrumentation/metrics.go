package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency.
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrEndpoint = "endpoint"
	attrResult   = "result"
	attrUser     = "user"
)

// Metrics provides methods for recording observability metrics.
// All recording methods are safe to call on a nil receiver or before
// initialization; they simply do nothing.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	// Sign-in metrics
	signinTotal       metric.Int64Counter
	tokenPersistTotal metric.Int64Counter

	// Backend processing service metrics
	backendQueriesTotal  metric.Int64Counter
	backendQueryDuration metric.Float64Histogram
	draftSendsTotal      metric.Int64Counter
	draftSendDuration    metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Best-effort count of active user sessions; cookie expiry does not decrement"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	m.signinTotal, err = meter.Int64Counter(
		"signin_total",
		metric.WithDescription("Total number of sign-in attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create signin_total counter: %w", err)
	}

	m.tokenPersistTotal, err = meter.Int64Counter(
		"token_persist_total",
		metric.WithDescription("Total number of delegated credential upserts"),
		metric.WithUnit("{upsert}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_persist_total counter: %w", err)
	}

	m.backendQueriesTotal, err = meter.Int64Counter(
		"backend_queries_total",
		metric.WithDescription("Total number of backend read queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_queries_total counter: %w", err)
	}

	m.backendQueryDuration, err = meter.Float64Histogram(
		"backend_query_duration_seconds",
		metric.WithDescription("Backend read query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_query_duration_seconds histogram: %w", err)
	}

	m.draftSendsTotal, err = meter.Int64Counter(
		"draft_sends_total",
		metric.WithDescription("Total number of draft reply send attempts"),
		metric.WithUnit("{send}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft_sends_total counter: %w", err)
	}

	m.draftSendDuration, err = meter.Float64Histogram(
		"draft_send_duration_seconds",
		metric.WithDescription("Draft reply send duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft_send_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSignIn records a sign-in attempt with result ("success" or "error").
func (m *Metrics) RecordSignIn(ctx context.Context, result string) {
	if m == nil || m.signinTotal == nil {
		return
	}
	m.signinTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordTokenPersist records a credential upsert attempt with result.
func (m *Metrics) RecordTokenPersist(ctx context.Context, result string) {
	if m == nil || m.tokenPersistTotal == nil {
		return
	}
	m.tokenPersistTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordBackendQuery records a backend read query with endpoint, status, and duration.
//
// Parameters:
//   - endpoint: backend endpoint name (auto_respond, summarize, received_count)
//   - status: result status ("success" or "error")
//   - duration: time taken for the query
func (m *Metrics) RecordBackendQuery(ctx context.Context, endpoint, status string, duration time.Duration) {
	if m == nil || m.backendQueriesTotal == nil || m.backendQueryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrEndpoint, endpoint),
		attribute.String(attrStatus, status),
	}

	m.backendQueriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.backendQueryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDraftSend records a draft reply send attempt with status and duration.
func (m *Metrics) RecordDraftSend(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.draftSendsTotal == nil || m.draftSendDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.draftSendsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.draftSendDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveSessions increments the active sessions counter.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active sessions counter.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
