package instrumentation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestSpanHelpers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	newTestProvider(t, ctx)

	t.Run("plain span", func(t *testing.T) {
		spanCtx, span := StartSpan(ctx, "dashboard.refresh")
		defer span.End()
		if spanCtx == nil {
			t.Error("expected context to be non-nil")
		}
	})

	t.Run("backend span", func(t *testing.T) {
		spanCtx, span := StartBackendSpan(ctx, EndpointAutoRespond,
			attribute.Bool(SpanAttrCacheHit, false))
		defer span.End()
		if spanCtx == nil {
			t.Error("expected context to be non-nil")
		}
	})

	t.Run("sign-in span", func(t *testing.T) {
		spanCtx, span := StartSignInSpan(ctx, "exchange")
		defer span.End()
		if spanCtx == nil {
			t.Error("expected context to be non-nil")
		}
	})
}

func TestSetSpanStatus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	newTestProvider(t, ctx)

	_, span := StartSpan(ctx, "dashboard.refresh")
	SetSpanError(span, errors.New("backend unavailable"))
	SetSpanError(span, nil)
	SetSpanSuccess(span)
	span.End()
}

func TestGetTraceID(t *testing.T) {
	if traceID := GetTraceID(context.Background()); traceID != "" {
		t.Errorf("expected empty trace ID without a span, got %q", traceID)
	}
}
