package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providerConfig(metricsExporter, tracingExporter string) Config {
	return Config{
		ServiceName:     "mailbae-dashboard-test",
		ServiceVersion:  "0.0.0",
		Enabled:         true,
		MetricsExporter: metricsExporter,
		TracingExporter: tracingExporter,
	}
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		ServiceName: "mailbae-dashboard-test",
		Enabled:     false,
	})
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.False(t, provider.Enabled())
	assert.NotNil(t, provider.Metrics(), "disabled provider still hands out a recorder")
	assert.NotNil(t, provider.Tracer("dashboard"), "disabled provider hands out a no-op tracer")
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProviderPrometheus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, providerConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(ctx) }()

	assert.True(t, provider.Enabled())
	assert.NotNil(t, provider.Metrics())
	assert.NotNil(t, provider.PrometheusExporter())
	assert.NotNil(t, provider.Tracer("dashboard"))
}

func TestNewProviderStdout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, providerConfig(ExporterStdout, ExporterStdout))
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(ctx) }()

	assert.True(t, provider.Enabled())
	assert.Nil(t, provider.PrometheusExporter(), "prometheus handle only exists for the prometheus exporter")
}

func TestNewProviderRejectsBadExporters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name   string
		config Config
	}{
		{"unknown metrics exporter", providerConfig("graphite", ExporterNone)},
		{"unknown tracing exporter", providerConfig(ExporterPrometheus, "jaeger")},
		{"otlp tracing without endpoint", providerConfig(ExporterPrometheus, ExporterOTLP)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(ctx, tt.config)
			assert.Error(t, err)
		})
	}
}

func TestProviderShutdown(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, providerConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)

	assert.NoError(t, provider.Shutdown(ctx))
}
