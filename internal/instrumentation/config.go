package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls the dashboard's OpenTelemetry setup.
type Config struct {
	// ServiceName defaults to mailbae-dashboard.
	ServiceName string

	ServiceVersion string

	// ServiceInstanceID distinguishes instances; the pod hostname is used
	// when empty.
	ServiceInstanceID string

	K8sNamespace string
	K8sPodName   string

	// Enabled gates all metrics and tracing. INSTRUMENTATION_ENABLED=false
	// turns the whole subsystem into no-ops.
	Enabled bool

	// MetricsExporter is "prometheus", "otlp" or "stdout".
	MetricsExporter string

	// TracingExporter is "otlp", "stdout" or "none".
	TracingExporter string

	// OTLPEndpoint is the collector host:port, no protocol prefix.
	OTLPEndpoint string

	// OTLPInsecure disables TLS on OTLP export. Local development only;
	// spans can carry user hashes.
	OTLPInsecure bool

	// TraceSamplingRate is a 0.0 to 1.0 ratio.
	TraceSamplingRate float64

	// PrometheusEndpoint is the scrape path on the metrics listener.
	PrometheusEndpoint string

	// DetailedLabels opts into higher-cardinality metric labels.
	DetailedLabels bool
}

// DefaultConfig reads the standard OTEL_* variables plus the dashboard's own
// toggles, falling back to prometheus metrics and no tracing.
func DefaultConfig() Config {
	return Config{
		ServiceName:        envStr("OTEL_SERVICE_NAME", "mailbae-dashboard"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  envStr("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:       envStr("K8S_NAMESPACE", envStr("POD_NAMESPACE", "")),
		K8sPodName:         envStr("K8S_POD_NAME", envStr("HOSTNAME", "")),
		Enabled:            envBool("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    envStr("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    envStr("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  envFloat("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: envStr("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     envBool("METRICS_DETAILED_LABELS", false),
	}
}

func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
		if c.MetricsExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}

	return nil
}

func envStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// Metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	EndpointAutoRespond   = "auto_respond"
	EndpointSummarize     = "summarize"
	EndpointReceivedCount = "received_count"
	EndpointSendEmail     = "send_email"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
