package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailbae/dashboard/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is where the scrape endpoint listens when no
	// address is configured.
	DefaultMetricsAddr = ":9090"

	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 60 * time.Second

	// DefaultShutdownTimeout bounds graceful drain for both the dashboard
	// and metrics listeners.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig configures the dedicated metrics listener.
type MetricsServerConfig struct {
	// Addr to bind; DefaultMetricsAddr when empty.
	Addr string

	// Enabled gates startup from the serve command.
	Enabled bool

	// InstrumentationProvider must be enabled; the prometheus exporter it
	// installs feeds the global registry that /metrics exposes.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer exposes /metrics on its own port so scrape traffic never
// shares a listener with session cookies and dashboard data.
type MetricsServer struct {
	httpServer *http.Server
	addr       string
}

func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	if config.InstrumentationProvider == nil {
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	}
	if !config.InstrumentationProvider.Enabled() {
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	}

	return &MetricsServer{addr: config.Addr}, nil
}

// Start blocks serving /metrics until Shutdown or a listener error.
func (s *MetricsServer) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
		WriteTimeout:      metricsWriteTimeout,
		IdleTimeout:       metricsIdleTimeout,
	}

	slog.Info("starting metrics server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the metrics listener; a no-op before Start.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

func (s *MetricsServer) Addr() string {
	return s.addr
}
