package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mailbae/dashboard/internal/auth"
	"github.com/mailbae/dashboard/internal/backend"
	"github.com/mailbae/dashboard/internal/draft"
	"github.com/mailbae/dashboard/internal/instrumentation"
	"github.com/mailbae/dashboard/internal/prefs"
	"github.com/mailbae/dashboard/internal/server"
	"github.com/mailbae/dashboard/internal/session"
	"github.com/mailbae/dashboard/internal/tokenstore"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard HTTP server",
		Long: `Start the dashboard HTTP server.

Configuration comes from flags, MAILBAE_* environment variables, or a
config.yaml file, in that order of precedence.

Required settings:
  google.client_id / google.client_secret  OAuth client credentials
  google.redirect_url                      the public /auth/callback URL
  session.secret                           HMAC key for session cookies
  backend.url                              mail-processing service base URL

Credential storage picks the first configured option:
  database.url      Postgres, tokens and settings persist across restarts
  token_store.url   hosted token endpoint (plus metadata.url for settings)
  neither           in-memory, development only`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}

	cmd.Flags().String("http.addr", ":3000", "HTTP server address")
	cmd.Flags().Bool("http.secure_cookies", true, "Mark session cookies Secure (disable for localhost)")
	cmd.Flags().Bool("debug", false, "Enable debug logging")
	cmd.Flags().String("google.client_id", "", "Google OAuth client ID")
	cmd.Flags().String("google.client_secret", "", "Google OAuth client secret")
	cmd.Flags().String("google.redirect_url", "", "OAuth redirect URL (the public /auth/callback)")
	cmd.Flags().String("session.secret", "", "HMAC key for signing session cookies")
	cmd.Flags().Duration("session.ttl", session.DefaultTTL, "Session lifetime")
	cmd.Flags().String("backend.url", "http://localhost:8000", "Mail-processing service base URL")
	cmd.Flags().String("database.url", "", "Postgres connection URL for the token and settings store")
	cmd.Flags().String("token_store.url", "", "Hosted token endpoint base URL (used when database.url is unset)")
	cmd.Flags().String("metadata.url", "", "User-metadata endpoint base URL for settings (used when database.url is unset)")
	cmd.Flags().Bool("metrics.enabled", true, "Enable the metrics server on a dedicated port")
	cmd.Flags().String("metrics.addr", ":9090", "Metrics server address")

	_ = viper.BindPFlags(cmd.Flags())

	return cmd
}

func runServe() error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	clientID := viper.GetString("google.client_id")
	clientSecret := viper.GetString("google.client_secret")
	redirectURL := viper.GetString("google.redirect_url")
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return fmt.Errorf("google.client_id, google.client_secret and google.redirect_url must be configured")
	}

	secret := viper.GetString("session.secret")
	if secret == "" {
		return fmt.Errorf("session.secret must be configured")
	}
	bridge, err := session.NewBridgeWithTTL([]byte(secret), viper.GetDuration("session.ttl"))
	if err != nil {
		return fmt.Errorf("failed to create session bridge: %w", err)
	}

	// Instrumentation provider with metrics server on its own port.
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", "error", err)
		}
	}()

	var metricsServer *server.MetricsServer
	if viper.GetBool("metrics.enabled") && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    viper.GetString("metrics.addr"),
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	// Credential and settings storage.
	tokens, prefStore, pool, err := openStores(shutdownCtx, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	oauthConfig := auth.NewOAuthConfig(clientID, clientSecret, redirectURL)
	pipeline := auth.NewPipeline(oauthConfig, tokens, bridge, nil, provider.Metrics(), logger)

	client := backend.NewClient(viper.GetString("backend.url"), provider.Metrics(), logger)
	cache := backend.NewCache(client, logger)
	boards := draft.NewBoards(cache, logger)

	sc := server.NewServerContext(shutdownCtx, server.ServerContextConfig{
		Pipeline: pipeline,
		Bridge:   bridge,
		Tokens:   tokens,
		Prefs:    prefStore,
		Queries:  cache,
		Boards:   boards,
		Metrics:  provider.Metrics(),
		Logger:   logger,
	})

	srv := server.New(sc, server.Config{
		Addr:          viper.GetString("http.addr"),
		SecureCookies: viper.GetBool("http.secure_cookies"),
	})

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, draining")
		drainCtx, drainCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer drainCancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(drainCtx); err != nil {
				logger.Warn("metrics server shutdown failed", "error", err)
			}
		}
		if err := srv.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}
	return nil
}

// openStores picks the credential and settings backends from config:
// Postgres when database.url is set, the hosted token endpoint when
// token_store.url is set, in-memory otherwise.
func openStores(ctx context.Context, logger *slog.Logger) (tokenstore.Store, prefs.Store, *pgxpool.Pool, error) {
	if databaseURL := viper.GetString("database.url"); databaseURL != "" {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
		defer pingCancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}

		tokens := tokenstore.NewPostgresStore(pool, logger)
		if err := tokens.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		prefStore := prefs.NewPostgresStore(pool, logger)
		if err := prefStore.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return tokens, prefStore, pool, nil
	}

	if storeURL := viper.GetString("token_store.url"); storeURL != "" {
		var prefStore prefs.Store = prefs.NewMemoryStore()
		if metadataURL := viper.GetString("metadata.url"); metadataURL != "" {
			prefStore = prefs.NewRESTStore(metadataURL)
		} else {
			logger.Info("metadata.url not set, settings held in memory")
		}
		return tokenstore.NewRESTStore(storeURL), prefStore, nil, nil
	}

	logger.Warn("no store configured, credentials and settings are in-memory only")
	return tokenstore.NewMemoryStore(), prefs.NewMemoryStore(), nil, nil
}
