package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mailbae/dashboard/internal/logging"
)

const (
	// DefaultReadHeaderTimeout bounds header reads on the main listener.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds response writes on the main listener.
	DefaultWriteTimeout = 35 * time.Second
	// DefaultIdleTimeout bounds idle keep-alive connections.
	DefaultIdleTimeout = 120 * time.Second

	// stateNonceTTL is how long an issued login state nonce stays valid.
	stateNonceTTL = 10 * time.Minute
)

// Server is the dashboard HTTP server: the OAuth endpoints, the session
// projection, the windowed dashboard queries, the draft lifecycle and
// the settings surface.
type Server struct {
	sc            *ServerContext
	health        *HealthChecker
	httpServer    *http.Server
	secureCookies bool

	nonces *nonceStore
}

// Config holds the main listener's settings.
type Config struct {
	// Addr is the address to bind to (e.g., ":3000").
	Addr string
	// SecureCookies marks the session cookie Secure. Disable only for
	// localhost development.
	SecureCookies bool
}

// New creates the dashboard server.
func New(sc *ServerContext, config Config) *Server {
	s := &Server{
		sc:            sc,
		health:        NewHealthChecker(sc),
		secureCookies: config.SecureCookies,
		nonces:        newNonceStore(stateNonceTTL),
	}

	mux := http.NewServeMux()

	mux.Handle("GET /auth/login", http.HandlerFunc(s.handleLogin))
	mux.Handle("GET /auth/callback", http.HandlerFunc(s.handleCallback))
	mux.Handle("POST /auth/logout", http.HandlerFunc(s.handleLogout))
	mux.Handle("GET /api/session", http.HandlerFunc(s.handleSession))

	mux.Handle("POST /api/dashboard/replies", http.HandlerFunc(s.handleReplies))
	mux.Handle("POST /api/dashboard/summary", http.HandlerFunc(s.handleSummary))
	mux.Handle("POST /api/dashboard/received", http.HandlerFunc(s.handleReceived))
	mux.Handle("POST /api/dashboard/refresh", http.HandlerFunc(s.handleRefresh))

	mux.Handle("POST /api/dashboard/replies/{id}/edit", http.HandlerFunc(s.handleDraftEdit))
	mux.Handle("POST /api/dashboard/replies/{id}/text", http.HandlerFunc(s.handleDraftText))
	mux.Handle("POST /api/dashboard/replies/{id}/cancel", http.HandlerFunc(s.handleDraftCancel))
	mux.Handle("POST /api/dashboard/replies/{id}/send", http.HandlerFunc(s.handleDraftSend))

	mux.Handle("GET /api/settings", http.HandlerFunc(s.handleSettingsGet))
	mux.Handle("PUT /api/settings", http.HandlerFunc(s.handleSettingsPut))

	s.health.RegisterHealthEndpoints(mux)

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.withSession(s.withInstrumentation(mux)),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	return s
}

// Handler returns the server's handler chain. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the main listener. It blocks until the listener stops.
func (s *Server) Start() error {
	s.sc.logger.Info("starting dashboard server",
		logging.Operation("serve"),
		logging.Endpoint(s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the listener and marks the context as shut down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	_ = s.sc.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

// newStateNonce issues a fresh login state nonce.
func (s *Server) newStateNonce() string {
	nonce := uuid.NewString()
	s.nonces.add(nonce)
	return nonce
}
