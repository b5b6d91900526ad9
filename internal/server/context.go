package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mailbae/dashboard/internal/auth"
	"github.com/mailbae/dashboard/internal/backend"
	"github.com/mailbae/dashboard/internal/draft"
	"github.com/mailbae/dashboard/internal/instrumentation"
	"github.com/mailbae/dashboard/internal/prefs"
	"github.com/mailbae/dashboard/internal/session"
	"github.com/mailbae/dashboard/internal/tokenstore"
)

// ServerContext holds the long-lived dependencies shared by all request
// handlers and tracks the server's shutdown state.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	pipeline *auth.Pipeline
	bridge   *session.Bridge
	tokens   tokenstore.Store
	prefs    prefs.Store
	queries  *backend.Cache
	boards   *draft.Boards
	metrics  *instrumentation.Metrics
	logger   *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// ServerContextConfig collects the dependencies for NewServerContext.
type ServerContextConfig struct {
	Pipeline *auth.Pipeline
	Bridge   *session.Bridge
	Tokens   tokenstore.Store
	Prefs    prefs.Store
	Queries  *backend.Cache
	Boards   *draft.Boards
	Metrics  *instrumentation.Metrics
	Logger   *slog.Logger
}

// NewServerContext creates a server context wired with the given
// dependencies. Metrics may be nil.
func NewServerContext(ctx context.Context, config ServerContextConfig) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		pipeline: config.Pipeline,
		bridge:   config.Bridge,
		tokens:   config.Tokens,
		prefs:    config.Prefs,
		queries:  config.Queries,
		boards:   config.Boards,
		metrics:  config.Metrics,
		logger:   logger,
	}
}

// Context returns the server's lifetime context. It is cancelled on
// shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown marks the context as shut down and cancels its context.
// Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
