package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/mailbae/dashboard/internal/instrumentation"
	"github.com/mailbae/dashboard/internal/logging"
	"github.com/mailbae/dashboard/internal/session"
	"github.com/mailbae/dashboard/internal/tokenstore"
)

// Pipeline runs the three sign-in stages in order. It is safe for
// concurrent use; each sign-in event flows through independently.
type Pipeline struct {
	config   *oauth2.Config
	store    tokenstore.Store
	bridge   *session.Bridge
	resolver IdentityResolver
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

// NewPipeline wires the sign-in pipeline. A nil resolver defaults to the
// Google identity resolver for the given config.
func NewPipeline(config *oauth2.Config, store tokenstore.Store, bridge *session.Bridge,
	resolver IdentityResolver, metrics *instrumentation.Metrics, logger *slog.Logger) *Pipeline {
	if resolver == nil {
		resolver = NewGoogleIdentityResolver(config)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		config:   config,
		store:    store,
		bridge:   bridge,
		resolver: resolver,
		metrics:  metrics,
		logger:   logging.WithComponent(logger, "auth"),
	}
}

// SignInResult is the outcome of a full sign-in: the resolved user key, the
// signed session artifact, and whether the credential reached the store.
// PersistErr is informational; a failed upsert does not fail the sign-in.
type SignInResult struct {
	UserID     string
	Session    string
	Persisted  bool
	PersistErr error
}

// Exchange swaps an authorization code for the provider's account bundle.
func (p *Pipeline) Exchange(ctx context.Context, code string) (Bundle, error) {
	ctx, span := instrumentation.StartSignInSpan(ctx, "exchange")
	defer span.End()

	t, err := p.config.Exchange(ctx, code)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return Bundle{}, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	instrumentation.SetSpanSuccess(span)
	return bundleFromToken(t), nil
}

// PersistResult reports the outcome of the persist stage. StoreErr is the
// tolerated upsert failure, if any.
type PersistResult struct {
	UserID   string
	StoreErr error
}

// Persist resolves the user key and upserts the delegated credential.
// A missing identity is fatal to the sign-in attempt. A failed upsert is
// not; the sign-in continues and StoreErr records the failure.
func (p *Pipeline) Persist(ctx context.Context, bundle Bundle) (PersistResult, error) {
	ctx, span := instrumentation.StartSignInSpan(ctx, "persist")
	defer span.End()

	userID, err := p.resolver.Resolve(ctx, bundle)
	if err != nil || userID == "" {
		p.logger.Warn("sign-in denied, identity unresolved", logging.Err(err))
		if err == nil {
			err = ErrIdentityUnresolved
		}
		instrumentation.SetSpanError(span, err)
		return PersistResult{}, err
	}

	cred := tokenstore.Credential{
		UserID:       userID,
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		ExpiresAt:    bundle.ExpiresAt,
		Scope:        bundle.Scope,
		TokenType:    bundle.TokenType,
		IDToken:      bundle.IDToken,
	}

	if storeErr := p.store.Upsert(ctx, cred); storeErr != nil {
		p.logger.Error("credential upsert failed, sign-in proceeds",
			logging.UserHash(userID),
			logging.Err(storeErr))
		p.metrics.RecordTokenPersist(ctx, instrumentation.StatusError)
		instrumentation.SetSpanError(span, storeErr)
		return PersistResult{UserID: userID, StoreErr: storeErr}, nil
	}

	p.logger.Info("credential upserted", logging.UserHash(userID))
	p.metrics.RecordTokenPersist(ctx, instrumentation.StatusSuccess)
	instrumentation.SetSpanSuccess(span)
	return PersistResult{UserID: userID}, nil
}

// Project copies the token pair into the signed session artifact.
func (p *Pipeline) Project(userID string, bundle Bundle) (string, error) {
	return p.bridge.Issue(userID, bundle.AccessToken, bundle.RefreshToken)
}

// SignIn runs exchange, persist, and project in order for one
// authentication event.
func (p *Pipeline) SignIn(ctx context.Context, code string) (SignInResult, error) {
	bundle, err := p.Exchange(ctx, code)
	if err != nil {
		p.metrics.RecordSignIn(ctx, instrumentation.StatusError)
		return SignInResult{}, err
	}

	persisted, err := p.Persist(ctx, bundle)
	if err != nil {
		p.metrics.RecordSignIn(ctx, instrumentation.StatusError)
		return SignInResult{}, err
	}

	signed, err := p.Project(persisted.UserID, bundle)
	if err != nil {
		p.metrics.RecordSignIn(ctx, instrumentation.StatusError)
		return SignInResult{}, fmt.Errorf("failed to project session: %w", err)
	}

	p.metrics.RecordSignIn(ctx, instrumentation.StatusSuccess)
	return SignInResult{
		UserID:     persisted.UserID,
		Session:    signed,
		Persisted:  persisted.StoreErr == nil,
		PersistErr: persisted.StoreErr,
	}, nil
}

// Config returns the OAuth configuration driving the pipeline.
func (p *Pipeline) Config() *oauth2.Config {
	return p.config
}
