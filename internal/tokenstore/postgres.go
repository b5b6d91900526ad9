package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailbae/dashboard/internal/logging"
)

// PostgresStore persists credentials in the hosted Postgres store.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Migrate creates the credential table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrationSQL := `
		CREATE TABLE IF NOT EXISTS gmail_tokens (
		    user_id VARCHAR(255) PRIMARY KEY,
		    access_token TEXT NOT NULL,
		    refresh_token TEXT,
		    expires_at TIMESTAMP WITH TIME ZONE,
		    scope TEXT,
		    token_type VARCHAR(64),
		    id_token TEXT
		);
	`
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Upsert writes the credential, replacing every field of any prior record
// for the same user.
func (s *PostgresStore) Upsert(ctx context.Context, cred Credential) error {
	upsertSQL := `
		INSERT INTO gmail_tokens (user_id, access_token, refresh_token, expires_at, scope, token_type, id_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
		    access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    scope = EXCLUDED.scope,
		    token_type = EXCLUDED.token_type,
		    id_token = EXCLUDED.id_token
	`

	_, err := s.pool.Exec(ctx, upsertSQL,
		cred.UserID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt,
		cred.Scope, cred.TokenType, cred.IDToken)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	s.logger.Debug("credential upserted",
		logging.UserHash(cred.UserID),
		slog.Time("expires_at", cred.ExpiresAt))
	return nil
}

// Get returns the credential for a user, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Credential, error) {
	selectSQL := `
		SELECT user_id, access_token, refresh_token, expires_at, scope, token_type, id_token
		FROM gmail_tokens
		WHERE user_id = $1
	`

	var cred Credential
	err := s.pool.QueryRow(ctx, selectSQL, userID).Scan(
		&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt,
		&cred.Scope, &cred.TokenType, &cred.IDToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read credential: %w", err)
	}
	return cred, nil
}
