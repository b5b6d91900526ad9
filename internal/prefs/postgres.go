package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailbae/dashboard/internal/logging"
)

// PostgresStore persists preferences in the hosted Postgres store.
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

// Migrate creates the preference table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrationSQL := `
		CREATE TABLE IF NOT EXISTS user_preferences (
		    user_id VARCHAR(255) PRIMARY KEY,
		    timezone VARCHAR(64) NOT NULL,
		    since_hour SMALLINT NOT NULL
		);
	`
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Get returns the stored preference, or Defaults() if the user never
// saved one.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Preference, error) {
	selectSQL := `
		SELECT timezone, since_hour
		FROM user_preferences
		WHERE user_id = $1
	`

	var pref Preference
	err := s.pool.QueryRow(ctx, selectSQL, userID).Scan(&pref.Timezone, &pref.SinceHour)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Preference{}, fmt.Errorf("failed to read preferences: %w", err)
	}
	return pref, nil
}

// Put writes the preference, replacing any prior record for the user.
func (s *PostgresStore) Put(ctx context.Context, userID string, pref Preference) error {
	if err := pref.Validate(); err != nil {
		return err
	}

	upsertSQL := `
		INSERT INTO user_preferences (user_id, timezone, since_hour)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
		    timezone = EXCLUDED.timezone,
		    since_hour = EXCLUDED.since_hour
	`

	if _, err := s.pool.Exec(ctx, upsertSQL, userID, pref.Timezone, pref.SinceHour); err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	s.logger.Debug("preferences saved",
		logging.UserHash(userID),
		logging.Timezone(pref.Timezone),
		logging.SinceHour(pref.SinceHour))
	return nil
}
