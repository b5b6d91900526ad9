package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mailbae/dashboard/internal/prefs"
	"github.com/mailbae/dashboard/internal/tokenstore"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Long: `Create the token and settings tables in the configured Postgres
database. Safe to run repeatedly; existing tables are left untouched.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			databaseURL := viper.GetString("database.url")
			if databaseURL == "" {
				return fmt.Errorf("database.url must be configured")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			pool, err := pgxpool.New(ctx, databaseURL)
			if err != nil {
				return fmt.Errorf("failed to create connection pool: %w", err)
			}
			defer pool.Close()

			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}

			logger := slog.Default()
			if err := tokenstore.NewPostgresStore(pool, logger).Migrate(ctx); err != nil {
				return err
			}
			if err := prefs.NewPostgresStore(pool, logger).Migrate(ctx); err != nil {
				return err
			}

			fmt.Println("migrations applied")
			return nil
		},
	}

	return cmd
}
