package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS progress_records (
		owner      BYTEA PRIMARY KEY,
		layout_tag SMALLINT NOT NULL,
		data       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		identity      BYTEA PRIMARY KEY,
		username      TEXT UNIQUE,
		display_name  TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		is_guest      BOOLEAN NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
