package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL,
		gender          TEXT,
		identification  TEXT NOT NULL UNIQUE,
		address         TEXT,
		phone           TEXT,
		password_hash   TEXT NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		version         BIGINT NOT NULL DEFAULT 1,
		publish_pending BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_publish_pending ON customers (updated_at, id) WHERE publish_pending`,
}

// EnsureSchema creates the customers table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
