package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS accounts (
    id             BIGSERIAL PRIMARY KEY,
    account_number TEXT NOT NULL UNIQUE,
    account_type   TEXT NOT NULL CHECK (account_type IN ('SAVINGS', 'CHECKING')),
    balance        NUMERIC(19,2) NOT NULL CHECK (balance >= 0),
    active         BOOLEAN NOT NULL DEFAULT TRUE,
    customer_id    BIGINT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_customer_id ON accounts (customer_id);

CREATE TABLE IF NOT EXISTS movements (
    id            BIGSERIAL PRIMARY KEY,
    account_id    BIGINT NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT,
    created_at    TIMESTAMPTZ NOT NULL,
    movement_type TEXT NOT NULL CHECK (movement_type IN ('DEBIT', 'CREDIT')),
    value         NUMERIC(19,2) NOT NULL CHECK (value > 0),
    balance       NUMERIC(19,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_movements_account_created ON movements (account_id, created_at);

CREATE TABLE IF NOT EXISTS customer_projections (
    customer_id BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the account-service tables when they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
