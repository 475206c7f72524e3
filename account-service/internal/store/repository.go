/**
 * @description
 * Contracts for the account-service data access layer. Application code depends
 * on these interfaces, never on the PostgreSQL or in-memory implementations.
 *
 * @notes
 * - Movements are append-only: no contract here updates or deletes one.
 * - LedgerStore is the only way to change a balance. Everything done through the
 *   LedgerTx passed to WithinTx commits together or not at all.
 */
package store

import (
	"context"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerTx is the set of operations available inside one atomic ledger unit.
type LedgerTx interface {
	// LockAccountByNumber loads the account and holds an exclusive lock on it
	// until the unit ends. Returns domain.ErrAccountNotFound or domain.ErrAccountBusy.
	LockAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	// InsertMovement appends m and fills in its ID.
	InsertMovement(ctx context.Context, m *domain.Movement) error
}

// LedgerStore runs fn inside one atomic unit. fn returning an error rolls everything back.
type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// AccountRepository covers plain account CRUD. It never changes a balance.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListAccountsByCustomer(ctx context.Context, customerID int64) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
	DeleteAccount(ctx context.Context, id int64) error
}

// MovementRepository reads movements. Range is [from, to).
type MovementRepository interface {
	ListMovements(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Movement, error)
}

// ProjectionRepository stores the local customer read-model.
type ProjectionRepository interface {
	FindProjection(ctx context.Context, customerID int64) (*domain.CustomerProjection, error)
	UpsertProjection(ctx context.Context, projection domain.CustomerProjection) error
}

// Repository is everything the account-service persists.
type Repository interface {
	LedgerStore
	AccountRepository
	MovementRepository
	ProjectionRepository
}
