/**
 * @description
 * PostgreSQL implementation of the account-service repositories.
 *
 * Key features:
 * - Ledger units run in one transaction; the account row is locked with
 *   SELECT ... FOR UPDATE and the wait is bounded by SET LOCAL lock_timeout.
 * - Amounts travel as text and are cast to NUMERIC in SQL so no precision is
 *   lost through floating point.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver and pool.
 * - github.com/shopspring/decimal: Decimal amounts.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgLockNotAvailable    = "55P03"
)

const accountColumns = `id, account_number, account_type, balance::text, active, customer_id, created_at, updated_at`

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresRepository creates a repository. lockTimeout bounds how long a
// ledger unit waits for an account row lock; zero leaves the server default.
func NewPostgresRepository(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, lockTimeout: lockTimeout}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account domain.Account
		balance string
	)
	if err := row.Scan(
		&account.ID,
		&account.Number,
		&account.Type,
		&balance,
		&account.Active,
		&account.CustomerID,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance of account %d: %w", account.ID, err)
	}
	account.Balance = parsed
	return &account, nil
}

func findAccount(ctx context.Context, q rowQuerier, where string, arg any) (*domain.Account, error) {
	account, err := scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		if pgErrorCode(err) == pgLockNotAvailable {
			return nil, domain.ErrAccountBusy
		}
		return nil, err
	}
	return account, nil
}

// WithinTx runs fn in a transaction that commits only if fn succeeds.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(&postgresLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if pgErrorCode(err) == pgLockNotAvailable {
			return domain.ErrAccountBusy
		}
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

type postgresLedgerTx struct {
	tx pgx.Tx
}

func (t *postgresLedgerTx) LockAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return findAccount(ctx, t.tx, `account_number = $1 FOR UPDATE`, number)
}

func (t *postgresLedgerTx) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET balance = $2::numeric, updated_at = NOW() WHERE id = $1`,
		accountID, balance.StringFixed(domain.MoneyScale),
	)
	if err != nil {
		return fmt.Errorf("update balance of account %d: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (t *postgresLedgerTx) InsertMovement(ctx context.Context, m *domain.Movement) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO movements (account_id, created_at, movement_type, value, balance)
        VALUES ($1, $2, $3, $4::numeric, $5::numeric)
        RETURNING id
    `,
		m.AccountID,
		m.Timestamp,
		string(m.Type),
		m.Value.StringFixed(domain.MoneyScale),
		m.Balance.StringFixed(domain.MoneyScale),
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert movement for account %d: %w", m.AccountID, err)
	}
	return nil
}

// CreateAccount inserts a new account and fills in its id and timestamps.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO accounts (account_number, account_type, balance, active, customer_id)
        VALUES ($1, $2, $3::numeric, $4, $5)
        RETURNING id, created_at, updated_at
    `,
		account.Number,
		string(account.Type),
		account.Balance.StringFixed(domain.MoneyScale),
		account.Active,
		account.CustomerID,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return domain.ErrDuplicateAccountNumber
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	return findAccount(ctx, r.db, `id = $1`, id)
}

func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return findAccount(ctx, r.db, `account_number = $1`, number)
}

func (r *PostgresRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return r.listAccounts(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
}

func (r *PostgresRepository) ListAccountsByCustomer(ctx context.Context, customerID int64) ([]domain.Account, error) {
	return r.listAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE customer_id = $1 ORDER BY id`, customerID)
}

func (r *PostgresRepository) listAccounts(ctx context.Context, query string, args ...any) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Account, error) {
		account, err := scanAccount(row)
		if err != nil {
			return domain.Account{}, err
		}
		return *account, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount changes type, active flag and owner. Number and balance are untouched.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, account *domain.Account) error {
	err := r.db.QueryRow(ctx, `
        UPDATE accounts SET account_type = $2, active = $3, customer_id = $4, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `, account.ID, string(account.Type), account.Active, account.CustomerID).Scan(&account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("update account %d: %w", account.ID, err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.ErrAccountHasMovements
		}
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) ListMovements(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Movement, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, account_id, created_at, movement_type, value::text, balance::text
        FROM movements
        WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at, id
    `, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list movements of account %d: %w", accountID, err)
	}

	movements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Movement, error) {
		var (
			m              domain.Movement
			value, balance string
		)
		if err := row.Scan(&m.ID, &m.AccountID, &m.Timestamp, &m.Type, &value, &balance); err != nil {
			return m, err
		}
		var err error
		if m.Value, err = decimal.NewFromString(value); err != nil {
			return m, err
		}
		if m.Balance, err = decimal.NewFromString(balance); err != nil {
			return m, err
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan movements: %w", err)
	}
	return movements, nil
}

func (r *PostgresRepository) FindProjection(ctx context.Context, customerID int64) (*domain.CustomerProjection, error) {
	var p domain.CustomerProjection
	err := r.db.QueryRow(ctx,
		`SELECT customer_id, name, updated_at FROM customer_projections WHERE customer_id = $1`,
		customerID,
	).Scan(&p.CustomerID, &p.Name, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectionNotFound
		}
		return nil, fmt.Errorf("find projection %d: %w", customerID, err)
	}
	return &p, nil
}

// UpsertProjection writes the projection; the last write for an id wins.
func (r *PostgresRepository) UpsertProjection(ctx context.Context, p domain.CustomerProjection) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO customer_projections (customer_id, name, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (customer_id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
    `, p.CustomerID, p.Name, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert projection %d: %w", p.CustomerID, err)
	}
	return nil
}
