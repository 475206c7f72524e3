/**
 * @description
 * The ledger engine applies one movement to one account as a single atomic
 * state transition: validate, lock the account, compute the new balance, refuse
 * overdrafts, then persist the balance and the movement together.
 *
 * @notes
 * - Input is validated before any store call.
 * - Callers on the same account are serialised through a keyed lock whose wait
 *   is bounded; a timeout surfaces as the retryable domain.ErrAccountBusy.
 * - Accounts never share a lock key, so different accounts never block each other.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/Lgsalgado/banking-system-backend/pkg/keylock"
	"github.com/shopspring/decimal"
)

// DefaultLockTimeout bounds the wait for an account lock.
const DefaultLockTimeout = 2 * time.Second

// Clock supplies movement timestamps.
type Clock func() time.Time

// LedgerEngine applies movements to accounts.
type LedgerEngine struct {
	store       store.LedgerStore
	locks       *keylock.Locker
	lockTimeout time.Duration
	now         Clock
	logger      *slog.Logger
}

// LedgerOption customises a LedgerEngine.
type LedgerOption func(*LedgerEngine)

// WithClock sets the time source for movement timestamps.
func WithClock(clock Clock) LedgerOption {
	return func(e *LedgerEngine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithLockTimeout sets how long a caller waits for a busy account.
func WithLockTimeout(timeout time.Duration) LedgerOption {
	return func(e *LedgerEngine) {
		if timeout > 0 {
			e.lockTimeout = timeout
		}
	}
}

// WithLedgerLogger sets the logger.
func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(e *LedgerEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewLedgerEngine creates an engine over the given store.
func NewLedgerEngine(s store.LedgerStore, opts ...LedgerOption) *LedgerEngine {
	e := &LedgerEngine{
		store:       s,
		locks:       keylock.New(),
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "ledger_engine")
	return e
}

// ApplyMovement applies a debit or credit of magnitude to the account with the
// given number and returns the stored movement. On any error nothing is persisted.
func (e *LedgerEngine) ApplyMovement(ctx context.Context, accountNumber string, movementType domain.MovementType, magnitude decimal.Decimal) (*domain.Movement, error) {
	number := strings.TrimSpace(accountNumber)
	if err := validateMovement(number, movementType, magnitude); err != nil {
		return nil, err
	}

	unlock, err := e.lockAccount(ctx, number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var movement *domain.Movement
	err = e.store.WithinTx(ctx, func(tx store.LedgerTx) error {
		account, err := tx.LockAccountByNumber(ctx, number)
		if err != nil {
			return err
		}

		candidate, err := movementType.Apply(account.Balance, magnitude)
		if err != nil {
			return err
		}
		if candidate.IsNegative() {
			return domain.ErrInsufficientFunds
		}

		if err := tx.UpdateAccountBalance(ctx, account.ID, candidate); err != nil {
			return err
		}

		m := &domain.Movement{
			AccountID: account.ID,
			Timestamp: e.now().UTC(),
			Type:      movementType,
			Value:     magnitude,
			Balance:   candidate,
		}
		if err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		e.logRejection(number, movementType, magnitude, err)
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrAccountBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("apply movement to account %s: %w", number, err)
	}

	e.logger.Info("movement applied",
		"account_number", number,
		"movement_id", movement.ID,
		"movement_type", string(movementType),
		"value", magnitude.String(),
		"balance", movement.Balance.String(),
	)
	return movement, nil
}

func validateMovement(number string, movementType domain.MovementType, magnitude decimal.Decimal) error {
	if !movementType.Valid() {
		return domain.ErrUnknownMovementType
	}
	if magnitude.Sign() <= 0 || !domain.ValidAmount(magnitude) {
		return domain.ErrInvalidMagnitude
	}
	if number == "" {
		return domain.ErrAccountNumberRequired
	}
	return nil
}

func (e *LedgerEngine) lockAccount(ctx context.Context, number string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	unlock, err := e.locks.Lock(lockCtx, number)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("account lock wait exceeded", "account_number", number, "timeout", e.lockTimeout.String())
		return nil, domain.ErrAccountBusy
	}
	return unlock, nil
}

func (e *LedgerEngine) logRejection(number string, movementType domain.MovementType, magnitude decimal.Decimal, err error) {
	attrs := []any{
		"account_number", number,
		"movement_type", string(movementType),
		"value", magnitude.String(),
		"error", err,
	}
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrAccountNotFound):
		e.logger.Info("movement rejected", attrs...)
	case errors.Is(err, domain.ErrAccountBusy):
		e.logger.Warn("movement rejected", attrs...)
	default:
		e.logger.Error("movement failed", attrs...)
	}
}
