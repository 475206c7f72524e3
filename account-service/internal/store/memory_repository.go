/**
 * @description
 * In-memory implementation of the account-service repositories, used for local
 * runs (STORE_DRIVER=memory) and tests.
 *
 * @notes
 * - A ledger unit stages its writes and applies them only when fn succeeds, so a
 *   failed unit leaves no trace.
 * - LockAccountByNumber holds a per-account lock until the unit ends, giving the
 *   same exclusion as a row lock.
 */
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/pkg/keylock"
	"github.com/shopspring/decimal"
)

// MemoryRepository implements Repository in process memory.
type MemoryRepository struct {
	mu             sync.RWMutex
	accounts       map[int64]domain.Account
	accountNumbers map[string]int64
	movements      map[int64][]domain.Movement
	projections    map[int64]domain.CustomerProjection
	nextAccountID  int64
	nextMovementID int64

	rowLocks    *keylock.Locker
	lockTimeout time.Duration
	now         func() time.Time
}

// NewMemoryRepository creates an empty repository. lockTimeout bounds the wait
// for an account lock inside a ledger unit; zero waits for the caller's context.
func NewMemoryRepository(lockTimeout time.Duration) *MemoryRepository {
	return &MemoryRepository{
		accounts:       make(map[int64]domain.Account),
		accountNumbers: make(map[string]int64),
		movements:      make(map[int64][]domain.Movement),
		projections:    make(map[int64]domain.CustomerProjection),
		rowLocks:       keylock.New(),
		lockTimeout:    lockTimeout,
		now:            time.Now,
	}
}

func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx := &memoryLedgerTx{repo: r, balances: make(map[int64]decimal.Decimal)}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	for id, balance := range tx.balances {
		account, ok := r.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound
		}
		account.Balance = balance
		account.UpdatedAt = now
		r.accounts[id] = account
	}
	for _, m := range tx.movements {
		r.movements[m.AccountID] = append(r.movements[m.AccountID], m)
	}
	return nil
}

type memoryLedgerTx struct {
	repo      *MemoryRepository
	unlocks   []func()
	locked    map[int64]bool
	balances  map[int64]decimal.Decimal
	movements []domain.Movement
}

func (t *memoryLedgerTx) LockAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	lockCtx := ctx
	if t.repo.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, t.repo.lockTimeout)
		defer cancel()
	}

	unlock, err := t.repo.rowLocks.Lock(lockCtx, number)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrAccountBusy
	}
	t.unlocks = append(t.unlocks, unlock)

	account, err := t.repo.FindAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if t.locked == nil {
		t.locked = make(map[int64]bool)
	}
	t.locked[account.ID] = true
	return account, nil
}

func (t *memoryLedgerTx) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	if !t.locked[accountID] {
		return errors.New("memory store: balance update on an account not locked in this unit")
	}
	t.balances[accountID] = balance
	return nil
}

func (t *memoryLedgerTx) InsertMovement(ctx context.Context, m *domain.Movement) error {
	t.repo.mu.Lock()
	t.repo.nextMovementID++
	m.ID = t.repo.nextMovementID
	t.repo.mu.Unlock()

	t.movements = append(t.movements, *m)
	return nil
}

func (t *memoryLedgerTx) release() {
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accountNumbers[account.Number]; exists {
		return domain.ErrDuplicateAccountNumber
	}

	r.nextAccountID++
	now := r.now().UTC()
	account.ID = r.nextAccountID
	account.CreatedAt = now
	account.UpdatedAt = now

	r.accounts[account.ID] = *account
	r.accountNumbers[account.Number] = account.ID
	return nil
}

func (r *MemoryRepository) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.accountNumbers[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	account := r.accounts[id]
	return &account, nil
}

func (r *MemoryRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return r.filterAccounts(func(domain.Account) bool { return true }), nil
}

func (r *MemoryRepository) ListAccountsByCustomer(ctx context.Context, customerID int64) ([]domain.Account, error) {
	return r.filterAccounts(func(a domain.Account) bool { return a.CustomerID == customerID }), nil
}

func (r *MemoryRepository) filterAccounts(keep func(domain.Account) bool) []domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if keep(a) {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts
}

func (r *MemoryRepository) UpdateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	stored.Type = account.Type
	stored.Active = account.Active
	stored.CustomerID = account.CustomerID
	stored.UpdatedAt = r.now().UTC()
	r.accounts[account.ID] = stored

	account.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if len(r.movements[id]) > 0 {
		return domain.ErrAccountHasMovements
	}
	delete(r.accounts, id)
	delete(r.accountNumbers, account.Number)
	return nil
}

func (r *MemoryRepository) ListMovements(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Movement
	for _, m := range r.movements[accountID] {
		if !m.Timestamp.Before(from) && m.Timestamp.Before(to) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *MemoryRepository) FindProjection(ctx context.Context, customerID int64) (*domain.CustomerProjection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projections[customerID]
	if !ok {
		return nil, domain.ErrProjectionNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) UpsertProjection(ctx context.Context, p domain.CustomerProjection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.projections[p.CustomerID] = p
	return nil
}
