package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, repo *MemoryRepository, number string, balance string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		Number:     number,
		Type:       domain.SavingsAccount,
		Balance:    decimal.RequireFromString(balance),
		Active:     true,
		CustomerID: 1,
	}
	require.NoError(t, repo.CreateAccount(context.Background(), account))
	return account
}

func TestMemoryRepository_DuplicateAccountNumber(t *testing.T) {
	repo := NewMemoryRepository(time.Second)
	seedAccount(t, repo, "478758", "2000")

	err := repo.CreateAccount(context.Background(), &domain.Account{Number: "478758", Type: domain.CheckingAccount})
	assert.ErrorIs(t, err, domain.ErrDuplicateAccountNumber)
}

func TestMemoryRepository_WithinTxCommitsTogether(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(time.Second)
	account := seedAccount(t, repo, "478758", "2000")
	at := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

	err := repo.WithinTx(ctx, func(tx LedgerTx) error {
		locked, err := tx.LockAccountByNumber(ctx, "478758")
		if err != nil {
			return err
		}
		if err := tx.UpdateAccountBalance(ctx, locked.ID, decimal.NewFromInt(1425)); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, &domain.Movement{
			AccountID: locked.ID,
			Timestamp: at,
			Type:      domain.Debit,
			Value:     decimal.NewFromInt(575),
			Balance:   decimal.NewFromInt(1425),
		})
	})
	require.NoError(t, err)

	stored, err := repo.FindAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(1425)))

	movements, err := repo.ListMovements(ctx, account.ID, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, int64(1), movements[0].ID)
}

func TestMemoryRepository_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(time.Second)
	account := seedAccount(t, repo, "478758", "2000")
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(tx LedgerTx) error {
		locked, err := tx.LockAccountByNumber(ctx, "478758")
		if err != nil {
			return err
		}
		if err := tx.UpdateAccountBalance(ctx, locked.ID, decimal.Zero); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repo.FindAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(2000)))

	movements, err := repo.ListMovements(ctx, account.ID, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestMemoryRepository_LockTimesOutAsBusy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(20 * time.Millisecond)
	seedAccount(t, repo, "478758", "2000")

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- repo.WithinTx(ctx, func(tx LedgerTx) error {
			if _, err := tx.LockAccountByNumber(ctx, "478758"); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := repo.WithinTx(ctx, func(tx LedgerTx) error {
		_, err := tx.LockAccountByNumber(ctx, "478758")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAccountBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestMemoryRepository_UnknownAccountInTx(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(time.Second)

	err := repo.WithinTx(ctx, func(tx LedgerTx) error {
		_, err := tx.LockAccountByNumber(ctx, "000000")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMemoryRepository_DeleteRejectedWithMovements(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(time.Second)
	account := seedAccount(t, repo, "478758", "2000")
	empty := seedAccount(t, repo, "225487", "100")

	require.NoError(t, repo.WithinTx(ctx, func(tx LedgerTx) error {
		locked, err := tx.LockAccountByNumber(ctx, "478758")
		if err != nil {
			return err
		}
		return tx.InsertMovement(ctx, &domain.Movement{AccountID: locked.ID, Type: domain.Credit, Value: decimal.NewFromInt(1), Balance: decimal.NewFromInt(2001), Timestamp: time.Now()})
	}))

	assert.ErrorIs(t, repo.DeleteAccount(ctx, account.ID), domain.ErrAccountHasMovements)
	require.NoError(t, repo.DeleteAccount(ctx, empty.ID))
	_, err := repo.FindAccountByNumber(ctx, "225487")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMemoryRepository_UpdateKeepsNumberAndBalance(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(time.Second)
	account := seedAccount(t, repo, "478758", "2000")

	require.NoError(t, repo.UpdateAccount(ctx, &domain.Account{
		ID:         account.ID,
		Number:     "999999",
		Type:       domain.CheckingAccount,
		Balance:    decimal.NewFromInt(1),
		Active:     false,
		CustomerID: 2,
	}))

	stored, err := repo.FindAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "478758", stored.Number)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, domain.CheckingAccount, stored.Type)
	assert.False(t, stored.Active)
	assert.Equal(t, int64(2), stored.CustomerID)
}

func TestMemoryRepository_ProjectionUpsertAndListByCustomer(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(time.Second)

	_, err := repo.FindProjection(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrProjectionNotFound)

	require.NoError(t, repo.UpsertProjection(ctx, domain.CustomerProjection{CustomerID: 1, Name: "Jose Lema"}))
	require.NoError(t, repo.UpsertProjection(ctx, domain.CustomerProjection{CustomerID: 1, Name: "Jose M. Lema"}))

	p, err := repo.FindProjection(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jose M. Lema", p.Name)

	seedAccount(t, repo, "478758", "2000")
	accounts, err := repo.ListAccountsByCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	accounts, err = repo.ListAccountsByCustomer(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
