package app

import (
	"context"
	"testing"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount_Validation(t *testing.T) {
	service := NewAccountService(store.NewMemoryRepository(time.Second))

	tests := []struct {
		name  string
		input CreateAccountInput
		want  error
	}{
		{name: "blank number", input: CreateAccountInput{Number: " ", Type: "SAVINGS", CustomerID: 1}, want: domain.ErrAccountNumberRequired},
		{name: "bad type", input: CreateAccountInput{Number: "478758", Type: "GOLD", CustomerID: 1}, want: domain.ErrInvalidAccountType},
		{name: "negative balance", input: CreateAccountInput{Number: "478758", Type: "SAVINGS", InitialBalance: dec("-1"), CustomerID: 1}, want: domain.ErrInvalidInitialBalance},
		{name: "sub-cent balance", input: CreateAccountInput{Number: "478758", Type: "SAVINGS", InitialBalance: dec("1.005"), CustomerID: 1}, want: domain.ErrInvalidInitialBalance},
		{name: "missing customer", input: CreateAccountInput{Number: "478758", Type: "SAVINGS"}, want: domain.ErrInvalidCustomerID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateAccount(context.Background(), tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository(time.Second)
	service := NewAccountService(repo)

	created, err := service.CreateAccount(ctx, CreateAccountInput{
		Number:         " 478758 ",
		Type:           "savings",
		InitialBalance: dec("2000.00"),
		Active:         true,
		CustomerID:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, "478758", created.Number)
	assert.Equal(t, domain.SavingsAccount, created.Type)

	_, err = service.CreateAccount(ctx, CreateAccountInput{Number: "478758", Type: "CHECKING", CustomerID: 2})
	assert.ErrorIs(t, err, domain.ErrDuplicateAccountNumber)

	updated, err := service.UpdateAccount(ctx, created.ID, UpdateAccountInput{Type: "CHECKING", Active: false, CustomerID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckingAccount, updated.Type)
	assert.False(t, updated.Active)
	assert.True(t, updated.Balance.Equal(dec("2000.00")))

	list, err := service.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	engine := NewLedgerEngine(repo, WithLedgerLogger(testLogger()))
	_, err = engine.ApplyMovement(ctx, "478758", domain.Debit, dec("575"))
	require.NoError(t, err)
	assert.ErrorIs(t, service.DeleteAccount(ctx, created.ID), domain.ErrAccountHasMovements)

	_, err = service.UpdateAccount(ctx, 999, UpdateAccountInput{Type: "SAVINGS", CustomerID: 1})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
