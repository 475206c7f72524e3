/**
 * @description
 * AccountService holds the account CRUD rules. Balances are never changed here:
 * an account is opened with its initial balance and from then on only the
 * ledger engine moves it.
 */
package app

import (
	"context"
	"strings"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/shopspring/decimal"
)

// AccountService manages accounts.
type AccountService struct {
	accountRepo store.AccountRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(accountRepo store.AccountRepository) *AccountService {
	return &AccountService{accountRepo: accountRepo}
}

// CreateAccountInput defines the input for opening an account.
type CreateAccountInput struct {
	Number         string
	Type           string
	InitialBalance decimal.Decimal
	Active         bool
	CustomerID     int64
}

// UpdateAccountInput lists the mutable account fields.
type UpdateAccountInput struct {
	Type       string
	Active     bool
	CustomerID int64
}

// CreateAccount validates and stores a new account.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	number := strings.TrimSpace(input.Number)
	if number == "" {
		return nil, domain.ErrAccountNumberRequired
	}
	accountType, err := domain.ParseAccountType(input.Type)
	if err != nil {
		return nil, err
	}
	if input.InitialBalance.IsNegative() || !domain.ValidAmount(input.InitialBalance) {
		return nil, domain.ErrInvalidInitialBalance
	}
	if input.CustomerID <= 0 {
		return nil, domain.ErrInvalidCustomerID
	}

	account := &domain.Account{
		Number:     number,
		Type:       accountType,
		Balance:    input.InitialBalance,
		Active:     input.Active,
		CustomerID: input.CustomerID,
	}
	if err := s.accountRepo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return s.accountRepo.FindAccountByID(ctx, id)
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.accountRepo.ListAccounts(ctx)
}

// UpdateAccount changes type, active flag and owner of an existing account.
func (s *AccountService) UpdateAccount(ctx context.Context, id int64, input UpdateAccountInput) (*domain.Account, error) {
	accountType, err := domain.ParseAccountType(input.Type)
	if err != nil {
		return nil, err
	}
	if input.CustomerID <= 0 {
		return nil, domain.ErrInvalidCustomerID
	}

	account, err := s.accountRepo.FindAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	account.Type = accountType
	account.Active = input.Active
	account.CustomerID = input.CustomerID

	if err := s.accountRepo.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes an account that has no movements.
func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	return s.accountRepo.DeleteAccount(ctx, id)
}
