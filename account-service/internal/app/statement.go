package app

import (
	"context"
	"time"

	"github.com/Lgsalgado/banking-system-backend/account-service/internal/domain"
	"github.com/Lgsalgado/banking-system-backend/account-service/internal/store"
	"github.com/shopspring/decimal"
)

// StatementService assembles account statements from the ledger and the
// customer projection. It reads whatever is committed and writes nothing.
type StatementService struct {
	projections store.ProjectionRepository
	accounts    store.AccountRepository
	movements   store.MovementRepository
}

func NewStatementService(projections store.ProjectionRepository, accounts store.AccountRepository, movements store.MovementRepository) *StatementService {
	return &StatementService{projections: projections, accounts: accounts, movements: movements}
}

// AccountStatement lists every account of the customer with the movements
// recorded between the start of startDate and the end of endDate (UTC days).
func (s *StatementService) AccountStatement(ctx context.Context, customerID int64, startDate, endDate time.Time) (*domain.Statement, error) {
	from := startOfDay(startDate)
	to := startOfDay(endDate).AddDate(0, 0, 1)
	if !from.Before(to) {
		return nil, domain.ErrInvalidDateRange
	}

	customer, err := s.projections.FindProjection(ctx, customerID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListAccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrCustomerHasNoAccounts
	}

	statement := &domain.Statement{
		CustomerID:   customer.CustomerID,
		CustomerName: customer.Name,
		From:         from,
		To:           to,
		Accounts:     make([]domain.AccountStatement, 0, len(accounts)),
	}
	for _, account := range accounts {
		movements, err := s.movements.ListMovements(ctx, account.ID, from, to)
		if err != nil {
			return nil, err
		}

		entry := domain.AccountStatement{
			AccountNumber:  account.Number,
			AccountType:    account.Type,
			Active:         account.Active,
			CurrentBalance: account.Balance,
			TotalCredits:   decimal.Zero,
			TotalDebits:    decimal.Zero,
			Movements:      movements,
		}
		if entry.Movements == nil {
			entry.Movements = []domain.Movement{}
		}
		for _, m := range movements {
			if m.Type == domain.Credit {
				entry.TotalCredits = entry.TotalCredits.Add(m.Value)
			} else {
				entry.TotalDebits = entry.TotalDebits.Add(m.Value)
			}
		}
		statement.Accounts = append(statement.Accounts, entry)
	}
	return statement, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
