/**
 * @description
 * Core domain model for a bank account owned by the account-service.
 *
 * @notes
 * - CustomerID is a reference to the identity service's customer; this service
 *   does not own the customer lifecycle.
 * - Balance is only ever changed by applying a Movement.
 */
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType defines the product type of an account.
type AccountType string

const (
	SavingsAccount  AccountType = "SAVINGS"
	CheckingAccount AccountType = "CHECKING"
)

// MoneyScale is the number of fractional digits stored for any amount.
const MoneyScale = 2

// ParseAccountType accepts the canonical names case-insensitively.
func ParseAccountType(raw string) (AccountType, error) {
	switch AccountType(strings.ToUpper(strings.TrimSpace(raw))) {
	case SavingsAccount:
		return SavingsAccount, nil
	case CheckingAccount:
		return CheckingAccount, nil
	}
	return "", ErrInvalidAccountType
}

// Account represents a customer's account.
type Account struct {
	ID         int64           `json:"id"`
	Number     string          `json:"accountNumber"`
	Type       AccountType     `json:"accountType"`
	Balance    decimal.Decimal `json:"balance"`
	Active     bool            `json:"active"`
	CustomerID int64           `json:"customerId"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ValidAmount reports whether v fits the stored money scale.
func ValidAmount(v decimal.Decimal) bool {
	return v.Equal(v.Round(MoneyScale))
}
