package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is a customer's account activity over a date range.
type Statement struct {
	CustomerID   int64              `json:"customerId"`
	CustomerName string             `json:"customerName"`
	From         time.Time          `json:"from"`
	To           time.Time          `json:"to"`
	Accounts     []AccountStatement `json:"accounts"`
}

// AccountStatement lists one account's movements inside the statement range.
type AccountStatement struct {
	AccountNumber  string          `json:"accountNumber"`
	AccountType    AccountType     `json:"accountType"`
	Active         bool            `json:"active"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	TotalCredits   decimal.Decimal `json:"totalCredits"`
	TotalDebits    decimal.Decimal `json:"totalDebits"`
	Movements      []Movement      `json:"movements"`
}
