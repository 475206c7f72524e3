package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType is the direction of a movement.
type MovementType string

const (
	Debit  MovementType = "DEBIT"
	Credit MovementType = "CREDIT"
)

// ParseMovementType accepts DEBIT/CREDIT in any case, plus the legacy
// spellings still sent by older clients. Anything else, including an empty
// value, is ErrUnknownMovementType.
func ParseMovementType(raw string) (MovementType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBIT", "DEBITO", "DÉBITO":
		return Debit, nil
	case "CREDIT", "CREDITO", "CRÉDITO":
		return Credit, nil
	}
	return "", ErrUnknownMovementType
}

// Valid reports whether t is one of the recognised types.
func (t MovementType) Valid() bool {
	return t == Debit || t == Credit
}

// Apply returns the balance that results from applying magnitude in direction t.
// The result may be negative; callers enforce the funds rule.
func (t MovementType) Apply(balance, magnitude decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case Credit:
		return balance.Add(magnitude), nil
	case Debit:
		return balance.Sub(magnitude), nil
	}
	return decimal.Zero, ErrUnknownMovementType
}

// Movement is an immutable record of one debit or credit. Balance is the
// account balance immediately after the movement was applied.
type Movement struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"accountId"`
	Timestamp time.Time       `json:"timestamp"`
	Type      MovementType    `json:"movementType"`
	Value     decimal.Decimal `json:"value"`
	Balance   decimal.Decimal `json:"balance"`
}

// SignedValue is Value with the sign of its direction.
func (m Movement) SignedValue() decimal.Decimal {
	if m.Type == Debit {
		return m.Value.Neg()
	}
	return m.Value
}
