package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account is the balance record keyed by user identity. Identities are created
// and deleted by the surrounding user directory; an account document appears
// implicitly (balance 0) on first mutation and is never removed here.
type Account struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	Balance   int64     `bson:"balance" json:"balance"` // minor units, never negative
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// BalanceDecimal returns the balance as a display decimal.
func (a *Account) BalanceDecimal() decimal.Decimal {
	return FromMinorUnits(a.Balance)
}

// HasSufficientBalance checks if the account covers the given amount.
func (a *Account) HasSufficientBalance(minor int64) bool {
	return a.Balance >= minor
}

// Validate checks structural integrity of a stored account document.
func (a *Account) Validate() error {
	if a.UserID <= 0 {
		return fmt.Errorf("account user id must be positive, got %d", a.UserID)
	}
	if a.Balance < 0 {
		return fmt.Errorf("account balance must not be negative, got %d", a.Balance)
	}
	return nil
}
