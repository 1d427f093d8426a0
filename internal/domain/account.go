package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fraction digits a monetary amount may carry.
// Balances and amounts are stored as NUMERIC(20,2), i.e. integer minor units.
const MoneyScale = 2

// Account represents one user's monetary balance.
// OwnerID references the User that owns the account; the account never outlives it.
type Account struct {
	OwnerID   uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.OwnerID == uuid.Nil {
		return errors.New("account owner ID cannot be empty")
	}

	return ValidateBalance(a.Balance)
}

// ValidateBalance checks that balance is non-negative and expressible in minor units
func ValidateBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return errors.New("account balance cannot be negative")
	}
	if !fitsMoneyScale(balance) {
		return errors.New("account balance must have at most 2 decimal places")
	}
	return nil
}

// ValidateAmount checks that amount is a positive monetary value expressible in minor units
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be positive")
	}
	if !fitsMoneyScale(amount) {
		return errors.New("amount must have at most 2 decimal places")
	}
	return nil
}

func fitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}
