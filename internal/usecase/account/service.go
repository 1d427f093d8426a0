package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/payments-backend/internal/domain"
)

// AccountService handles read-only account queries
type AccountService struct {
	AccountStore domain.AccountStore
}

// NewAccountService creates a new AccountService instance
func NewAccountService(accountStore domain.AccountStore) *AccountService {
	return &AccountService{AccountStore: accountStore}
}

// GetBalance returns the committed balance of ownerID's account
func (s *AccountService) GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	if ownerID == uuid.Nil {
		return decimal.Zero, domain.NewValidationError("owner_id", "must be set")
	}
	return s.AccountStore.GetBalance(ctx, ownerID)
}
