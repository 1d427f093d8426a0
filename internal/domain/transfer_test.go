package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransferRequest_Validate(t *testing.T) {
	src := uuid.New()
	dst := uuid.New()

	tests := []struct {
		name       string
		req        TransferRequest
		wantReason Reason
	}{
		{
			name:       "Valid request should pass",
			req:        TransferRequest{SourceID: src, DestinationID: dst, Amount: decimal.NewFromInt(30)},
			wantReason: "",
		},
		{
			name:       "Zero amount should fail with INVALID_AMOUNT",
			req:        TransferRequest{SourceID: src, DestinationID: dst, Amount: decimal.Zero},
			wantReason: ReasonInvalidAmount,
		},
		{
			name:       "Negative amount should fail with INVALID_AMOUNT",
			req:        TransferRequest{SourceID: src, DestinationID: dst, Amount: decimal.NewFromInt(-10)},
			wantReason: ReasonInvalidAmount,
		},
		{
			name:       "Amount is checked before identities",
			req:        TransferRequest{SourceID: src, DestinationID: src, Amount: decimal.Zero},
			wantReason: ReasonInvalidAmount,
		},
		{
			name:       "Self transfer should fail with INVALID_REQUEST",
			req:        TransferRequest{SourceID: src, DestinationID: src, Amount: decimal.NewFromInt(1)},
			wantReason: ReasonInvalidRequest,
		},
		{
			name:       "Missing destination should fail with INVALID_REQUEST",
			req:        TransferRequest{SourceID: src, Amount: decimal.NewFromInt(1)},
			wantReason: ReasonInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantReason, ReasonOf(err))
		})
	}
}

func TestReason_Classification(t *testing.T) {
	assert.True(t, ReasonTransactionConflict.Retryable())
	assert.True(t, ReasonStoreUnavailable.Retryable())
	assert.False(t, ReasonIndeterminate.Retryable())
	assert.False(t, ReasonInsufficientFunds.Retryable())

	assert.True(t, ReasonInsufficientFunds.IsValidation())
	assert.True(t, ReasonDestinationNotFound.IsValidation())
	assert.False(t, ReasonIndeterminate.IsValidation())
	assert.False(t, ReasonTransactionConflict.IsValidation())
}

func TestTransferState_IsTerminal(t *testing.T) {
	assert.True(t, TransferStateRejected.IsTerminal())
	assert.True(t, TransferStateCommitted.IsTerminal())
	assert.True(t, TransferStateAbortedOnFailure.IsTerminal())
	assert.False(t, TransferStateValidating.IsTerminal())
	assert.False(t, TransferStateCommitting.IsTerminal())
}

func TestTransferError_Wrapping(t *testing.T) {
	err := fmt.Errorf("engine: %w", NewTransferError(ReasonStoreUnavailable, ErrStoreUnavailable))

	assert.Equal(t, ReasonStoreUnavailable, ReasonOf(err))
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, Reason(""), ReasonOf(errors.New("plain")))
	assert.Equal(t, "INSUFFICIENT_FUNDS", NewTransferError(ReasonInsufficientFunds, nil).Error())
}

func TestNewTransferCommitted(t *testing.T) {
	tr := &Transfer{
		ID:            uuid.New(),
		SourceID:      uuid.New(),
		DestinationID: uuid.New(),
		Amount:        decimal.NewFromInt(30),
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	ev := NewTransferCommitted(tr)
	assert.Equal(t, tr.ID.String(), ev.TransferID)
	assert.Equal(t, "30.00", ev.Amount)
	assert.Equal(t, tr.CreatedAt, ev.CommittedAt)
}
