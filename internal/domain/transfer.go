package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reason is a stable code describing why a transfer did not commit
type Reason string

const (
	ReasonInvalidAmount       Reason = "INVALID_AMOUNT"
	ReasonInvalidRequest      Reason = "INVALID_REQUEST"
	ReasonSourceNotFound      Reason = "SOURCE_NOT_FOUND"
	ReasonDestinationNotFound Reason = "DESTINATION_NOT_FOUND"
	ReasonInsufficientFunds   Reason = "INSUFFICIENT_FUNDS"
	ReasonTransactionConflict Reason = "TRANSACTION_CONFLICT"
	ReasonStoreUnavailable    Reason = "STORE_UNAVAILABLE"
	// ReasonIndeterminate means the commit may or may not have been applied.
	// Callers must re-check balances instead of retrying.
	ReasonIndeterminate Reason = "INDETERMINATE"
)

// Retryable reports whether a fresh attempt is safe after this outcome
func (r Reason) Retryable() bool {
	return r == ReasonTransactionConflict || r == ReasonStoreUnavailable
}

// IsValidation reports whether the reason is an application-level rejection
// decided before any write was issued
func (r Reason) IsValidation() bool {
	switch r {
	case ReasonInvalidAmount, ReasonInvalidRequest, ReasonSourceNotFound,
		ReasonDestinationNotFound, ReasonInsufficientFunds:
		return true
	}
	return false
}

// TransferState tracks a single transfer through the engine
type TransferState string

const (
	TransferStateStarted          TransferState = "STARTED"
	TransferStateValidating       TransferState = "VALIDATING"
	TransferStateRejected         TransferState = "REJECTED"
	TransferStateCommitting       TransferState = "COMMITTING"
	TransferStateCommitted        TransferState = "COMMITTED"
	TransferStateAbortedOnFailure TransferState = "ABORTED_ON_FAILURE"
)

// IsTerminal reports whether no further transition is possible
func (s TransferState) IsTerminal() bool {
	return s == TransferStateRejected || s == TransferStateCommitted || s == TransferStateAbortedOnFailure
}

// TransferError carries a transfer failure reason and, for infrastructure
// failures, the underlying store error
type TransferError struct {
	Reason Reason
	Err    error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError creates a TransferError for reason wrapping err (may be nil)
func NewTransferError(reason Reason, err error) *TransferError {
	return &TransferError{Reason: reason, Err: err}
}

// ReasonOf extracts the transfer reason from err, or "" when err is not a TransferError
func ReasonOf(err error) Reason {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

// TransferRequest is the ephemeral input of a transfer. It is never persisted.
type TransferRequest struct {
	SourceID      uuid.UUID
	DestinationID uuid.UUID
	Amount        decimal.Decimal
}

// Validate performs the checks that need no store access, in order:
// amount first, then the identities.
func (r TransferRequest) Validate() error {
	if err := ValidateAmount(r.Amount); err != nil {
		return NewTransferError(ReasonInvalidAmount, err)
	}

	if r.SourceID == uuid.Nil || r.DestinationID == uuid.Nil {
		return NewTransferError(ReasonInvalidRequest, errors.New("source and destination must be set"))
	}

	if r.SourceID == r.DestinationID {
		return NewTransferError(ReasonInvalidRequest, errors.New("cannot transfer to the same account"))
	}

	return nil
}

// TransferResult is the synchronous outcome of a transfer
type TransferResult struct {
	TransferID uuid.UUID
	Success    bool
	State      TransferState
	Reason     Reason // empty on success
}

// Transfer is the committed record of a successful transfer.
// It is written in the same store transaction as the two balance adjustments.
type Transfer struct {
	ID            uuid.UUID
	SourceID      uuid.UUID
	DestinationID uuid.UUID
	Amount        decimal.Decimal // Always positive
	CreatedAt     time.Time
}

// Validate ensures the transfer record adheres to domain rules
func (t *Transfer) Validate() error {
	if t.ID == uuid.Nil {
		return errors.New("transfer ID cannot be empty")
	}
	if t.SourceID == t.DestinationID {
		return errors.New("transfer source and destination must differ")
	}
	return ValidateAmount(t.Amount)
}

// TransferCommitted is published after a transfer commits
type TransferCommitted struct {
	TransferID    string    `json:"transfer_id"`
	SourceID      string    `json:"source_id"`
	DestinationID string    `json:"destination_id"`
	Amount        string    `json:"amount"`
	CommittedAt   time.Time `json:"committed_at"`
}

// NewTransferCommitted builds the event payload for a committed transfer
func NewTransferCommitted(t *Transfer) TransferCommitted {
	return TransferCommitted{
		TransferID:    t.ID.String(),
		SourceID:      t.SourceID.String(),
		DestinationID: t.DestinationID.String(),
		Amount:        t.Amount.StringFixed(MoneyScale),
		CommittedAt:   t.CreatedAt,
	}
}
