package domain

import (
	"errors"
	"fmt"
)

// Store errors. Every AccountStore, UserRepository and TransferRepository
// implementation reports failures through these sentinels (wrapped).
var (
	// ErrAccountNotFound is returned when no account exists for an owner ID
	ErrAccountNotFound = errors.New("account not found")

	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when an email is already registered
	ErrUserExists = errors.New("user already exists")

	// ErrAccountExists is returned when an owner already has an account
	ErrAccountExists = errors.New("account already exists")

	// ErrConflict is returned when the store could not serialize a transaction
	// (serialization failure, deadlock, lock timeout). Nothing was committed.
	ErrConflict = errors.New("transaction conflict")

	// ErrStoreUnavailable is returned on I/O or infrastructure failure before commit.
	// Nothing was committed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCommitOutcomeUnknown is returned when a commit was sent but its
	// acknowledgement was lost. The transaction may or may not have been applied.
	ErrCommitOutcomeUnknown = errors.New("commit outcome unknown")

	// ErrTxDone is returned when a transaction handle is used after commit or abort
	ErrTxDone = errors.New("transaction already finished")
)

// Auth errors
var (
	// ErrInvalidCredentials is returned when the password does not match
	ErrInvalidCredentials = errors.New("wrong password")

	// ErrInvalidToken is returned when a session token fails verification
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError reports malformed input outside of the transfer taxonomy
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
