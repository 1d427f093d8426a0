package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStore defines durable storage of one balance per owner,
// with isolated multi-record atomic updates through AccountTx
type AccountStore interface {
	// GetBalance reads the committed balance of an owner's account.
	// Returns ErrAccountNotFound if the owner has no account.
	GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error)

	// Create creates a new account
	// Returns ErrAccountExists if the owner already has one
	Create(ctx context.Context, account *Account) error

	// BeginTx acquires an isolated working context.
	// Writes issued through the handle are invisible to others until Commit.
	BeginTx(ctx context.Context) (AccountTx, error)
}

// AccountTx is a transaction handle on an AccountStore.
// Exactly one of Commit or Abort finalizes it; Abort after Commit is a no-op.
type AccountTx interface {
	// ReadForUpdate reads an owner's balance within the transaction.
	// The value stays valid until the handle is finalized: a concurrent
	// transaction changing it either waits or fails with ErrConflict.
	ReadForUpdate(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error)

	// AdjustBalance applies balance += delta within the transaction.
	// It does not enforce non-negativity; callers validate against ReadForUpdate.
	AdjustBalance(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) error

	// RecordTransfer stores the transfer record within the transaction
	RecordTransfer(ctx context.Context, transfer *Transfer) error

	// Commit applies every write issued since BeginTx, all or nothing.
	// Returns ErrConflict when nothing was applied and a retry is safe,
	// ErrCommitOutcomeUnknown when the outcome could not be determined.
	Commit() error

	// Abort discards every write issued since BeginTx
	Abort() error
}

// UserRepository defines the interface for user persistence operations
type UserRepository interface {
	// Create creates a new user
	// Returns ErrUserExists if the email is already registered
	Create(ctx context.Context, user *User) error

	// CreateWithAccount creates a user and the user's account in one atomic step.
	// On any error neither record is written.
	// Returns ErrUserExists or ErrAccountExists on duplicates.
	CreateWithAccount(ctx context.Context, user *User, account *Account) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Search returns users whose first or last name contains term
	// (case-insensitive, literal), excluding excludeID
	Search(ctx context.Context, term string, excludeID uuid.UUID, limit int) ([]*User, error)
}

// TransferRepository defines read access to committed transfer history
type TransferRepository interface {
	// List retrieves a paginated list of transfers involving ownerID, newest first
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Transfer, error)

	// Count returns the number of transfers involving ownerID
	Count(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// EventPublisher announces committed transfers to other services
type EventPublisher interface {
	PublishTransferCommitted(ctx context.Context, event TransferCommitted) error
}
