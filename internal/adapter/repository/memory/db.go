// Package memory provides in-process implementations of the domain
// repositories. Account transactions use optimistic concurrency: every
// account read under a transaction is version-checked at commit, and the
// first transaction to commit wins.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/payments-backend/internal/domain"
)

type accountRecord struct {
	balance   decimal.Decimal
	version   uint64
	createdAt time.Time
	updatedAt time.Time
}

// DB holds the committed state shared by the memory repositories
type DB struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]*accountRecord
	users     map[uuid.UUID]*domain.User
	emails    map[string]uuid.UUID
	transfers []*domain.Transfer

	// BeforeCommit, when set, runs inside Commit before any write is applied.
	// A non-nil error fails the commit and discards the transaction.
	BeforeCommit func() error
}

// NewDB creates an empty in-memory database
func NewDB() *DB {
	return &DB{
		accounts: make(map[uuid.UUID]*accountRecord),
		users:    make(map[uuid.UUID]*domain.User),
		emails:   make(map[string]uuid.UUID),
	}
}

// Close is a no-op kept for parity with the postgres DB
func (db *DB) Close() error {
	return nil
}

// insertAccount requires mu held
func (db *DB) insertAccount(account *domain.Account) {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.UpdatedAt = account.CreatedAt

	db.accounts[account.OwnerID] = &accountRecord{
		balance:   account.Balance,
		version:   1,
		createdAt: account.CreatedAt,
		updatedAt: account.UpdatedAt,
	}
}
