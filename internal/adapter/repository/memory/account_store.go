package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/payments-backend/internal/domain"
)

// accountStore implements domain.AccountStore
type accountStore struct {
	db *DB
}

// NewAccountStore creates a new in-memory account store
func NewAccountStore(db *DB) domain.AccountStore {
	return &accountStore{db: db}
}

// GetBalance reads the committed balance of an owner's account
func (s *accountStore) GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rec, ok := s.db.accounts[ownerID]
	if !ok {
		return decimal.Zero, fmt.Errorf("owner %s: %w", ownerID, domain.ErrAccountNotFound)
	}
	return rec.balance, nil
}

// Create creates a new account
func (s *accountStore) Create(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, exists := s.db.accounts[account.OwnerID]; exists {
		return fmt.Errorf("owner %s: %w", account.OwnerID, domain.ErrAccountExists)
	}

	s.db.insertAccount(account)
	return nil
}

// BeginTx starts an optimistic transaction
func (s *accountStore) BeginTx(ctx context.Context) (domain.AccountTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &accountTx{
		db:       s.db,
		versions: make(map[uuid.UUID]uint64),
		balances: make(map[uuid.UUID]decimal.Decimal),
		deltas:   make(map[uuid.UUID]decimal.Decimal),
	}, nil
}

// accountTx stages writes locally until Commit.
// A handle is used by one goroutine at a time.
type accountTx struct {
	db        *DB
	versions  map[uuid.UUID]uint64 // version observed at first read
	balances  map[uuid.UUID]decimal.Decimal
	deltas    map[uuid.UUID]decimal.Decimal
	transfers []*domain.Transfer
	done      bool
}

// ReadForUpdate returns the balance as seen by this transaction,
// including its own staged adjustments
func (t *accountTx) ReadForUpdate(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	if err := t.check(ctx); err != nil {
		return decimal.Zero, err
	}
	if err := t.observe(ownerID); err != nil {
		return decimal.Zero, err
	}
	return t.balances[ownerID].Add(t.deltas[ownerID]), nil
}

// AdjustBalance stages balance += delta
func (t *accountTx) AdjustBalance(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if err := t.observe(ownerID); err != nil {
		return err
	}
	t.deltas[ownerID] = t.deltas[ownerID].Add(delta)
	return nil
}

// RecordTransfer stages a transfer record
func (t *accountTx) RecordTransfer(ctx context.Context, transfer *domain.Transfer) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if err := transfer.Validate(); err != nil {
		return err
	}
	copied := *transfer
	t.transfers = append(t.transfers, &copied)
	return nil
}

// Commit validates that no account read by this transaction changed since,
// then applies every staged write at once
func (t *accountTx) Commit() error {
	if t.done {
		return domain.ErrTxDone
	}
	t.done = true

	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.db.BeforeCommit != nil {
		if err := t.db.BeforeCommit(); err != nil {
			return err
		}
	}

	for id, seen := range t.versions {
		rec, ok := t.db.accounts[id]
		if !ok || rec.version != seen {
			return fmt.Errorf("account %s changed since read: %w", id, domain.ErrConflict)
		}
	}

	for id, delta := range t.deltas {
		if t.db.accounts[id].balance.Add(delta).IsNegative() {
			return fmt.Errorf("balance of %s would become negative: %w", id, domain.ErrConflict)
		}
	}

	now := time.Now().UTC()
	for id, delta := range t.deltas {
		rec := t.db.accounts[id]
		rec.balance = rec.balance.Add(delta)
		rec.version++
		rec.updatedAt = now
	}
	t.db.transfers = append(t.db.transfers, t.transfers...)

	return nil
}

// Abort discards staged writes
func (t *accountTx) Abort() error {
	t.done = true
	t.deltas = nil
	t.transfers = nil
	return nil
}

func (t *accountTx) check(ctx context.Context) error {
	if t.done {
		return domain.ErrTxDone
	}
	return ctx.Err()
}

// observe pins the committed version of an account on first access
func (t *accountTx) observe(ownerID uuid.UUID) error {
	if _, seen := t.versions[ownerID]; seen {
		return nil
	}

	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	rec, ok := t.db.accounts[ownerID]
	if !ok {
		return fmt.Errorf("owner %s: %w", ownerID, domain.ErrAccountNotFound)
	}
	t.versions[ownerID] = rec.version
	t.balances[ownerID] = rec.balance
	return nil
}
