package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/payments-backend/internal/domain"
)

// accountStore implements domain.AccountStore
type accountStore struct {
	db          *DB
	lockTimeout time.Duration
}

// NewAccountStore creates a new account store. lockTimeout bounds how long a
// transaction waits for a row lock; zero leaves the server default.
func NewAccountStore(db *DB, lockTimeout time.Duration) domain.AccountStore {
	return &accountStore{db: db, lockTimeout: lockTimeout}
}

// GetBalance reads the committed balance of an account
func (s *accountStore) GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT balance FROM accounts WHERE owner_id = $1`

	var balanceStr string
	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(&balanceStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("account %s: %w", ownerID, domain.ErrAccountNotFound)
		}
		return decimal.Zero, classify("get balance", err)
	}

	return parseBalance(balanceStr)
}

// Create inserts a new account
func (s *accountStore) Create(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	return insertAccount(ctx, s.db, account)
}

func insertAccount(ctx context.Context, ex execer, account *domain.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.UpdatedAt = account.CreatedAt

	query := `
		INSERT INTO accounts (owner_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := ex.ExecContext(ctx, query,
		account.OwnerID,
		account.Balance.StringFixed(domain.MoneyScale),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", account.OwnerID, domain.ErrAccountExists)
		}
		return classify("create account", err)
	}

	return nil
}

// BeginTx opens a READ COMMITTED transaction. Row locks taken by
// ReadForUpdate are held until Commit or Abort.
func (s *accountStore) BeginTx(ctx context.Context) (domain.AccountTx, error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, classify("begin transaction", err)
	}

	if s.lockTimeout > 0 {
		// SET does not take bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			_ = sqlTx.Rollback()
			return nil, classify("set lock timeout", err)
		}
	}

	return &accountTx{tx: sqlTx}, nil
}

// accountTx implements domain.AccountTx on top of *sql.Tx
type accountTx struct {
	tx   *sql.Tx
	done bool
}

// ReadForUpdate locks the account row and returns its balance
func (t *accountTx) ReadForUpdate(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	if t.done {
		return decimal.Zero, domain.ErrTxDone
	}

	query := `SELECT balance FROM accounts WHERE owner_id = $1 FOR UPDATE`

	var balanceStr string
	err := t.tx.QueryRowContext(ctx, query, ownerID).Scan(&balanceStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("account %s: %w", ownerID, domain.ErrAccountNotFound)
		}
		return decimal.Zero, classify("read for update", err)
	}

	return parseBalance(balanceStr)
}

// AdjustBalance adds delta to the account balance. The CHECK constraint on
// accounts.balance rejects a negative result.
func (t *accountTx) AdjustBalance(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) error {
	if t.done {
		return domain.ErrTxDone
	}

	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = now()
		WHERE owner_id = $1
	`

	result, err := t.tx.ExecContext(ctx, query, ownerID, delta.StringFixed(domain.MoneyScale))
	if err != nil {
		return classify("adjust balance", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return classify("adjust balance", err)
	}
	if rows == 0 {
		return fmt.Errorf("account %s: %w", ownerID, domain.ErrAccountNotFound)
	}

	return nil
}

// RecordTransfer inserts the transfer row inside the same transaction
func (t *accountTx) RecordTransfer(ctx context.Context, transfer *domain.Transfer) error {
	if t.done {
		return domain.ErrTxDone
	}
	if err := transfer.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO transfers (id, source_id, destination_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.ExecContext(ctx, query,
		transfer.ID,
		transfer.SourceID,
		transfer.DestinationID,
		transfer.Amount.StringFixed(domain.MoneyScale),
		transfer.CreatedAt,
	)
	if err != nil {
		return classify("record transfer", err)
	}

	return nil
}

// Commit commits the transaction
func (t *accountTx) Commit() error {
	if t.done {
		return domain.ErrTxDone
	}
	t.done = true
	return classifyCommit(t.tx.Commit())
}

// Abort rolls the transaction back. It is a no-op once the handle is finished.
func (t *accountTx) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	return nil
}

func parseBalance(s string) (decimal.Decimal, error) {
	balance, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}
	return balance, nil
}
