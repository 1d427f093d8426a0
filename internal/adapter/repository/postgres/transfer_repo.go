package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/payments-backend/internal/domain"
)

// transferRepository implements domain.TransferRepository.
// Transfers are written by accountTx.RecordTransfer; this side only reads.
type transferRepository struct {
	db *DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

// List retrieves transfers where ownerID is the source or the destination, newest first
func (r *transferRepository) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Transfer, error) {
	query := `
		SELECT id, source_id, destination_id, amount, created_at
		FROM transfers
		WHERE source_id = $1 OR destination_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, classify("list transfers", err)
	}
	defer rows.Close()

	transfers := make([]*domain.Transfer, 0)
	for rows.Next() {
		var t domain.Transfer
		var amountStr string

		if err := rows.Scan(&t.ID, &t.SourceID, &t.DestinationID, &amountStr, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		t.Amount = amount

		transfers = append(transfers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list transfers", err)
	}

	return transfers, nil
}

// Count returns the number of transfers involving ownerID
func (r *transferRepository) Count(ctx context.Context, ownerID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM transfers WHERE source_id = $1 OR destination_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, classify("count transfers", err)
	}
	return count, nil
}
