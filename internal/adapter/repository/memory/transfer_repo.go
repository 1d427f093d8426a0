package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/simaogato/payments-backend/internal/domain"
)

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	db *DB
}

// NewTransferRepository creates a new in-memory transfer repository
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

// List retrieves transfers involving ownerID, newest first
func (r *transferRepository) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*domain.Transfer{}, nil
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	// transfers is append-only in commit order, so walking backwards is newest first
	result := make([]*domain.Transfer, 0, limit)
	skipped := 0
	for i := len(r.db.transfers) - 1; i >= 0 && len(result) < limit; i-- {
		t := r.db.transfers[i]
		if t.SourceID != ownerID && t.DestinationID != ownerID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		copied := *t
		result = append(result, &copied)
	}
	return result, nil
}

// Count returns the number of transfers involving ownerID
func (r *transferRepository) Count(ctx context.Context, ownerID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	count := 0
	for _, t := range r.db.transfers {
		if t.SourceID == ownerID || t.DestinationID == ownerID {
			count++
		}
	}
	return count, nil
}
