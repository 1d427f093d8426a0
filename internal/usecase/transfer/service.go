package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/simaogato/payments-backend/internal/domain"
	"github.com/simaogato/payments-backend/internal/telemetry"
)

const (
	// DefaultTimeout bounds a whole transfer, lock waits included
	DefaultTimeout = 5 * time.Second

	// MaxPageSize caps ListTransfers
	MaxPageSize = 100
)

var tracer = otel.Tracer("github.com/simaogato/payments-backend/internal/usecase/transfer")

// TransferService moves funds between two accounts as one atomic unit.
// It holds no in-process lock: all mutual exclusion is delegated to the
// AccountStore transaction.
type TransferService struct {
	AccountStore domain.AccountStore
	TransferRepo domain.TransferRepository
	Publisher    domain.EventPublisher // optional
	Timeout      time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewTransferService creates a new TransferService instance
func NewTransferService(
	accountStore domain.AccountStore,
	transferRepo domain.TransferRepository,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *TransferService {
	if logger == nil {
		logger = telemetry.Logger
	}
	return &TransferService{
		AccountStore: accountStore,
		TransferRepo: transferRepo,
		Publisher:    publisher,
		Timeout:      DefaultTimeout,
		logger:       logger.With(slog.String("component", "transfer")),
		now:          time.Now,
	}
}

// Transfer moves req.Amount from req.SourceID to req.DestinationID.
// Logic:
//  1. Validate amount and identities (no store access)
//  2. Begin a store transaction and lock both accounts in ascending ID order
//  3. Check, in order: source exists, source balance >= amount, destination exists
//  4. Debit source, credit destination, record the transfer, commit
//  5. Publish TransferCommitted (best effort)
//
// Every failure returns a *domain.TransferError and a result whose Reason
// matches it. Any path that does not commit aborts the transaction.
func (s *TransferService) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	start := time.Now()
	result := &domain.TransferResult{
		TransferID: uuid.New(),
		State:      domain.TransferStateStarted,
	}

	ctx, span := tracer.Start(ctx, "transfer.Execute",
		trace.WithAttributes(
			attribute.String("transfer_id", result.TransferID.String()),
			attribute.String("source_id", req.SourceID.String()),
			attribute.String("destination_id", req.DestinationID.String()),
			attribute.String("amount", req.Amount.String()),
		),
	)
	defer span.End()

	committed, err := s.execute(ctx, req, result)
	if err != nil {
		result.Reason = domain.ReasonOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result.Reason))
		span.SetAttributes(attribute.String("failure_reason", string(result.Reason)))
	} else {
		result.Success = true
		span.SetStatus(codes.Ok, "")
	}

	s.recordMetrics(result, req.Amount, time.Since(start))
	s.logOutcome(ctx, req, result, err)

	if committed != nil {
		s.publish(ctx, committed)
	}

	return result, err
}

// execute drives the state machine. It returns the committed record on success.
func (s *TransferService) execute(ctx context.Context, req domain.TransferRequest, result *domain.TransferResult) (*domain.Transfer, error) {
	result.State = domain.TransferStateValidating

	if err := req.Validate(); err != nil {
		result.State = domain.TransferStateRejected
		return nil, err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	tx, err := s.AccountStore.BeginTx(ctx)
	if err != nil {
		result.State = domain.TransferStateAbortedOnFailure
		return nil, classifyStoreError(err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if abortErr := tx.Abort(); abortErr != nil {
			s.logger.WarnContext(ctx, "failed to abort transfer transaction",
				slog.String("transfer_id", result.TransferID.String()),
				slog.Any("error", abortErr),
			)
		}
	}()

	locked, err := lockAccounts(ctx, tx, req.SourceID, req.DestinationID)
	if err != nil {
		result.State = domain.TransferStateAbortedOnFailure
		return nil, classifyStoreError(err)
	}

	if reason, rejectErr := checkPreconditions(req, locked); reason != "" {
		result.State = domain.TransferStateRejected
		return nil, domain.NewTransferError(reason, rejectErr)
	}

	result.State = domain.TransferStateCommitting

	record := &domain.Transfer{
		ID:            result.TransferID,
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Amount:        req.Amount,
		CreatedAt:     s.now().UTC(),
	}

	if err := tx.AdjustBalance(ctx, req.SourceID, req.Amount.Neg()); err != nil {
		result.State = domain.TransferStateAbortedOnFailure
		return nil, classifyStoreError(err)
	}

	if err := tx.AdjustBalance(ctx, req.DestinationID, req.Amount); err != nil {
		result.State = domain.TransferStateAbortedOnFailure
		return nil, classifyStoreError(err)
	}

	if err := tx.RecordTransfer(ctx, record); err != nil {
		result.State = domain.TransferStateAbortedOnFailure
		return nil, classifyStoreError(err)
	}

	// The store owns cleanup once Commit has been called; aborting after a
	// failed commit would assume an outcome we do not know.
	finished = true
	if err := tx.Commit(); err != nil {
		result.State = domain.TransferStateAbortedOnFailure
		return nil, classifyCommitError(err)
	}

	result.State = domain.TransferStateCommitted
	return record, nil
}

// lockedAccount is the snapshot of one account read under the transaction
type lockedAccount struct {
	found   bool
	balance decimal.Decimal
}

// lockAccounts reads both accounts for update in ascending ID order so that
// opposite transfers between the same pair cannot deadlock.
// A missing account is reported in the result, not as an error.
func lockAccounts(ctx context.Context, tx domain.AccountTx, sourceID, destinationID uuid.UUID) (map[uuid.UUID]lockedAccount, error) {
	order := []uuid.UUID{sourceID, destinationID}
	if bytes.Compare(destinationID[:], sourceID[:]) < 0 {
		order[0], order[1] = destinationID, sourceID
	}

	locked := make(map[uuid.UUID]lockedAccount, 2)
	for _, id := range order {
		balance, err := tx.ReadForUpdate(ctx, id)
		if errors.Is(err, domain.ErrAccountNotFound) {
			locked[id] = lockedAccount{found: false}
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[id] = lockedAccount{found: true, balance: balance}
	}
	return locked, nil
}

// checkPreconditions evaluates the store-backed checks in their defined order
func checkPreconditions(req domain.TransferRequest, locked map[uuid.UUID]lockedAccount) (domain.Reason, error) {
	source := locked[req.SourceID]
	if !source.found {
		return domain.ReasonSourceNotFound, fmt.Errorf("source %s: %w", req.SourceID, domain.ErrAccountNotFound)
	}

	if source.balance.LessThan(req.Amount) {
		return domain.ReasonInsufficientFunds, fmt.Errorf("balance %s is below amount %s",
			source.balance.StringFixed(domain.MoneyScale), req.Amount.StringFixed(domain.MoneyScale))
	}

	if !locked[req.DestinationID].found {
		return domain.ReasonDestinationNotFound, fmt.Errorf("destination %s: %w", req.DestinationID, domain.ErrAccountNotFound)
	}

	return "", nil
}

// classifyStoreError maps a failure before commit. Nothing was committed.
func classifyStoreError(err error) error {
	switch {
	case errors.Is(err, domain.ErrConflict), errors.Is(err, context.DeadlineExceeded):
		return domain.NewTransferError(domain.ReasonTransactionConflict, err)
	default:
		return domain.NewTransferError(domain.ReasonStoreUnavailable, err)
	}
}

// classifyCommitError maps a failure returned by Commit
func classifyCommitError(err error) error {
	switch {
	case errors.Is(err, domain.ErrCommitOutcomeUnknown):
		return domain.NewTransferError(domain.ReasonIndeterminate, err)
	case errors.Is(err, domain.ErrConflict):
		return domain.NewTransferError(domain.ReasonTransactionConflict, err)
	default:
		return domain.NewTransferError(domain.ReasonStoreUnavailable, err)
	}
}

func (s *TransferService) publish(ctx context.Context, record *domain.Transfer) {
	if s.Publisher == nil {
		return
	}
	// The transfer is already committed; a cancelled request must not drop the event.
	ctx = context.WithoutCancel(ctx)
	if err := s.Publisher.PublishTransferCommitted(ctx, domain.NewTransferCommitted(record)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish transfer event",
			slog.String("transfer_id", record.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *TransferService) recordMetrics(result *domain.TransferResult, amount decimal.Decimal, elapsed time.Duration) {
	outcome := "committed"
	if !result.Success {
		outcome = strings.ToLower(string(result.Reason))
	}
	telemetry.TransfersTotal.WithLabelValues(outcome).Inc()
	telemetry.TransferAmount.WithLabelValues(outcome).Observe(amount.InexactFloat64())
	telemetry.TransferDuration.Observe(elapsed.Seconds())
}

func (s *TransferService) logOutcome(ctx context.Context, req domain.TransferRequest, result *domain.TransferResult, err error) {
	attrs := []any{
		slog.String("transfer_id", result.TransferID.String()),
		slog.String("source_id", req.SourceID.String()),
		slog.String("destination_id", req.DestinationID.String()),
		slog.String("amount", req.Amount.String()),
		slog.String("state", string(result.State)),
	}

	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "transfer committed", attrs...)
	case result.Reason.IsValidation():
		s.logger.InfoContext(ctx, "transfer rejected", append(attrs, slog.String("reason", string(result.Reason)))...)
	default:
		s.logger.ErrorContext(ctx, "transfer failed", append(attrs,
			slog.String("reason", string(result.Reason)),
			slog.Bool("retryable", result.Reason.Retryable()),
			slog.Any("error", err),
		)...)
	}
}

// TransferPage is one page of an owner's transfer history
type TransferPage struct {
	Transfers []*domain.Transfer
	Total     int
}

// ListTransfers returns the transfers involving ownerID, newest first
func (s *TransferService) ListTransfers(ctx context.Context, ownerID uuid.UUID, limit, offset int) (*TransferPage, error) {
	if ownerID == uuid.Nil {
		return nil, domain.NewValidationError("owner_id", "must be set")
	}
	if limit <= 0 || limit > MaxPageSize {
		return nil, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must be non-negative")
	}

	total, err := s.TransferRepo.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	transfers, err := s.TransferRepo.List(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &TransferPage{Transfers: transfers, Total: total}, nil
}
