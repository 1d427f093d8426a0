package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/simaogato/payments-backend/internal/domain"
)

// SQLSTATE codes the adapter classifies
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// classify maps an error raised before COMMIT onto the domain taxonomy.
// Nothing was committed in any of these cases.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled, codeCheckViolation:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
	}
	if errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: %w", op, domain.ErrTxDone)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// classifyCommit maps an error returned by COMMIT. A server-side error means
// the transaction was rolled back; a lost connection leaves the outcome unknown.
func classifyCommit(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("commit: %w", domain.ErrTxDone)
	}
	if sqlState(err) != "" {
		return classify("commit", err)
	}
	// database/sql rolls the transaction back when its context ends
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("commit: %w: %w", domain.ErrConflict, err)
	}
	return fmt.Errorf("commit: %w: %w", domain.ErrCommitOutcomeUnknown, err)
}
