package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simaogato/payments-backend/internal/domain"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusForReason maps a transfer failure reason to an HTTP status
func statusForReason(reason domain.Reason) int {
	switch reason {
	case domain.ReasonInvalidAmount, domain.ReasonInvalidRequest:
		return http.StatusBadRequest
	case domain.ReasonSourceNotFound, domain.ReasonDestinationNotFound:
		return http.StatusNotFound
	case domain.ReasonInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.ReasonTransactionConflict:
		return http.StatusConflict
	case domain.ReasonStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mapError converts a usecase error into a status and response body
func mapError(err error) (int, ErrorResponse) {
	var transferErr *domain.TransferError
	if errors.As(err, &transferErr) {
		return statusForReason(transferErr.Reason), ErrorResponse{
			Message:   transferMessage(transferErr.Reason),
			Code:      string(transferErr.Reason),
			Retryable: transferErr.Reason.Retryable(),
		}
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, ErrorResponse{Message: validationErr.Error()}
	}

	switch {
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, ErrorResponse{Message: "User already exists!"}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "User not found"}
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "Account not found!"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Message: "Wrong password"}
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, ErrorResponse{Message: "Invalid token"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrorResponse{Message: "Conflicting request, try again", Retryable: true}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Message: "Service temporarily unavailable", Retryable: true}
	default:
		return http.StatusInternalServerError, ErrorResponse{Message: "Something went wrong!"}
	}
}

func transferMessage(reason domain.Reason) string {
	switch reason {
	case domain.ReasonInvalidAmount:
		return "Amount must be a positive value with at most 2 decimals"
	case domain.ReasonInvalidRequest:
		return "Invalid transfer request"
	case domain.ReasonSourceNotFound:
		return "Account not found!"
	case domain.ReasonDestinationNotFound:
		return "Receiver's account not found!"
	case domain.ReasonInsufficientFunds:
		return "Insufficient funds!"
	case domain.ReasonTransactionConflict:
		return "Transfer conflicted with another operation, try again"
	case domain.ReasonStoreUnavailable:
		return "Transfer could not be processed, try again"
	default:
		return "Transfer outcome unknown, check your balance before retrying"
	}
}

// abortWithError writes the mapped error and stops the handler chain.
// Server-side failures are attached to the context for the request logger.
func abortWithError(c *gin.Context, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
