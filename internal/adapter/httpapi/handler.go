package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/payments-backend/internal/domain"
	"github.com/simaogato/payments-backend/internal/telemetry"
	"github.com/simaogato/payments-backend/internal/usecase/account"
	"github.com/simaogato/payments-backend/internal/usecase/transfer"
	"github.com/simaogato/payments-backend/internal/usecase/user"
)

const defaultPageSize = 20

// CookieConfig controls the session cookie
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// Handler contains all HTTP handlers
type Handler struct {
	users     *user.UserService
	accounts  *account.AccountService
	transfers *transfer.TransferService
	cookie    CookieConfig
	logger    *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(
	users *user.UserService,
	accounts *account.AccountService,
	transfers *transfer.TransferService,
	cookie CookieConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = telemetry.Logger
	}
	return &Handler{
		users:     users,
		accounts:  accounts,
		transfers: transfers,
		cookie:    cookie,
		logger:    logger,
	}
}

// SignupRequest is the request body for the signup endpoint
type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// LoginRequest is the request body for the login endpoint
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse is returned by signup and login
type SessionResponse struct {
	Username string `json:"username"`
	Balance  string `json:"balance"`
}

// Signup handles POST /api/v1/user/signup
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "All fields are required!"})
		return
	}

	session, err := h.users.Signup(c.Request.Context(), user.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.setSessionCookie(c, session.Token)
	c.JSON(http.StatusCreated, SessionResponse{
		Username: session.User.FullName(),
		Balance:  formatMoney(session.Balance),
	})
}

// Login handles POST /api/v1/user/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "All fields are required!"})
		return
	}

	session, err := h.users.Login(c.Request.Context(), user.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.setSessionCookie(c, session.Token)
	c.JSON(http.StatusOK, SessionResponse{
		Username: session.User.FullName(),
		Balance:  formatMoney(session.Balance),
	})
}

// Logout handles POST /api/v1/user/logout
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(CookieName, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully!"})
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(CookieName, token, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
}

// UserSummary is one search result
type UserSummary struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	ID        string `json:"_id"`
}

// SearchUsers handles GET /api/v1/user/bulk?user=term
func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), c.Query("user"), OwnerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, UserSummary{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			ID:        u.ID.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": summaries})
}

// GetBalance handles GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.accounts.GetBalance(c.Request.Context(), OwnerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": formatMoney(balance)})
}

// TransferRequest is the request body for the transfer endpoint.
// The source is always the authenticated caller. Amount is a JSON number
// or a decimal string, parsed after binding.
type TransferRequest struct {
	ToAccountID string          `json:"toAccountId"`
	Amount      json.RawMessage `json:"amount"`
}

// TransferResponse is returned by a committed transfer
type TransferResponse struct {
	Message    string `json:"message"`
	TransferID string `json:"transferId"`
}

// Transfer handles POST /api/v1/account/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.NewTransferError(domain.ReasonInvalidRequest, err))
		return
	}

	destinationID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		abortWithError(c, domain.NewTransferError(domain.ReasonInvalidRequest, err))
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		abortWithError(c, domain.NewTransferError(domain.ReasonInvalidAmount, err))
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), domain.TransferRequest{
		SourceID:      OwnerID(c),
		DestinationID: destinationID,
		Amount:        amount,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{
		Message:    "Funds transferred successfully!",
		TransferID: result.TransferID.String(),
	})
}

// TransferItem is one entry of the transfer history
type TransferItem struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"sourceId"`
	DestinationID string    `json:"destinationId"`
	Amount        string    `json:"amount"`
	Direction     string    `json:"direction"` // "debit" or "credit" from the caller's side
	CreatedAt     time.Time `json:"createdAt"`
}

// TransferHistoryResponse is one page of transfer history
type TransferHistoryResponse struct {
	Transfers []TransferItem `json:"transfers"`
	Total     int            `json:"total"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

// ListTransfers handles GET /api/v1/account/transfers?limit=&offset=
func (h *Handler) ListTransfers(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		abortWithError(c, domain.NewValidationError("limit", "must be an integer"))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		abortWithError(c, domain.NewValidationError("offset", "must be an integer"))
		return
	}

	ownerID := OwnerID(c)
	page, err := h.transfers.ListTransfers(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	items := make([]TransferItem, 0, len(page.Transfers))
	for _, t := range page.Transfers {
		direction := "credit"
		if t.SourceID == ownerID {
			direction = "debit"
		}
		items = append(items, TransferItem{
			ID:            t.ID.String(),
			SourceID:      t.SourceID.String(),
			DestinationID: t.DestinationID.String(),
			Amount:        formatMoney(t.Amount),
			Direction:     direction,
			CreatedAt:     t.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, TransferHistoryResponse{
		Transfers: items,
		Total:     page.Total,
		Limit:     limit,
		Offset:    offset,
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func queryInt(c *gin.Context, key string, defaultValue int) (int, error) {
	value := c.Query(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

// parseAmount reads a JSON number or quoted decimal. A missing amount is zero
// and is rejected by transfer validation.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var amount decimal.Decimal
	if len(raw) == 0 || string(raw) == "null" {
		return amount, nil
	}
	if err := amount.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount: %w", err)
	}
	return amount, nil
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}
