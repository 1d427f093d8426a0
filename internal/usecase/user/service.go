package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/simaogato/payments-backend/internal/domain"
	"github.com/simaogato/payments-backend/internal/telemetry"
)

// DefaultSearchLimit caps the number of users Search returns
const DefaultSearchLimit = 50

// TokenIssuer signs a session token for an authenticated user
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

// SignupInput represents the input for registering a user
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// LoginInput represents the input for logging in
type LoginInput struct {
	Email    string
	Password string
}

// Session is the result of a successful signup or login
type Session struct {
	User    *domain.User
	Balance decimal.Decimal
	Token   string
}

// UserService handles registration, login and user search
type UserService struct {
	UserRepo       domain.UserRepository
	AccountStore   domain.AccountStore
	Tokens         TokenIssuer
	OpeningBalance decimal.Decimal
	BcryptCost     int

	logger *slog.Logger
}

// NewUserService creates a new UserService instance
func NewUserService(userRepo domain.UserRepository, accountStore domain.AccountStore, tokens TokenIssuer, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = telemetry.Logger
	}
	return &UserService{
		UserRepo:     userRepo,
		AccountStore: accountStore,
		Tokens:       tokens,
		BcryptCost:   bcrypt.DefaultCost,
		logger:       logger.With(slog.String("component", "user")),
	}
}

// Signup registers a user and opens their account
// Logic:
//  1. Validate input and reject an already registered email
//  2. Hash the password
//  3. Create the user and the account with the opening balance in one step
//  4. Issue a session token
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	email := domain.NormalizeEmail(input.Email)
	if err := validateCredentials(email, input.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return nil, domain.NewValidationError("firstName", "cannot be empty")
	}

	if _, err := s.UserRepo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email %s: %w", email, domain.ErrUserExists)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := user.Validate(); err != nil {
		return nil, domain.NewValidationError("user", err.Error())
	}

	account := &domain.Account{OwnerID: user.ID, Balance: s.OpeningBalance}
	if err := account.Validate(); err != nil {
		return nil, domain.NewValidationError("balance", err.Error())
	}

	if err := s.UserRepo.CreateWithAccount(ctx, user, account); err != nil {
		return nil, err
	}

	token, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", user.ID.String()))

	return &Session{User: user, Balance: account.Balance, Token: token}, nil
}

// Login authenticates a user by email and password
func (s *UserService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	email := domain.NormalizeEmail(input.Email)
	if err := validateCredentials(email, input.Password); err != nil {
		return nil, err
	}

	user, err := s.UserRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	balance, err := s.AccountStore.GetBalance(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}

	token, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &Session{User: user, Balance: balance, Token: token}, nil
}

// Search finds other users by first or last name
func (s *UserService) Search(ctx context.Context, term string, excludeID uuid.UUID) ([]*domain.User, error) {
	return s.UserRepo.Search(ctx, strings.TrimSpace(term), excludeID, DefaultSearchLimit)
}

func validateCredentials(email, password string) error {
	if err := domain.ValidateEmail(email); err != nil {
		return domain.NewValidationError("email", err.Error())
	}
	if len(password) < domain.MinPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", domain.MinPasswordLength))
	}
	return nil
}
