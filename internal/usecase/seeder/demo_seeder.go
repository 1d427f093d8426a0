package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/simaogato/payments-backend/internal/domain"
)

// Fixed UUIDs for demo users, so reseeding is idempotent
var (
	DemoAlice = uuid.MustParse("00000000-0000-0000-0000-00000000a11c")
	DemoBob   = uuid.MustParse("00000000-0000-0000-0000-000000000b0b")
	DemoCarol = uuid.MustParse("00000000-0000-0000-0000-0000000ca401")
)

// DefaultDemoPassword is the password of every seeded demo user
const DefaultDemoPassword = "demo-password"

// DemoUser defines a user to be seeded with a funded account
type DemoUser struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Balance   decimal.Decimal
}

// DemoUsers returns the users the seeder ensures exist
func DemoUsers() []DemoUser {
	return []DemoUser{
		{ID: DemoAlice, FirstName: "Alice", LastName: "Anders", Email: "alice@demo.local", Balance: decimal.NewFromInt(1000)},
		{ID: DemoBob, FirstName: "Bob", LastName: "Brown", Email: "bob@demo.local", Balance: decimal.NewFromInt(500)},
		{ID: DemoCarol, FirstName: "Carol", LastName: "Clark", Email: "carol@demo.local", Balance: decimal.NewFromInt(50)},
	}
}

// DemoSeeder handles seeding of demo users and their accounts
type DemoSeeder struct {
	users    domain.UserRepository
	accounts domain.AccountStore
	Password string
	Cost     int
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(users domain.UserRepository, accounts domain.AccountStore) *DemoSeeder {
	return &DemoSeeder{
		users:    users,
		accounts: accounts,
		Password: DefaultDemoPassword,
		Cost:     bcrypt.DefaultCost,
	}
}

// Seed ensures every demo user and its account exist.
// Existing users and accounts are left untouched, balances included.
func (s *DemoSeeder) Seed(ctx context.Context) error {
	for _, demo := range DemoUsers() {
		if err := s.ensureUser(ctx, demo); err != nil {
			return fmt.Errorf("seed user %s: %w", demo.Email, err)
		}
		if err := s.ensureAccount(ctx, demo); err != nil {
			return fmt.Errorf("seed account %s: %w", demo.Email, err)
		}
	}
	return nil
}

func (s *DemoSeeder) ensureUser(ctx context.Context, demo DemoUser) error {
	_, err := s.users.GetByID(ctx, demo.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), s.Cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           demo.ID,
		FirstName:    demo.FirstName,
		LastName:     demo.LastName,
		Email:        demo.Email,
		PasswordHash: string(hash),
	}

	// Validate before creating
	if err := user.Validate(); err != nil {
		return err
	}

	return s.users.Create(ctx, user)
}

func (s *DemoSeeder) ensureAccount(ctx context.Context, demo DemoUser) error {
	_, err := s.accounts.GetBalance(ctx, demo.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return err
	}

	return s.accounts.Create(ctx, &domain.Account{OwnerID: demo.ID, Balance: demo.Balance})
}
