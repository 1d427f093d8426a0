package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simaogato/payments-backend/internal/domain"
)

// userRepository implements domain.UserRepository
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new in-memory user repository
func NewUserRepository(db *DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.checkUnique(user); err != nil {
		return err
	}
	r.insertUser(user)
	return nil
}

// CreateWithAccount creates the user and the account under one lock
func (r *userRepository) CreateWithAccount(ctx context.Context, user *domain.User, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account.OwnerID != user.ID {
		return fmt.Errorf("account owner %s does not match user %s", account.OwnerID, user.ID)
	}
	if err := account.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.checkUnique(user); err != nil {
		return err
	}
	if _, exists := r.db.accounts[account.OwnerID]; exists {
		return fmt.Errorf("owner %s: %w", account.OwnerID, domain.ErrAccountExists)
	}

	r.insertUser(user)
	r.db.insertAccount(account)
	return nil
}

// checkUnique requires db.mu held
func (r *userRepository) checkUnique(user *domain.User) error {
	email := domain.NormalizeEmail(user.Email)
	if _, exists := r.db.emails[email]; exists {
		return fmt.Errorf("email %s: %w", email, domain.ErrUserExists)
	}
	if _, exists := r.db.users[user.ID]; exists {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrUserExists)
	}
	return nil
}

// insertUser requires db.mu held
func (r *userRepository) insertUser(user *domain.User) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	stored.Email = domain.NormalizeEmail(user.Email)
	r.db.users[user.ID] = &stored
	r.db.emails[stored.Email] = user.ID
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	user, ok := r.db.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrUserNotFound)
	}
	copied := *user
	return &copied, nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.emails[domain.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("email %s: %w", email, domain.ErrUserNotFound)
	}
	copied := *r.db.users[id]
	return &copied, nil
}

// Search returns users whose first or last name contains term, ordered by name
func (r *userRepository) Search(ctx context.Context, term string, excludeID uuid.UUID, limit int) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	needle := strings.ToLower(term)
	matches := make([]*domain.User, 0)
	for id, user := range r.db.users {
		if id == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(user.FirstName), needle) ||
			strings.Contains(strings.ToLower(user.LastName), needle) {
			copied := *user
			matches = append(matches, &copied)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].FirstName != matches[j].FirstName {
			return matches[i].FirstName < matches[j].FirstName
		}
		if matches[i].LastName != matches[j].LastName {
			return matches[i].LastName < matches[j].LastName
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
