package user

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/simaogato/payments-backend/internal/domain"
)

// MockUserRepository is a mock implementation of UserRepository for testing
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) CreateWithAccount(ctx context.Context, user *domain.User, account *domain.Account) error {
	args := m.Called(ctx, user, account)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) Search(ctx context.Context, term string, excludeID uuid.UUID, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, term, excludeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// MockAccountStore is a mock implementation of AccountStore for testing
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccountStore) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountStore) BeginTx(ctx context.Context) (domain.AccountTx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.AccountTx), args.Error(1)
}

// MockTokenIssuer is a mock implementation of TokenIssuer for testing
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(user *domain.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

type fixture struct {
	users    *MockUserRepository
	accounts *MockAccountStore
	tokens   *MockTokenIssuer
	service  *UserService
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(MockUserRepository),
		accounts: new(MockAccountStore),
		tokens:   new(MockTokenIssuer),
	}
	f.service = NewUserService(f.users, f.accounts, f.tokens, nil)
	f.service.BcryptCost = bcrypt.MinCost
	return f
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestSignup_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.service.OpeningBalance = decimal.NewFromInt(1000)

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(nil, domain.ErrUserNotFound)
	f.users.On("CreateWithAccount", ctx,
		mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "ada@example.com" &&
				u.FirstName == "Ada" &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret!")) == nil
		}),
		mock.MatchedBy(func(a *domain.Account) bool {
			return a.OwnerID != uuid.Nil && a.Balance.Equal(decimal.NewFromInt(1000))
		}),
	).Return(nil)
	f.tokens.On("Issue", mock.AnythingOfType("*domain.User")).Return("signed-token", nil)

	session, err := f.service.Signup(ctx, SignupInput{
		FirstName: " Ada ",
		LastName:  "Lovelace",
		Email:     "Ada@Example.com",
		Password:  "s3cret!",
	})

	require.NoError(t, err)
	assert.Equal(t, "signed-token", session.Token)
	assert.Equal(t, "Ada", session.User.FirstName)
	assert.True(t, session.Balance.Equal(decimal.NewFromInt(1000)))
	assert.NotEqual(t, "s3cret!", session.User.PasswordHash)

	f.users.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
}

func TestSignup_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		input SignupInput
		field string
	}{
		{"bad email", SignupInput{FirstName: "Ada", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", SignupInput{FirstName: "Ada", Email: "ada@example.com", Password: "12345"}, "password"},
		{"missing first name", SignupInput{FirstName: "  ", Email: "ada@example.com", Password: "secret1"}, "firstName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			_, err := f.service.Signup(context.Background(), tt.input)

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
			f.users.AssertNotCalled(t, "CreateWithAccount", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(&domain.User{ID: uuid.New()}, nil)

	_, err := f.service.Signup(ctx, SignupInput{FirstName: "Ada", Email: "ada@example.com", Password: "secret1"})

	assert.ErrorIs(t, err, domain.ErrUserExists)
	f.users.AssertNotCalled(t, "CreateWithAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignup_InvalidOpeningBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.service.OpeningBalance = decimal.RequireFromString("0.005")

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(nil, domain.ErrUserNotFound)

	_, err := f.service.Signup(ctx, SignupInput{FirstName: "Ada", Email: "ada@example.com", Password: "secret1"})

	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "balance", vErr.Field)
	f.users.AssertNotCalled(t, "CreateWithAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignup_StoreFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(nil, domain.ErrUserNotFound)
	f.users.On("CreateWithAccount", ctx, mock.Anything, mock.Anything).Return(domain.ErrStoreUnavailable)

	_, err := f.service.Signup(ctx, SignupInput{FirstName: "Ada", Email: "ada@example.com", Password: "secret1"})

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	f.tokens.AssertNotCalled(t, "Issue", mock.Anything)
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := &domain.User{ID: uuid.New(), FirstName: "Ada", Email: "ada@example.com", PasswordHash: hashed(t, "secret1")}

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(user, nil)
	f.accounts.On("GetBalance", ctx, user.ID).Return(decimal.NewFromInt(42), nil)
	f.tokens.On("Issue", user).Return("signed-token", nil)

	session, err := f.service.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "secret1"})

	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
	assert.True(t, session.Balance.Equal(decimal.NewFromInt(42)))
	assert.Equal(t, "signed-token", session.Token)
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetByEmail", ctx, "nobody@example.com").Return(nil, domain.ErrUserNotFound)

		_, err := f.service.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("missing account", func(t *testing.T) {
		f := newFixture()
		user := &domain.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: hashed(t, "secret1")}
		f.users.On("GetByEmail", ctx, "ada@example.com").Return(user, nil)
		f.accounts.On("GetBalance", ctx, user.ID).Return(decimal.Zero, domain.ErrAccountNotFound)

		_, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture()
		user := &domain.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: hashed(t, "secret1")}
		f.users.On("GetByEmail", ctx, "ada@example.com").Return(user, nil)
		f.accounts.On("GetBalance", ctx, user.ID).Return(decimal.Zero, nil)

		_, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything)
	})
}

func TestSearch_TrimsTermAndExcludesCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	caller := uuid.New()
	found := []*domain.User{{ID: uuid.New(), FirstName: "Grace"}}

	f.users.On("Search", ctx, "gra", caller, DefaultSearchLimit).Return(found, nil)

	users, err := f.service.Search(ctx, "  gra ", caller)

	require.NoError(t, err)
	assert.Equal(t, found, users)
	f.users.AssertExpectations(t)
}
