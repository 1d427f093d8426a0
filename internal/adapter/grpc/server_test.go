package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/payments-backend/internal/adapter/repository/memory"
	"github.com/simaogato/payments-backend/internal/adapter/token"
	"github.com/simaogato/payments-backend/internal/domain"
	"github.com/simaogato/payments-backend/internal/usecase/account"
	"github.com/simaogato/payments-backend/internal/usecase/transfer"
)

type testServer struct {
	conn   *grpc.ClientConn
	store  domain.AccountStore
	tokens *token.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := memory.NewDB()
	store := memory.NewAccountStore(db)
	tokens, err := token.NewJWTManager("grpc-test-key", time.Hour)
	require.NoError(t, err)

	srv := NewServer(
		account.NewAccountService(store),
		transfer.NewTransferService(store, memory.NewTransferRepository(db), nil, nil),
	)
	grpcServer := NewGRPCServer(srv, tokens, nil)

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testServer{conn: conn, store: store, tokens: tokens}
}

// open creates an account with balance and returns its owner ID and a session token
func (s *testServer) open(t *testing.T, balance int64) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	require.NoError(t, s.store.Create(context.Background(), &domain.Account{OwnerID: id, Balance: decimal.NewFromInt(balance)}))
	tok, err := s.tokens.Issue(&domain.User{ID: id, Email: id.String() + "@example.com"})
	require.NoError(t, err)
	return id, tok
}

func (s *testServer) call(t *testing.T, method, tok string, fields map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if tok != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
	}

	out := new(structpb.Struct)
	err = s.conn.Invoke(ctx, method, in, out)
	return out, err
}

func TestServer_TransferAndBalance(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.open(t, 100)
	bob, bobToken := s.open(t, 50)

	out, err := s.call(t, transferMethod, aliceToken, map[string]interface{}{
		"to_account_id": bob.String(),
		"amount":        "30",
	})
	require.NoError(t, err)
	_, err = uuid.Parse(out.GetFields()["transfer_id"].GetStringValue())
	assert.NoError(t, err)
	assert.Equal(t, string(domain.TransferStateCommitted), out.GetFields()["state"].GetStringValue())

	out, err = s.call(t, getBalanceMethod, aliceToken, nil)
	require.NoError(t, err)
	assert.Equal(t, "70.00", out.GetFields()["balance"].GetStringValue())

	out, err = s.call(t, getBalanceMethod, bobToken, nil)
	require.NoError(t, err)
	assert.Equal(t, "80.00", out.GetFields()["balance"].GetStringValue())

	balance, err := s.store.GetBalance(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(70)))
}

func TestServer_TransferFailures(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.open(t, 100)
	bob, _ := s.open(t, 0)

	tests := []struct {
		name   string
		fields map[string]interface{}
		code   codes.Code
		reason domain.Reason
	}{
		{"insufficient funds", map[string]interface{}{"to_account_id": bob.String(), "amount": "150"}, codes.FailedPrecondition, domain.ReasonInsufficientFunds},
		{"unknown receiver", map[string]interface{}{"to_account_id": uuid.NewString(), "amount": 10}, codes.NotFound, domain.ReasonDestinationNotFound},
		{"zero amount", map[string]interface{}{"to_account_id": bob.String(), "amount": 0}, codes.InvalidArgument, domain.ReasonInvalidAmount},
		{"missing amount", map[string]interface{}{"to_account_id": bob.String()}, codes.InvalidArgument, domain.ReasonInvalidAmount},
		{"bad receiver", map[string]interface{}{"to_account_id": "nope", "amount": "1"}, codes.InvalidArgument, domain.ReasonInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.call(t, transferMethod, aliceToken, tt.fields)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, string(tt.reason), st.Message())
		})
	}
}

func TestServer_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	_, err := s.call(t, getBalanceMethod, "", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.call(t, getBalanceMethod, "forged", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_HealthNeedsNoToken(t *testing.T) {
	s := newTestServer(t)

	resp, err := healthpb.NewHealthClient(s.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestParseAmount(t *testing.T) {
	d, err := parseAmount(structpb.NewNumberValue(0.1))
	require.NoError(t, err)
	assert.Equal(t, "0.1", d.String())

	d, err = parseAmount(structpb.NewStringValue("12.34"))
	require.NoError(t, err)
	assert.Equal(t, "12.34", d.String())

	_, err = parseAmount(structpb.NewStringValue("abc"))
	assert.Error(t, err)

	_, err = parseAmount(nil)
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{domain.NewTransferError(domain.ReasonTransactionConflict, nil), codes.Aborted},
		{domain.NewTransferError(domain.ReasonStoreUnavailable, errors.New("io")), codes.Unavailable},
		{domain.NewTransferError(domain.ReasonIndeterminate, nil), codes.Unknown},
		{domain.NewValidationError("owner_id", "must be set"), codes.InvalidArgument},
		{domain.ErrAccountNotFound, codes.NotFound},
		{errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(mapError(tt.err)))
		})
	}
	assert.NoError(t, mapError(nil))
}
