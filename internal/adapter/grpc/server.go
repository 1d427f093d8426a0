package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/payments-backend/internal/domain"
	"github.com/simaogato/payments-backend/internal/usecase/account"
	"github.com/simaogato/payments-backend/internal/usecase/transfer"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "payments.v1.PaymentsService"

const (
	transferMethod   = "/" + ServiceName + "/Transfer"
	getBalanceMethod = "/" + ServiceName + "/GetBalance"
)

// PaymentsServiceServer is the server API for PaymentsService.
// Requests and responses travel as google.protobuf.Struct.
type PaymentsServiceServer interface {
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// PaymentsServiceDesc describes PaymentsService for grpc.Server.RegisterService
var PaymentsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transfer", Handler: transferHandler},
		{MethodName: "GetBalance", Handler: getBalanceHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payments/v1/payments.proto",
}

// RegisterPaymentsServiceServer registers srv on s
func RegisterPaymentsServiceServer(s grpc.ServiceRegistrar, srv PaymentsServiceServer) {
	s.RegisterService(&PaymentsServiceDesc, srv)
}

func transferHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentsServiceServer).Transfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transferMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentsServiceServer).Transfer(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getBalanceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentsServiceServer).GetBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getBalanceMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentsServiceServer).GetBalance(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// NewGRPCServer builds a grpc.Server with the logging and auth interceptors,
// PaymentsService, health and reflection registered
func NewGRPCServer(srv PaymentsServiceServer, verifier TokenVerifier, logger *slog.Logger) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger),
			AuthInterceptor(verifier),
		),
	)

	RegisterPaymentsServiceServer(grpcServer, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	return grpcServer
}

// Server implements PaymentsServiceServer on top of the usecases
type Server struct {
	AccountService  *account.AccountService
	TransferService *transfer.TransferService
}

// NewServer creates a new gRPC server instance
func NewServer(accountService *account.AccountService, transferService *transfer.TransferService) *Server {
	return &Server{
		AccountService:  accountService,
		TransferService: transferService,
	}
}

// Transfer handles the Transfer RPC. The source is the authenticated caller.
//
// Request:  {"to_account_id": string, "amount": string | number}
// Response: {"transfer_id": string, "state": string}
func (s *Server) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ownerID, ok := OwnerIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing caller identity")
	}

	fields := req.GetFields()

	destinationID, err := uuid.Parse(fields["to_account_id"].GetStringValue())
	if err != nil {
		return nil, mapError(domain.NewTransferError(domain.ReasonInvalidRequest, fmt.Errorf("invalid to_account_id: %w", err)))
	}

	amount, err := parseAmount(fields["amount"])
	if err != nil {
		return nil, mapError(domain.NewTransferError(domain.ReasonInvalidAmount, err))
	}

	result, err := s.TransferService.Transfer(ctx, domain.TransferRequest{
		SourceID:      ownerID,
		DestinationID: destinationID,
		Amount:        amount,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"transfer_id": result.TransferID.String(),
		"state":       string(result.State),
	})
}

// GetBalance handles the GetBalance RPC for the authenticated caller.
//
// Response: {"balance": string}
func (s *Server) GetBalance(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ownerID, ok := OwnerIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing caller identity")
	}

	balance, err := s.AccountService.GetBalance(ctx, ownerID)
	if err != nil {
		return nil, mapError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"balance": balance.StringFixed(domain.MoneyScale),
	})
}

// parseAmount accepts the amount as a decimal string or a JSON number.
// Strings are preferred since numbers pass through float64.
func parseAmount(v *structpb.Value) (decimal.Decimal, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return decimal.NewFromString(kind.StringValue)
	case *structpb.Value_NumberValue:
		// Round trip through the shortest representation so 0.1 stays 0.1
		return decimal.NewFromString(strconv.FormatFloat(kind.NumberValue, 'f', -1, 64))
	default:
		return decimal.Decimal{}, errors.New("amount is required")
	}
}

// codeForReason maps a transfer failure reason to a gRPC code
func codeForReason(reason domain.Reason) codes.Code {
	switch reason {
	case domain.ReasonInvalidAmount, domain.ReasonInvalidRequest:
		return codes.InvalidArgument
	case domain.ReasonSourceNotFound, domain.ReasonDestinationNotFound:
		return codes.NotFound
	case domain.ReasonInsufficientFunds:
		return codes.FailedPrecondition
	case domain.ReasonTransactionConflict:
		return codes.Aborted
	case domain.ReasonStoreUnavailable:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if reason := domain.ReasonOf(err); reason != "" {
		return status.Error(codeForReason(reason), string(reason))
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return status.Error(codes.InvalidArgument, validationErr.Error())
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
