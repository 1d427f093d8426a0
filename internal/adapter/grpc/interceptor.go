package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/payments-backend/internal/adapter/token"
	"github.com/simaogato/payments-backend/internal/telemetry"
)

// TokenVerifier validates a session token
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

type ownerIDKey struct{}

// WithOwnerID returns a context carrying the authenticated caller
func WithOwnerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey{}, id)
}

// OwnerIDFromContext returns the caller placed in ctx by AuthInterceptor
func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerIDKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the session token from the "authorization" metadata, with or without a
// "Bearer " prefix. Methods outside PaymentsService (health checks) pass
// through untouched.
// If the token is missing or invalid, it returns status.Unauthenticated.
func AuthInterceptor(verifier TokenVerifier) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 || authHeaders[0] == "" {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		raw := authHeaders[0]
		if len(raw) > 7 && strings.EqualFold(raw[:7], "Bearer ") {
			raw = strings.TrimSpace(raw[7:])
		}

		claims, err := verifier.Verify(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		ownerID, err := claims.OwnerID()
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(WithOwnerID(ctx, ownerID), req)
	}
}

// LoggingInterceptor logs and counts every unary call
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = telemetry.Logger
	}
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err)
		telemetry.GRPCRequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
		telemetry.GRPCRequestDuration.WithLabelValues(info.FullMethod).Observe(elapsed.Seconds())

		attrs := []any{
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("duration", elapsed),
		}
		switch code {
		case codes.OK:
			logger.InfoContext(ctx, "rpc completed", attrs...)
		case codes.Internal, codes.Unknown, codes.Unavailable:
			logger.ErrorContext(ctx, "rpc failed", append(attrs, slog.Any("error", err))...)
		default:
			logger.WarnContext(ctx, "rpc rejected", attrs...)
		}
		return resp, err
	}
}
