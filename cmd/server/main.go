package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	grpclib "google.golang.org/grpc"

	grpcadapter "github.com/simaogato/payments-backend/internal/adapter/grpc"
	"github.com/simaogato/payments-backend/internal/adapter/events"
	"github.com/simaogato/payments-backend/internal/adapter/httpapi"
	"github.com/simaogato/payments-backend/internal/adapter/repository/memory"
	"github.com/simaogato/payments-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/payments-backend/internal/adapter/token"
	"github.com/simaogato/payments-backend/internal/config"
	"github.com/simaogato/payments-backend/internal/domain"
	"github.com/simaogato/payments-backend/internal/telemetry"
	"github.com/simaogato/payments-backend/internal/usecase/account"
	"github.com/simaogato/payments-backend/internal/usecase/seeder"
	"github.com/simaogato/payments-backend/internal/usecase/transfer"
	"github.com/simaogato/payments-backend/internal/usecase/user"
)

const shutdownTimeout = 10 * time.Second

// stores bundles the persistence ports for the selected backend
type stores struct {
	users     domain.UserRepository
	accounts  domain.AccountStore
	transfers domain.TransferRepository
	close     func() error
}

func main() {
	if err := run(); err != nil {
		telemetry.Logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and telemetry
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet
		slog.Error("invalid configuration", "error", err)
		return err
	}

	logger := telemetry.InitLogger(cfg.Telemetry.ServiceName, cfg.Telemetry.LogLevel)

	ctx := context.Background()
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Environment)
	if err != nil {
		return err
	}
	defer shutdownTracer()

	// 2. Setup persistence
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	// 3. Event publisher (optional)
	var publisher domain.EventPublisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	// 4. Initialize Services (Use Cases)
	tokens, err := token.NewJWTManager(cfg.Auth.JWTKey, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	userService := user.NewUserService(st.users, st.accounts, tokens, logger)
	userService.OpeningBalance = cfg.Demo.OpeningBalance

	accountService := account.NewAccountService(st.accounts)

	transferService := transfer.NewTransferService(st.accounts, st.transfers, publisher, logger)
	transferService.Timeout = cfg.Transfer.Timeout

	if cfg.Demo.Seed {
		if err := seeder.NewDemoSeeder(st.users, st.accounts).Seed(ctx); err != nil {
			return err
		}
		logger.Info("demo users seeded", "count", len(seeder.DemoUsers()))
	}

	// 5. Start HTTP server
	gin.SetMode(cfg.GinMode)
	handler := httpapi.NewHandler(userService, accountService, transferService, httpapi.CookieConfig{
		MaxAge: tokens.TTL(),
		Secure: cfg.Auth.CookieSecure,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, tokens, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 6. Start gRPC server
	grpcServer := grpcadapter.NewGRPCServer(grpcadapter.NewServer(accountService, transferService), tokens, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	return waitForShutdown(logger, serveErr, httpServer, grpcServer)
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		db := memory.NewDB()
		return &stores{
			users:     memory.NewUserRepository(db),
			accounts:  memory.NewAccountStore(db),
			transfers: memory.NewTransferRepository(db),
			close:     db.Close,
		}, nil
	}

	db, err := connectWithRetry(ctx, cfg.DB.ConnStr, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &stores{
		users:     postgres.NewUserRepository(db),
		accounts:  postgres.NewAccountStore(db, cfg.Transfer.LockTimeout),
		transfers: postgres.NewTransferRepository(db),
		close:     db.Close,
	}, nil
}

// connectWithRetry waits for Postgres to accept connections (docker compose
// starts both containers together)
func connectWithRetry(ctx context.Context, connStr string, logger *slog.Logger) (*postgres.DB, error) {
	const attempts = 5

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := postgres.NewDB(ctx, connStr)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("database not ready", "attempt", i, "error", err)
		time.Sleep(time.Duration(i) * time.Second)
	}
	return nil, lastErr
}

// waitForShutdown waits for SIGTERM or SIGINT, or a server failure, and
// gracefully shuts down both servers
func waitForShutdown(logger *slog.Logger, serveErr <-chan error, httpServer *http.Server, grpcServer *grpclib.Server) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", "signal", sig.String())
	case runErr = <-serveErr:
		logger.Error("server failed, shutting down", "error", runErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
	}
	logger.Info("gRPC server stopped")

	return runErr
}
