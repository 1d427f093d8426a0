package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/simaogato/payments-backend/internal/domain"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	Store     string
	DB        DBConfig
	Auth      AuthConfig
	Transfer  TransferConfig
	NATSURL   string
	Telemetry TelemetryConfig
	Demo      DemoConfig
	GinMode   string
}

// DBConfig holds the PostgreSQL connection settings
type DBConfig struct {
	ConnStr string
}

// AuthConfig holds session token settings
type AuthConfig struct {
	JWTKey       string
	TokenTTL     time.Duration
	CookieSecure bool
}

// TransferConfig bounds a single transfer
type TransferConfig struct {
	Timeout     time.Duration
	LockTimeout time.Duration
}

// TelemetryConfig holds logging and tracing settings
type TelemetryConfig struct {
	ServiceName  string
	Environment  string
	LogLevel     string
	OTLPEndpoint string
}

// DemoConfig holds settings for seeded demo data
type DemoConfig struct {
	Seed           bool
	OpeningBalance decimal.Decimal
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first without overriding set variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":3000"),
		GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		Store:    getEnv("STORE", StorePostgres),
		DB: DBConfig{
			ConnStr: dbConnStr(),
		},
		Auth: AuthConfig{
			JWTKey:       os.Getenv("JWT_KEY"),
			TokenTTL:     getDuration("TOKEN_TTL", 24*time.Hour, &errs),
			CookieSecure: getBool("COOKIE_SECURE", true, &errs),
		},
		Transfer: TransferConfig{
			Timeout:     getDuration("TRANSFER_TIMEOUT", 5*time.Second, &errs),
			LockTimeout: getDuration("LOCK_TIMEOUT", 2*time.Second, &errs),
		},
		NATSURL: os.Getenv("NATS_URL"),
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("SERVICE_NAME", "payments-backend"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Demo: DemoConfig{
			Seed:           getBool("SEED_DEMO", false, &errs),
			OpeningBalance: getDecimal("OPENING_BALANCE", decimal.Zero, &errs),
		},
		GinMode: getEnv("GIN_MODE", "release"),
	}

	if cfg.Auth.JWTKey == "" {
		errs = append(errs, errors.New("JWT_KEY is required"))
	}
	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store))
	}
	if err := domain.ValidateBalance(cfg.Demo.OpeningBalance); err != nil {
		errs = append(errs, fmt.Errorf("OPENING_BALANCE: %w", err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func dbConnStr() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "payments"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

func getDecimal(key string, defaultValue decimal.Decimal, errs *[]error) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
