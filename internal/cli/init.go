// Package cli provides common CLI initialization utilities shared by
// cmd/corredo and cmd/corredo-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"corredo/internal/amqp"
	"corredo/internal/config"
	"corredo/internal/events"
	"corredo/internal/log"
	"corredo/internal/redis"
	"corredo/internal/sheets"
	"corredo/internal/sheets/google"
	"corredo/internal/sheets/memory"
	"corredo/internal/storage"
)

// EventBus publishes and consumes item events.
type EventBus interface {
	events.Publisher
	events.Consumer
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger() *log.Logger {
	cfg := log.DefaultConfig()
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		cfg.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// ConnectEvents opens the configured event backend. With EVENTS_BACKEND=none
// it returns nil and no error.
func ConnectEvents(ctx context.Context, cfg *config.Config, logger *log.Logger) (EventBus, error) {
	switch cfg.EventsBackend {
	case config.EventsAMQP:
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		return c, nil
	case config.EventsRedis:
		opts := redis.DefaultOptions(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel)
		c, err := redis.NewClient(ctx, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return c, nil
	default:
		return nil, nil
	}
}

// NewLedger returns the Google Sheets ledger when a spreadsheet is
// configured and an in-memory one otherwise.
func NewLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.PurchaseLedger, error) {
	if !cfg.LedgerEnabled() {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, keeping the purchase ledger in memory")
		return memory.New(), nil
	}
	opts := google.OptionsFromEnv()
	opts.SpreadsheetID = cfg.GoogleSpreadsheetID
	opts.SheetName = cfg.GoogleSheetName
	client, err := google.New(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("create sheets ledger: %w", err)
	}
	return client, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
