// Package cli provides the process setup shared by the expensetracker
// commands: logging, configuration, the store, and signal handling.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
	"expensetracker/internal/storage"
)

// SetupLogger initializes structured logging at the given level.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(level slog.Level) *applog.Logger {
	logConfig := applog.DefaultConfig()
	logConfig.Level = level
	logger := applog.New(logConfig)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitStore opens the store described by cfg. The store logs through
// logger.
// Returns the store or exits the process on failure.
func InitStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *storage.Store {
	store, err := storage.Open(ctx, storage.Options{
		Path:      cfg.DBPath,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Logger:    logger.Logger,
	})
	if err != nil {
		logger.Error("Failed to open store", applog.FieldError, err, applog.FieldPath, cfg.DBPath)
		os.Exit(1)
	}

	if version, dirty, err := storage.SchemaVersion(storage.DSN(cfg.DBPath)); err == nil {
		logger.Debug("Schema ready", applog.FieldVersion, version, "dirty", dirty)
	}
	return store
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
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

// GracefulShutdown runs cleanup, giving up after timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if cleanup != nil {
			cleanup()
		}
	}()

	select {
	case <-done:
		logger.Info("Shutdown complete")
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached", "timeout", timeout)
	}
}
