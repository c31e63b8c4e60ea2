package main

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/console"
	applog "expensetracker/internal/log"
	"expensetracker/internal/repository"
	"expensetracker/internal/viewstate"
)

func main() {
	// Load .env file for local development
	cli.LoadEnvFile()

	level, _ := config.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := cli.SetupLogger(level)
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.InitStore(ctx, logger.WithComponent(applog.ComponentStore), cfg)
	repo := repository.New(store,
		repository.WithLocation(loc),
		repository.WithLogger(logger.WithComponent(applog.ComponentRepository).Logger))

	vsLogger := logger.WithComponent(applog.ComponentViewState)
	coord, err := viewstate.New(ctx, repo,
		viewstate.WithLocation(loc),
		viewstate.WithLogger(vsLogger.Logger),
		viewstate.WithErrorHandler(func(err error) {
			vsLogger.Error("Storage fault", applog.FieldError, err)
		}))
	if err != nil {
		logger.Error("Failed to start view state", applog.FieldError, err)
		store.Close()
		os.Exit(1)
	}

	con := console.New(coord, os.Stdin, os.Stdout,
		console.WithLocation(loc),
		console.WithUndoWindow(cfg.UndoWindow),
		console.WithCalendarMonths(cfg.CalendarMonths),
		console.WithLogger(logger.WithComponent(applog.ComponentConsole).Logger))

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(store.RangeCache())

	logger.Info("Starting expensetracker",
		applog.FieldPath, cfg.DBPath,
		"timezone", loc.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Leaving the console ends the program
		defer cancel()
		return con.Run(gctx)
	})
	if cfg.CacheSize > 0 {
		g.Go(func() error {
			return caches.Run(gctx, cfg.CacheCleanupInterval)
		})
	}

	runErr := g.Wait()

	cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() {
		coord.Close()
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", applog.FieldError, err)
		}
	})

	if runErr != nil && runErr != context.Canceled {
		logger.Error("Console failed", applog.FieldError, runErr)
		os.Exit(1)
	}
}
