package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"corredo/internal/cli"
	"corredo/internal/log"
	"corredo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting corredo-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bus, err := cli.ConnectEvents(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect event backend", log.FieldError, err, "backend", cfg.EventsBackend)
		os.Exit(1)
	}
	if bus == nil {
		logger.Error("The worker needs an event backend, set EVENTS_BACKEND to amqp or redis")
		os.Exit(1)
	}
	defer bus.Close()

	ledger, err := cli.NewLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize purchase ledger", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewLedgerWorker(repo, ledger, logger)

	// Catch up on events missed while the worker was down.
	logger.Info("Performing startup reconcile...")
	if err := w.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", log.FieldError, err)
		// Don't exit - the periodic reconcile retries.
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bus.Consume(gctx, w.HandleEvent) })
	g.Go(func() error { return w.RunReconciler(gctx, cfg.LedgerReconcileInterval) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("corredo-worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}
