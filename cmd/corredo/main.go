package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"corredo/internal/cache"
	"corredo/internal/cli"
	"corredo/internal/core"
	"corredo/internal/events"
	apphttp "corredo/internal/http"
	"corredo/internal/log"
	"corredo/internal/services"
)

func main() {
	start := time.Now()
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting corredo", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	var publisher events.Publisher = events.Nop{}
	bus, err := cli.ConnectEvents(ctx, cfg, logger)
	if err != nil {
		// The list works without events; only the ledger mirror falls behind
		// until the worker reconciles.
		logger.Error("Event backend unavailable, continuing without events", log.FieldError, err, "backend", cfg.EventsBackend)
	} else if bus != nil {
		publisher = bus
		defer bus.Close()
		logger.Info("Publishing item events", "backend", cfg.EventsBackend)
	}

	store := services.NewItemStore(repo, publisher, logger)
	if err := store.Load(ctx); err != nil {
		logger.Error("Failed to load items", log.FieldError, err)
		os.Exit(1)
	}

	searchCache := cache.NewLRUCache[[]core.ShoppingItem](cfg.SearchCacheSize, cfg.SearchCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(searchCache)

	svc := services.NewShoppingService(store, searchCache, logger)
	defer svc.Close()

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, logger, apphttp.Options{
		RequestsPerMinute: cfg.HTTPRateLimit,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	// The writer outlives the server so in-flight requests can finish.
	storeCtx, stopStore := context.WithCancel(context.Background())
	defer stopStore()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return store.Run(storeCtx) })
	g.Go(func() error { return caches.Run(gctx, cfg.CacheCleanupInterval) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		defer stopStore()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("corredo stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("corredo stopped gracefully", "uptime", time.Since(start).Round(time.Second).String())
}
