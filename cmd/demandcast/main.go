// Package main implements the demandcast forecasting service.
// The service trains demand models per item and configuration, caches them
// across restarts, and serves batch forecasts with intermittent-demand
// handling via HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantaleaf/demandcast/cmd/demandcast/config"
	"github.com/quantaleaf/demandcast/cmd/demandcast/logger"
	"github.com/quantaleaf/demandcast/cmd/demandcast/metrics"
	"github.com/quantaleaf/demandcast/cmd/demandcast/router"
	"github.com/quantaleaf/demandcast/cmd/demandcast/store"
	"github.com/quantaleaf/demandcast/pkg/features"
	"github.com/quantaleaf/demandcast/pkg/forecast"
	"github.com/quantaleaf/demandcast/pkg/httpx"
	"github.com/quantaleaf/demandcast/pkg/modelcache"
)

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting demandcast",
		"version", "v0.1.0",
		"cache_backend", cfg.CacheBackend,
		"default_model", cfg.DefaultModel,
	)

	cache, healthCheck := store.New(cfg, logger)
	defer func() {
		if closer, ok := cache.(interface{ Close() error }); ok {
			closer.Close()
		}
	}()

	m := metrics.New()
	m.SetCacheEntries(len(cache.Entries()))

	engine := forecast.NewEngine(features.DefaultRecipe(), logger)
	orch := forecast.NewOrchestrator(cache, engine, logger)

	defaults := router.Defaults{ModelType: cfg.DefaultModel, HorizonDays: cfg.DefaultHorizon}
	mux := router.SetupRoutes(cache, orch, m, defaults, healthCheck, logger)
	handler := httpx.RecoveryMiddleware(logger)(httpx.LoggingMiddleware(logger)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if ds, ok := cache.(*modelcache.DiskStore); ok && cfg.CachePruneAge > 0 {
		go pruneLoop(ctx, ds, m, cfg.CachePruneAge, logger)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// pruneLoop evicts stale disk cache entries once an hour.
func pruneLoop(ctx context.Context, ds *modelcache.DiskStore, m *metrics.Metrics, age time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := ds.PruneOlderThan(age); pruned > 0 {
				logger.Info("pruned stale cache entries", "count", pruned, "age", age)
			}
			m.SetCacheEntries(ds.Len())
		}
	}
}
