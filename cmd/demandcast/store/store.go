// Package store provides model cache backend initialization for the
// demandcast service.
//
// This package acts as a factory for creating modelcache.Store
// implementations based on the service configuration. It supports two
// backends:
//
//   - Disk: Local filesystem cache (default) - suitable for single-instance
//     deployments. Models survive restarts via the consolidated index file.
//
//   - Redis: Shared Redis cache - for multi-instance deployments where
//     every replica should reuse the same trained models.
//
// The factory performs fail-fast initialization, validating the backend
// during startup and exiting immediately if it is unavailable, so the
// service never runs with a broken cache configuration.
package store

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/quantaleaf/demandcast/cmd/demandcast/config"
	"github.com/quantaleaf/demandcast/pkg/modelcache"
)

// New creates and initializes a model cache backend from the configuration.
// Exits with status 1 when the backend cannot be initialized or reached.
//
// The returned health check is nil for disk and a Redis ping for redis.
func New(cfg *config.Config, logger *slog.Logger) (modelcache.Store, func() error) {
	switch cfg.CacheBackend {
	case "redis":
		rs, err := modelcache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL, logger)
		if err != nil {
			logger.Error("failed to create redis cache", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}

		logger.Info("using redis model cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.RedisTTL)
		check := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rs.Ping(ctx)
		}
		return rs, check

	default:
		ds, err := modelcache.NewDiskStore(cfg.CacheDir, logger)
		if err != nil {
			logger.Error("failed to open disk cache", "dir", cfg.CacheDir, "error", err)
			os.Exit(1)
		}
		logger.Info("using disk model cache", "dir", cfg.CacheDir, "entries", ds.Len())
		return ds, nil
	}
}
