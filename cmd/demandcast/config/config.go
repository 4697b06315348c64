// Package config implements the demandcast service config.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Listen string

	CacheBackend   string
	CacheDir       string
	CachePruneAge  time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisTTL       time.Duration

	DefaultModel   string
	DefaultHorizon int

	LogFormat string
	LogLevel  string
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided. Exits with status 1 on an unknown cache backend.
func ParseFlags() *Config {
	cfg := &Config{}

	// Server
	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")

	// Model cache
	flag.StringVar(&cfg.CacheBackend, "cache-backend", getEnv("CACHE_BACKEND", "disk"), "Model cache backend: disk or redis")
	flag.StringVar(&cfg.CacheDir, "cache-dir", getEnv("CACHE_DIR", "model_cache"), "Directory for the disk cache")
	flag.DurationVar(&cfg.CachePruneAge, "cache-prune-age", getEnvDuration("CACHE_PRUNE_AGE", 0), "Evict disk cache entries older than this (0 disables pruning)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 0), "TTL for redis cache entries (0 means no expiry)")

	// Forecast defaults for requests that omit them
	flag.StringVar(&cfg.DefaultModel, "default-model", getEnv("DEFAULT_MODEL", "ridge"), "Model type when a request omits one")
	flag.IntVar(&cfg.DefaultHorizon, "default-horizon", getEnvInt("DEFAULT_HORIZON", 30), "Forecast horizon in days when a request omits one")

	// Logging
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.Parse()

	if cfg.CacheBackend != "disk" && cfg.CacheBackend != "redis" {
		fmt.Fprintf(os.Stderr, "Error: unknown cache backend %q (want disk or redis)\n", cfg.CacheBackend)
		os.Exit(1)
	}
	if cfg.DefaultHorizon <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --default-horizon must be positive")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
