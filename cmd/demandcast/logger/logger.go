// Package logger builds the service-wide slog.Logger from the config:
// text or JSON output, selectable level, always stdout.
package logger

import (
	"log/slog"
	"os"

	"github.com/quantaleaf/demandcast/cmd/demandcast/config"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New builds a logger from cfg. Unknown levels fall back to info.
func New(cfg *config.Config) *slog.Logger {
	level, ok := levels[cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
