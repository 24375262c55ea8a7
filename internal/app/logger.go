package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

// NewStderrLogger is NewLogger for commands whose stdout carries results.
func NewStderrLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	if InTestMode() {
		opts.AddSource = false
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
