// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures structured logging for CineGraph services.
//
// It is a thin layer over the standard library slog package: it builds
// a handler from configuration (level, format, service name) and
// installs it as the process default so every package can log through
// plain slog calls.
//
// # Usage
//
//	logging.Setup(logging.Config{
//	    Level:   os.Getenv("LOG_LEVEL"),
//	    JSON:    true,
//	    Service: "chatbot",
//	})
//	slog.Info("Starting chatbot server", "port", port)
//
// This package does NOT automatically redact sensitive data. Callers
// must ensure API keys and credentials are never logged.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Config controls the process-wide logger. A zero value yields Info
// level, text format, no service attribute.
type Config struct {
	// Level is the minimum level to emit: "debug", "info", "warn",
	// or "error". Unknown values fall back to info.
	Level string

	// JSON selects JSON output instead of human-readable text.
	// Services run with JSON; text is for local development.
	JSON bool

	// Service is attached to every entry as the "service" attribute
	// so aggregated logs can be filtered by component.
	Service string
}

// Setup builds a logger from cfg, installs it as the slog default,
// and returns it.
func Setup(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", cfg.Service),
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to its slog level. Unknown names map
// to Info so a typo in an env var never silences errors.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
