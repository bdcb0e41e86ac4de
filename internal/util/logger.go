// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the process-wide logger. It discards everything until
// InitLogger is called, so packages can log from tests.
var Logger = slog.New(slog.DiscardHandler)

// InitLogger initializes the global logger at the given level ("debug",
// "info", "warn", "error"; empty means info).
// Set TZSIGNER_DEBUG=1 to force debug logging.
func InitLogger(level string) {
	lvl := slog.LevelInfo // Default: only show Info, Warn, Error
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	// Check for debug mode
	if os.Getenv("TZSIGNER_DEBUG") != "" {
		lvl = slog.LevelDebug
	}

	// Create a text handler that writes to stdout
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
		// Remove timestamp for cleaner output
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})

	Logger = slog.New(handler)
}

// Debug logs a debug message (only shown at debug level)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
