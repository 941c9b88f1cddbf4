// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the process-wide logger. It discards output until InitLogger runs.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// InitLogger initializes the global logger.
// Set JSGUARD_DEBUG=1 to enable debug logging.
// Logs go to stderr so script output on stdout stays clean.
func InitLogger() {
	InitLoggerTo(os.Stderr)
}

// InitLoggerTo initializes the global logger writing to w.
func InitLoggerTo(w io.Writer) {
	level := slog.LevelInfo

	if os.Getenv("JSGUARD_DEBUG") != "" {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time attribute for cleaner CLI output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})

	Logger = slog.New(handler)
}

// Debug logs a debug message (only shown when JSGUARD_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
