// Package logging sets up the process-wide structured logger. Grounded on
// FocuswithJustin-JuniperBible/internal/logging's slog wrapper: a single
// package-level logger, configured once from the environment, silent by
// default.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EnvVar is the environment variable controlling log verbosity, mirroring
// original_source/dissect/database/sqlite3/wal.py's
// os.getenv("DISSECT_LOG_SQLITE3", "CRITICAL") pattern.
const EnvVar = "SQLITE3_FORENSICS_LOG"

var (
	once   sync.Once
	logger *slog.Logger
)

// Logger returns the package-wide logger, initialising it from EnvVar on
// first use. Recognised levels: DEBUG, INFO, WARN, ERROR, CRITICAL (mapped
// to slog.LevelError); anything else, including unset, silences output.
func Logger() *slog.Logger {
	once.Do(func() {
		level, ok := parseLevel(os.Getenv(EnvVar))
		var handler slog.Handler
		if !ok {
			handler = slog.NewTextHandler(io.Discard, nil)
		} else {
			handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		}
		logger = slog.New(handler)
	})
	return logger
}

func parseLevel(raw string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR", "CRITICAL":
		return slog.LevelError, true
	default:
		return slog.LevelError, false
	}
}
