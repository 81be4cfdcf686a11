package main

import (
	"log/slog"
	"os"
	"strings"
)

// setupLogging installs the default slog logger at the level named by
// level (DEBUG/INFO/WARNING/ERROR, case-insensitive), per spec §6's
// "logging.level: one of DEBUG/INFO/WARNING/ERROR; controls verbosity."
// An unrecognized or empty level falls back to INFO.
func setupLogging(level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})))
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
