// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects handler and level. Empty fields fall back to
// PIISCAN_LOG_LEVEL and PIISCAN_JSON_LOG.
type Options struct {
	Level  string
	JSON   bool
	Output io.Writer // default os.Stderr
}

// Init builds a logger from opts, installs it as slog's default and returns it.
func Init(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := opts.Level
	if level == "" {
		level = os.Getenv("PIISCAN_LOG_LEVEL")
	}
	json := opts.JSON || envBool("PIISCAN_JSON_LOG")
	hopts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug/info/warn/error to a slog level; anything else is
// warn, so a CLI run stays quiet unless asked.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "json", "yes":
		return true
	}
	return false
}
