// Package logging builds the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// debugEnv enables verbose logging when set to 1/true/yes, matching
// the behavior expected by the surrounding build workflow.
const debugEnv = "INKPRESS_DEBUG"

// New creates a console slog.Logger. Debug level wins when either the
// flag or the environment toggle is set.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || DebugFromEnv() {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// DebugFromEnv reports whether the environment requests debug logging.
func DebugFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(debugEnv))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
