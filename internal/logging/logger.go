package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogFormat selects the handler used by New: "json" or "text" (default).
const EnvLogFormat = "SKILLFLOW_LOG_FORMAT"

// New creates the application logger. It writes to Stderr so logs never mix
// with chat output or JSON-RPC on Stdout.
func New(level slog.Level) *slog.Logger {
	return NewWriter(os.Stderr, level, os.Getenv(EnvLogFormat))
}

// NewWriter creates a logger writing to w in the given format.
func NewWriter(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// replaceAttr standardizes "error" to "err" and drops empty session ids,
// which every turn of a channel without sessions would otherwise log.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "error":
		a.Key = "err"
	case "session_id":
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return slog.Attr{}
		}
	}
	return a
}
