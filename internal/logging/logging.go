// Package logging builds slog loggers from rouster's 1 (debug) to 5 (fatal)
// verbosity scale.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// LevelFatal sits above slog.LevelError so that verbosity 5 only lets
// fatal records through.
const LevelFatal = slog.LevelError + 4

// Level maps a verbosity to a slog level. Out-of-range values are clamped.
func Level(verbosity int) slog.Level {
	switch {
	case verbosity <= 1:
		return slog.LevelDebug
	case verbosity == 2:
		return slog.LevelInfo
	case verbosity == 3:
		return slog.LevelWarn
	case verbosity == 4:
		return slog.LevelError
	default:
		return LevelFatal
	}
}

// New returns a logger writing to w. format is "json" or "text" (default).
func New(w io.Writer, verbosity int, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       Level(verbosity),
		ReplaceAttr: renameFatal,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func renameFatal(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelFatal {
		a.Value = slog.StringValue("FATAL")
	}
	return a
}
