// Package logging configures the process-wide slog logger:
// - text output on a TTY, JSON otherwise (LOG_FORMAT overrides)
// - LOG_LEVEL env var (debug/info/warn/error)
// - source file:line attrs with paths shortened relative to the working dir
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New builds a logger from the environment. Format resolution order:
// LOG_FORMAT (text/json), then TTY detection on stdout.
func New() *slog.Logger {
	return NewWithWriter(os.Stdout, isTerminal(os.Stdout))
}

// NewWithWriter builds a logger writing to w. tty selects the text handler
// unless LOG_FORMAT forces a format.
func NewWithWriter(w io.Writer, tty bool) *slog.Logger {
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	useText := format == "text" || (format == "" && tty)
	level := ParseLevel(os.Getenv("LOG_LEVEL"))

	wd, _ := os.Getwd()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					if rel, err := filepath.Rel(wd, src.File); err == nil && !strings.HasPrefix(rel, "..") {
						src.File = rel
					} else {
						src.File = filepath.Base(src.File)
					}
				}
			}
			return a
		},
	}

	if useText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetDefault builds a logger from the environment and installs it as the
// slog default. Returns it for direct use.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a level name to a slog.Level, defaulting to info.
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

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
