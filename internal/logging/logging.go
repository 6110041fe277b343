// Package logging builds the process-wide slog logger. Output is
// human-readable text when stdout is a terminal and JSON otherwise,
// which keeps `cellarlog serve` pleasant in a shell while staying
// machine-parseable under a process manager. LOG_FORMAT and LOG_LEVEL
// override the defaults.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New returns a configured logger. LOG_FORMAT forces "text" or "json";
// without it, a terminal gets text and everything else gets JSON.
// LOG_LEVEL accepts debug/info/warn/error and defaults to info.
func New() *slog.Logger {
	logFormat := os.Getenv("LOG_FORMAT")
	useText := logFormat == "text" || (logFormat == "" && isatty(os.Stdout))

	wd, _ := os.Getwd()

	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(os.Getenv("LOG_LEVEL")),
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Source paths relative to the working directory keep
			// log lines short
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					if rel, err := filepath.Rel(wd, src.File); err == nil {
						src.File = rel
					} else {
						src.File = filepath.Base(src.File)
					}
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// parseLogLevel maps a LOG_LEVEL value to a slog.Level, defaulting to
// info for anything unrecognized.
func parseLogLevel(level string) slog.Level {
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

// SetDefault installs a new configured logger as the slog default and
// returns it.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
