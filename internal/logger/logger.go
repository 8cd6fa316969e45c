// Package logger provides a simple wrapper around slog for structured logging.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Logger is the global logger instance.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Handler selects the output format of the logger.
type Handler int

const (
	// DevHandler writes colourised, human readable lines.
	DevHandler Handler = iota
	// TextHandler writes logfmt style lines.
	TextHandler
	// JSONHandler writes one JSON object per line.
	JSONHandler
)

// Options configures Init.
type Options struct {
	Writer  io.Writer
	Level   string
	Handler string
	JSON    bool
}

// Init replaces the global logger according to opts.
// Without an explicit handler, JSON is used whenever the writer is not a terminal.
func Init(opts Options) {
	Logger = New(opts)
	slog.SetDefault(Logger)
}

// New builds a logger without touching the global one.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	lvl := ParseLevel(opts.Level)

	switch pickHandler(opts, w) {
	case JSONHandler:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	case TextHandler:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	default:
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(w),
		}))
	}
}

func pickHandler(opts Options, w io.Writer) Handler {
	if opts.JSON {
		return JSONHandler
	}
	switch strings.ToLower(opts.Handler) {
	case "json":
		return JSONHandler
	case "txt", "text":
		return TextHandler
	case "dev":
		return DevHandler
	}
	if !isTerminal(w) {
		return JSONHandler
	}
	return DevHandler
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
