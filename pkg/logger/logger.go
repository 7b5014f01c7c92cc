// Package logger builds the application slog.Logger: leveled JSON or
// text output, optional rotating file sink, sensitive-field masking,
// and error forwarding to Sentry.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describe how the root logger is assembled.
type Options struct {
	// Level is the minimum level: debug, info, warn, or error.
	Level string
	// Format selects the encoder: "json" or "text".
	Format string
	// FilePath, when set, adds a size-rotated file sink next to stdout.
	FilePath      string
	FileMaxSizeMB int
	FileMaxAge    int
	FileBackups   int
	// SentryEnabled forwards error-level records to the Sentry hub; the
	// hub itself must already be initialized.
	SentryEnabled bool
}

// New assembles the root logger. The returned LevelVar changes the
// minimum level at runtime without rebuilding the logger.
func New(opts Options) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))

	var sink io.Writer = os.Stdout
	if opts.FilePath != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.FileMaxSizeMB,
			MaxAge:     opts.FileMaxAge,
			MaxBackups: opts.FileBackups,
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		base = slog.NewTextHandler(sink, handlerOpts)
	} else {
		base = slog.NewJSONHandler(sink, handlerOpts)
	}

	handlers := []slog.Handler{base}
	if opts.SentryEnabled {
		handlers = append(handlers, slogsentry.Option{
			Level: slog.LevelError,
		}.NewSentryHandler())
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = NewFanoutHandler(handlers...)
	}

	return slog.New(NewMaskingHandler(handler)), level
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
