package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions selects where logs go and how they look.
type LogOptions struct {
	// File is the rotating log file; empty logs to stdout only.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      string // debug | info | warn | error
	Format     string // text | json
}

// ParseLevel maps a level name to slog. Unknown names report ok=false and yield info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "info", "":
		return slog.LevelInfo, true
	default:
		return slog.LevelInfo, false
	}
}

// NewLogger builds a logger writing to stdout and, when configured, to a
// size-rotated file. The returned closer releases the file.
func NewLogger(opts LogOptions) (*slog.Logger, io.Closer) {
	lvl, known := ParseLevel(opts.Level)

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stdout, rot)
		closer = rot
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	logger := slog.New(handler)
	if !known {
		logger.Warn("unknown log level, using info", slog.String("value", opts.Level))
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
