package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// SlogLogger implements Logger on top of log/slog with a colored
// single-line handler.
type SlogLogger struct {
	logger *slog.Logger
}

// New creates a colored logger writing to the given writer at the given
// minimum level. A nil writer defaults to stdout.
func New(minLevel slog.Level, writer io.Writer) *SlogLogger {
	if writer == nil {
		writer = os.Stdout
	}

	return &SlogLogger{
		logger: slog.New(&coloredHandler{
			writer:   writer,
			minLevel: minLevel,
		}),
	}
}

func (l *SlogLogger) Debug(msg string, args ...interface{}) {
	l.logger.Debug(msg, pairs(args...)...)
}

func (l *SlogLogger) Info(msg string, args ...interface{}) {
	l.logger.Info(msg, pairs(args...)...)
}

func (l *SlogLogger) Warn(msg string, args ...interface{}) {
	l.logger.Warn(msg, pairs(args...)...)
}

func (l *SlogLogger) Error(msg string, args ...interface{}) {
	l.logger.Error(msg, pairs(args...)...)
}

// With returns a logger carrying the given key/value pairs on every
// record. Used to scope a logger to a component or client.
func (l *SlogLogger) With(args ...interface{}) Logger {
	return &SlogLogger{logger: l.logger.With(pairs(args...)...)}
}

// pairs drops a trailing unpaired value and non-string keys so malformed
// call sites degrade instead of panicking
func pairs(args ...interface{}) []any {
	if len(args) == 0 {
		return nil
	}

	attrs := make([]any, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	return attrs
}

type coloredHandler struct {
	writer   io.Writer
	minLevel slog.Level
	attrs    []slog.Attr
}

func (h *coloredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *coloredHandler) Handle(_ context.Context, r slog.Record) error {
	buf := fmt.Sprintf("%s %s %s",
		r.Time.Format("2006-01-02 15:04:05"),
		coloredLevel(r.Level),
		r.Message)

	for _, attr := range h.attrs {
		buf += fmt.Sprintf(" %s=%v", attr.Key, attr.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	_, err := h.writer.Write([]byte(buf + "\n"))
	return err
}

func (h *coloredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &coloredHandler{
		writer:   h.writer,
		minLevel: h.minLevel,
		attrs:    merged,
	}
}

func (h *coloredHandler) WithGroup(name string) slog.Handler {
	// groups flatten into the single-line format
	return h
}

func coloredLevel(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return colorGray + "DBG" + colorReset
	case slog.LevelInfo:
		return colorBlue + "INF" + colorReset
	case slog.LevelWarn:
		return colorYellow + "WRN" + colorReset
	case slog.LevelError:
		return colorRed + "ERR" + colorReset
	default:
		return level.String()
	}
}
