package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleLogger implements Tier 1: console/terminal logging.
// Output is either slog JSON or colored text, selected by config.
type ConsoleLogger struct {
	config  *Config
	handler slog.Handler
}

// NewConsoleLogger creates a new console logger
func NewConsoleLogger(config *Config) *ConsoleLogger {
	opts := &slog.HandlerOptions{
		Level: slogLevel(config.Level),
	}

	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else if config.Console.Color {
		handler = newColorTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return &ConsoleLogger{
		config:  config,
		handler: handler,
	}
}

// log writes a log entry to the console
func (cl *ConsoleLogger) log(level LogLevel, msg string, component Component, fields map[string]interface{}) {
	record := slog.NewRecord(time.Now(), slogLevel(level), msg, 0)

	if component != "" {
		record.AddAttrs(slog.String("component", string(component)))
	}

	for k, v := range fields {
		record.AddAttrs(slog.Any(k, v))
	}

	// Nothing useful to do with a handler error here
	_ = cl.handler.Handle(context.Background(), record)
}

// slogLevel converts our LogLevel to slog.Level
func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// colorTextHandler is a slog handler with level-colored text output
type colorTextHandler struct {
	w    io.Writer
	opts *slog.HandlerOptions
	mu   sync.Mutex

	debugColor *color.Color
	infoColor  *color.Color
	warnColor  *color.Color
	errorColor *color.Color
}

// newColorTextHandler creates a new colored text handler
func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	return &colorTextHandler{
		w:          w,
		opts:       opts,
		debugColor: color.New(color.FgCyan),
		infoColor:  color.New(color.FgGreen),
		warnColor:  color.New(color.FgYellow),
		errorColor: color.New(color.FgRed, color.Bold),
	}
}

// Enabled implements slog.Handler
func (h *colorTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle implements slog.Handler
func (h *colorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var levelColor *color.Color
	switch {
	case r.Level >= slog.LevelError:
		levelColor = h.errorColor
	case r.Level >= slog.LevelWarn:
		levelColor = h.warnColor
	case r.Level >= slog.LevelInfo:
		levelColor = h.infoColor
	default:
		levelColor = h.debugColor
	}

	if _, err := io.WriteString(h.w, r.Time.Format(time.RFC3339)+" "); err != nil {
		return err
	}
	if _, err := levelColor.Fprintf(h.w, "%-5s", r.Level.String()); err != nil {
		return err
	}
	if _, err := io.WriteString(h.w, " "+r.Message); err != nil {
		return err
	}

	var attrErr error
	r.Attrs(func(a slog.Attr) bool {
		if _, err := io.WriteString(h.w, " "+a.Key+"="+a.Value.String()); err != nil {
			attrErr = err
			return false
		}
		return true
	})
	if attrErr != nil {
		return attrErr
	}

	_, err := io.WriteString(h.w, "\n")
	return err
}

// WithAttrs implements slog.Handler
func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

// WithGroup implements slog.Handler
func (h *colorTextHandler) WithGroup(name string) slog.Handler {
	return h
}
