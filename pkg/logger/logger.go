// Package logger is the structured logging facade used across crossfire.
// It wraps slog behind a small interface so call sites pass typed fields
// and a context, and never touch handlers directly.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Logger is the logging interface handed to components.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	// Named tags every record with component=name.
	Named(name string) Logger
}

type handle struct {
	base *slog.Logger
}

func (h *handle) Named(name string) Logger {
	return &handle{base: h.base.With(slog.String("component", name))}
}

func (h *handle) Debug(ctx context.Context, msg string, fields ...Field) {
	h.write(ctx, slog.LevelDebug, msg, fields)
}

func (h *handle) Info(ctx context.Context, msg string, fields ...Field) {
	h.write(ctx, slog.LevelInfo, msg, fields)
}

func (h *handle) Warn(ctx context.Context, msg string, fields ...Field) {
	h.write(ctx, slog.LevelWarn, msg, fields)
}

func (h *handle) Error(ctx context.Context, msg string, fields ...Field) {
	h.write(ctx, slog.LevelError, msg, fields)
}

func (h *handle) Fatal(ctx context.Context, msg string, fields ...Field) {
	h.write(ctx, slog.LevelError, msg, fields)
	os.Exit(1)
}

// write must be called directly from a level method so the caller lookup
// lands on the code that logged.
func (h *handle) write(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !h.base.Enabled(ctx, level) {
		return
	}
	carried := FieldsFrom(ctx)
	attrs := make([]slog.Attr, 0, len(carried)+len(fields)+1)
	for _, f := range carried {
		attrs = append(attrs, f.attr())
	}
	for _, f := range fields {
		attrs = append(attrs, f.attr())
	}
	attrs = append(attrs, slog.String("source", caller(3)))
	h.base.LogAttrs(ctx, level, msg, attrs...)
}

// caller formats the frame skip levels up as path:line, relative to the
// working directory when possible.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown:0"
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, file); err == nil {
			file = rel
		}
	} else {
		file = filepath.Base(file)
	}
	return fmt.Sprintf("%s:%d", file, line)
}

var (
	mu     sync.RWMutex
	global Logger
	level  slog.LevelVar
)

type config struct {
	format string
	out    io.Writer
}

// Option configures Init.
type Option func(*config)

// WithFormat selects "text" (default) or "json" output.
func WithFormat(format string) Option {
	return func(c *config) {
		if format = strings.ToLower(strings.TrimSpace(format)); format != "" {
			c.format = format
		}
	}
}

// WithOutput redirects log output. Tests pass io.Discard or a buffer.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.out = w
		}
	}
}

// Init installs the global logger. Calling it again replaces the handler;
// loggers obtained earlier keep writing to the old one.
func Init(opts ...Option) error {
	c := config{format: "text", out: os.Stderr}
	for _, opt := range opts {
		opt(&c)
	}

	hopts := &slog.HandlerOptions{Level: &level}
	var h slog.Handler
	switch c.format {
	case "text":
		h = slog.NewTextHandler(c.out, hopts)
	case "json":
		h = slog.NewJSONHandler(c.out, hopts)
	default:
		return fmt.Errorf("unknown log format: %s", c.format)
	}

	mu.Lock()
	global = &handle{base: slog.New(h)}
	mu.Unlock()
	return nil
}

// Get returns the global logger. It panics before Init.
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		panic("logger not initialized; call logger.Init() first")
	}
	return global
}

// Named is shorthand for Get().Named(name).
func Named(name string) Logger {
	return Get().Named(name)
}

// Sync exists for symmetry with buffered backends. slog writes through.
func Sync() error {
	return nil
}
