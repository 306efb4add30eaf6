package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// SetLevel changes the minimum level of the global handler. It applies to
// loggers already handed out.
func SetLevel(l slog.Level) { level.Set(l) }

// ParseLevel maps debug, info, warn (or warning) and error, in any case,
// to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// SetLevelString parses s with ParseLevel and applies it.
func SetLevelString(s string) error {
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	SetLevel(l)
	return nil
}
