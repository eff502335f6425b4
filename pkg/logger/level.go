package logger

import (
	"context"
	"log/slog"
	"strings"
)

// LevelCritical marks faults that must page someone: isolation violations and
// tenant directory misconfiguration. It sorts above slog.LevelError.
const LevelCritical = slog.Level(12)

// ParseLevel converts a level name into slog.Level.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "critical", "crit":
		return LevelCritical, true
	}
	return slog.LevelInfo, false
}

// Critical logs msg at LevelCritical.
func Critical(ctx context.Context, log *slog.Logger, msg string, attrs ...slog.Attr) {
	if log == nil {
		log = slog.Default()
	}
	log.LogAttrs(ctx, LevelCritical, msg, attrs...)
}

func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}
