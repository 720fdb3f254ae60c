// Package logging configures log/slog for luarun.
//
// Records go to the configured writer as text or JSON. When the process
// runs under systemd with journald available, they are also sent to the
// journal with upper-cased attribute keys as journal fields.
//
//	logger := logging.New(logging.Config{Level: "debug", Format: "json"}, os.Stderr)
//	logger.Info("script started", "path", path)
//
//	log := logging.Module(logger, "process")
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// Config represents logging configuration.
type Config struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Journal bool   `toml:"journal"`
}

// New builds a logger writing to w. An unknown level falls back to info.
func New(cfg Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Journal && journal.Enabled() {
		handler = NewMultiHandler(handler, NewJournalHandler(level))
	}

	return slog.New(handler)
}

// Module returns a child logger tagged with the module name.
func Module(l *slog.Logger, module string) *slog.Logger {
	return l.With("module", module)
}

// ParseLevel maps debug, info, warn and error to slog levels.
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

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
