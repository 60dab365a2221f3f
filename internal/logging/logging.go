// Package logging builds the process logger: JSON slog records on stdout, or
// on a size-rotated file when one is configured.
package logging

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level and destination.
type Config struct {
	Level      string // debug | info | warn | error (default: info)
	File       string // rotate into this file instead of stdout
	MaxSizeMB  int    // per-file size before rotation (default: 64)
	MaxBackups int    // rotated files kept (default: 5)
	MaxAgeDays int    // rotated files older than this are removed (default: 14)
}

// ParseLevel maps a level name to a slog level. Unknown names report false
// and yield Info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// New builds a logger for cfg. The returned closer releases the log file and
// is a no-op for stdout.
func New(cfg Config) (*slog.Logger, io.Closer) {
	level, ok := ParseLevel(cfg.Level)

	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		w, closer = lj, lj
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	if !ok {
		logger.Warn("invalid log level, using info", "level", cfg.Level)
	}
	return logger, closer
}

// LogBuildInfo records the platform and module build at startup.
func LogBuildInfo(logger *slog.Logger) {
	logger.Info("system information",
		"goarch", runtime.GOARCH,
		"goos", runtime.GOOS,
		"num_cpu", runtime.NumCPU(),
	)
	if bi, ok := debug.ReadBuildInfo(); ok {
		logger.Info("build",
			"go_version", bi.GoVersion,
			"path", bi.Path,
			"version", bi.Main.Version,
		)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
