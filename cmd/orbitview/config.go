package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/api"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/auth"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/logging"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/stream"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/tracing"
)

const envPrefix = "ORBITVIEW_"

func env(name string) string {
	return os.Getenv(envPrefix + name)
}

// envInt reads a positive integer, keeping def when the variable is unset or
// invalid.
func envInt(logger *slog.Logger, name string, def int) int {
	v := env(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+envPrefix+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func envMillis(logger *slog.Logger, name string, def time.Duration) time.Duration {
	return time.Duration(envInt(logger, name, int(def.Milliseconds()))) * time.Millisecond
}

func envBool(logger *slog.Logger, name string, def bool) bool {
	v := env(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+envPrefix+name+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

// loadLogConfig runs before a logger exists, so it cannot warn; the logging
// package reports an invalid level itself.
func loadLogConfig() logging.Config {
	cfg := logging.Config{
		Level: env("LOG_LEVEL"),
		File:  env("LOG_FILE"),
	}
	for name, dst := range map[string]*int{
		"LOG_MAX_SIZE_MB":  &cfg.MaxSizeMB,
		"LOG_MAX_BACKUPS":  &cfg.MaxBackups,
		"LOG_MAX_AGE_DAYS": &cfg.MaxAgeDays,
	} {
		if n, err := strconv.Atoi(env(name)); err == nil && n > 0 {
			*dst = n
		}
	}
	return cfg
}

func loadTracingConfig(logger *slog.Logger) tracing.Config {
	cfg := tracing.Config{
		Enabled:     envBool(logger, "TRACING_ENABLED", false),
		ServiceName: env("TRACING_SERVICE_NAME"),
		Exporter:    env("TRACING_EXPORTER"),
		SampleRatio: 1,
	}
	if v := env("TRACING_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 1 {
			logger.Warn("invalid "+envPrefix+"TRACING_SAMPLE_RATIO value, using default", "value", v, "default", 1)
		} else {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

func loadAPIConfig(logger *slog.Logger) (api.Config, error) {
	cfg := api.Config{
		Addr:       env("HTTP_ADDR"),
		TrustProxy: envBool(logger, "TRUST_PROXY", false),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	if v := env("AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New(envPrefix + "AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Auth.Enabled = enabled
	}
	if cfg.Auth.Enabled {
		cfg.Auth = auth.Config{
			Enabled:     true,
			Token:       env("AUTH_TOKEN"),
			PublicReads: envBool(logger, "AUTH_PUBLIC_READS", false),
		}
		if cfg.Auth.Token == "" {
			return cfg, errors.New(envPrefix + "AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled", "public_reads", cfg.Auth.PublicReads)
	}
	return cfg, nil
}

type catalogConfig struct {
	Files            []string
	SnapshotDir      string
	SnapshotMaxFiles int
	ReloadInterval   time.Duration
}

func loadCatalogConfig(logger *slog.Logger) catalogConfig {
	cfg := catalogConfig{
		SnapshotDir:      "/tmp/orbitview/catalog",
		SnapshotMaxFiles: envInt(logger, "SNAPSHOT_MAX_FILES", 5),
	}
	for _, f := range strings.Split(env("CATALOG_FILES"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			cfg.Files = append(cfg.Files, f)
		}
	}
	if v := env("SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}
	if env("CATALOG_RELOAD_SECONDS") != "" {
		cfg.ReloadInterval = time.Duration(envInt(logger, "CATALOG_RELOAD_SECONDS", 0)) * time.Second
	}

	logger.Info("catalog config",
		"files", cfg.Files,
		"snapshot_dir", cfg.SnapshotDir,
		"snapshot_max_files", cfg.SnapshotMaxFiles,
		"reload_seconds", cfg.ReloadInterval.Seconds(),
	)
	return cfg
}

type propConfig struct {
	Workers      int
	CacheSize    int
	MaxInstances int
}

func loadPropConfig(logger *slog.Logger) propConfig {
	cfg := propConfig{
		Workers:      envInt(logger, "PROP_WORKERS", runtime.NumCPU()),
		CacheSize:    envInt(logger, "PROP_CACHE_SIZE", propagation.DefaultCacheSize),
		MaxInstances: envInt(logger, "MAX_INSTANCES", pipeline.DefaultMaxInstances),
	}
	logger.Info("propagation config",
		"workers", cfg.Workers,
		"cache_size", cfg.CacheSize,
		"max_instances", cfg.MaxInstances,
	)
	return cfg
}

func loadEngineConfig(logger *slog.Logger) engine.Config {
	cfg := engine.Config{
		RenderInterval: envMillis(logger, "RENDER_INTERVAL_MS", 100*time.Millisecond),
		ClockInterval:  envMillis(logger, "CLOCK_INTERVAL_MS", 50*time.Millisecond),
	}
	logger.Info("engine config",
		"render_interval_ms", cfg.RenderInterval.Milliseconds(),
		"clock_interval_ms", cfg.ClockInterval.Milliseconds(),
	)
	return cfg
}

type viewConfig struct {
	InitialQuery string
	Debounce     time.Duration
	File         string
}

func loadViewConfig(logger *slog.Logger) viewConfig {
	cfg := viewConfig{
		InitialQuery: env("INITIAL_QUERY"),
		Debounce:     envMillis(logger, "URL_DEBOUNCE_MS", state.DefaultDebounce),
		File:         env("VIEW_FILE"),
	}
	logger.Info("view config",
		"initial_query", cfg.InitialQuery,
		"debounce_ms", cfg.Debounce.Milliseconds(),
		"file", cfg.File,
	)
	return cfg
}

func loadStreamConfig(logger *slog.Logger, trustProxy bool) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: envInt(logger, "STREAM_MAX_CONCURRENT", 10),
		MaxConcurrent:      envInt(logger, "STREAM_MAX_TOTAL", 1000),
		BandwidthLimit:     envInt(logger, "STREAM_BANDWIDTH_LIMIT", 1048576),
		KeepaliveInterval:  time.Duration(envInt(logger, "STREAM_KEEPALIVE_INTERVAL", 30)) * time.Second,
		TrustProxy:         trustProxy,
	}
	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent", cfg.MaxConcurrent,
		"bandwidth_limit", cfg.BandwidthLimit,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)
	return cfg
}
