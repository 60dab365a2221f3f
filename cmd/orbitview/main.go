package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/api"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/logging"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/stream"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/tracing"
)

func main() {
	logger, logCloser := logging.New(loadLogConfig())
	defer logCloser.Close()
	logging.LogBuildInfo(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, loadTracingConfig(logger), logger)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	apiCfg, err := loadAPIConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	catCfg := loadCatalogConfig(logger)
	catalogs := catalog.NewStore(logger)
	snapshots := catalog.NewSnapshotCache(catCfg.SnapshotDir, catCfg.SnapshotMaxFiles)

	// A snapshot lets the engine render before the first ingest finishes.
	if cat, err := snapshots.LoadLatest(); err != nil {
		logger.Info("no catalog snapshot, starting without catalog", "error", err)
	} else {
		catalogs.Set(cat)
		logger.Info("loaded catalog from snapshot", "records", cat.Len(), "loaded_at", cat.LoadedAt.Format(time.RFC3339))
	}

	propCfg := loadPropConfig(logger)
	prop := propagation.New(propCfg.CacheSize, logger)
	pool := propagation.NewWorkerPool(propCfg.Workers, logger)
	logger.Info("propagation pool ready", "workers", pool.Workers())
	pipe := pipeline.New(prop, pool, propCfg.MaxInstances, logger)

	viewCfg := loadViewConfig(logger)
	store := state.NewStore(state.Defaults(time.Now()), logger)
	urls := state.NewURLSync(store, viewCfg.Debounce, viewWriter(viewCfg.File, logger), logger)
	urls.Load(viewCfg.InitialQuery)
	defer urls.Close()

	eng := engine.New(loadEngineConfig(logger), catalogs, store, pipe, prop, logger)
	streams := stream.NewHandler(eng, loadStreamConfig(logger, apiCfg.TrustProxy), logger)
	srv := api.NewServer(apiCfg, eng, urls, streams, logger)

	go eng.Start(ctx)
	go ingestLoop(ctx, catalogs, snapshots, catCfg, logger)

	go func() {
		logger.Info("starting server", "addr", apiCfg.Addr, "auth_enabled", apiCfg.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Persist the final view before exiting.
	urls.Flush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// ingestLoop loads the configured catalog files, then reloads them every
// ReloadInterval when one is set. Each successful ingest is snapshotted.
func ingestLoop(ctx context.Context, catalogs *catalog.Store, snapshots *catalog.SnapshotCache, cfg catalogConfig, logger *slog.Logger) {
	if len(cfg.Files) == 0 {
		logger.Warn("no catalog files configured", "env", envPrefix+"CATALOG_FILES")
		return
	}

	ingest := func() {
		sources, err := catalog.LoadFiles(cfg.Files)
		if err != nil {
			logger.Error("catalog load failed", "error", err)
			return
		}
		cat, err := catalogs.Ingest(ctx, sources...)
		if err != nil {
			logger.Error("catalog ingest failed", "error", err)
			return
		}
		if err := snapshots.Write(cat); err != nil {
			logger.Warn("catalog snapshot write failed", "error", err)
		}
	}

	ingest()
	if cfg.ReloadInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.ReloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ingest()
		}
	}
}

// viewWriter persists the view query to path. With no path the query is only
// kept in memory and reported by GET /api/v1/state.
func viewWriter(path string, logger *slog.Logger) func(string) {
	if path == "" {
		return nil
	}
	return func(q string) {
		if err := os.WriteFile(path, []byte(q+"\n"), 0644); err != nil {
			logger.Warn("view query write failed", "path", path, "error", err)
		}
	}
}
