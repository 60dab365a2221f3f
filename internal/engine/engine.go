// Package engine drives the simulation. It owns two loops: a clock loop that
// advances the simulation time and a render loop that runs the pipeline into
// a back buffer and swaps it to the front. Readers always see a complete
// frame.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
)

// ErrNotReady is returned before the first catalog has been rendered.
var ErrNotReady = errors.New("engine not ready")

// Config holds engine cadences.
type Config struct {
	RenderInterval time.Duration // pipeline tick (default: 100ms)
	ClockInterval  time.Duration // simulation clock advance (default: 50ms)
	WaitInterval   time.Duration // catalog poll while empty (default: 1s)
}

func (c Config) withDefaults() Config {
	if c.RenderInterval <= 0 {
		c.RenderInterval = 100 * time.Millisecond
	}
	if c.ClockInterval <= 0 {
		c.ClockInterval = 50 * time.Millisecond
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = time.Second
	}
	return c
}

// Engine ties the catalog, the state store and the pipeline together.
// Safe for concurrent use.
type Engine struct {
	config   Config
	catalogs *catalog.Store
	state    *state.Store
	pipe     *pipeline.Pipeline
	prop     *propagation.Propagator
	logger   *slog.Logger

	tickMu sync.Mutex // serializes Tick; guards back
	back   *pipeline.Buffer

	mu    sync.RWMutex // guards front and last
	front *pipeline.Buffer
	last  pipeline.Stats

	ready          atomic.Bool
	ticks          atomic.Uint64
	catalogVersion atomic.Uint64
}

// New creates an engine with two buffers sized to the pipeline's cap.
func New(config Config, catalogs *catalog.Store, st *state.Store, pipe *pipeline.Pipeline, prop *propagation.Propagator, logger *slog.Logger) *Engine {
	config = config.withDefaults()
	logger.Info("engine initialized",
		"render_interval_ms", config.RenderInterval.Milliseconds(),
		"clock_interval_ms", config.ClockInterval.Milliseconds(),
		"max_instances", pipe.MaxInstances(),
	)
	return &Engine{
		config:   config,
		catalogs: catalogs,
		state:    st,
		pipe:     pipe,
		prop:     prop,
		logger:   logger,
		back:     pipeline.NewBuffer(pipe.MaxInstances()),
		front:    pipeline.NewBuffer(pipe.MaxInstances()),
	}
}

// State returns the state store the engine reads.
func (e *Engine) State() *state.Store { return e.state }

// Catalogs returns the catalog store the engine renders.
func (e *Engine) Catalogs() *catalog.Store { return e.catalogs }

// Propagator returns the shared propagator.
func (e *Engine) Propagator() *propagation.Propagator { return e.prop }

// Start waits for a catalog, renders once, then runs the clock and render
// loops. Blocks until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	if !e.waitForCatalog(ctx) {
		return
	}

	if _, err := e.Tick(ctx); err != nil && ctx.Err() == nil {
		e.logger.Warn("initial render failed", "error", err)
	}

	clock := time.NewTicker(e.config.ClockInterval)
	defer clock.Stop()
	render := time.NewTicker(e.config.RenderInterval)
	defer render.Stop()

	lastWall := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped", "ticks", e.ticks.Load())
			return
		case now := <-clock.C:
			e.state.Advance(now.Sub(lastWall))
			lastWall = now
		case <-render.C:
			if _, err := e.Tick(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("render tick failed", "error", err)
			}
		}
	}
}

// waitForCatalog blocks until a catalog is published, polling every
// WaitInterval. Returns false if ctx is cancelled.
func (e *Engine) waitForCatalog(ctx context.Context) bool {
	if e.catalogs.Get() != nil {
		return true
	}

	e.logger.Info("engine waiting for catalog...")
	ticker := time.NewTicker(e.config.WaitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if e.catalogs.Get() != nil {
				e.logger.Info("catalog available, starting render loop")
				return true
			}
		}
	}
}

// Tick renders one frame at the store's current time into the back buffer
// and publishes it.
func (e *Engine) Tick(ctx context.Context) (pipeline.Stats, error) {
	cat := e.catalogs.Get()
	if cat == nil {
		return pipeline.Stats{}, ErrNotReady
	}

	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	if old := e.catalogVersion.Swap(cat.Version); old != cat.Version {
		e.logCutover(old, cat)
	}

	st := e.state.Snapshot()
	stats, err := e.pipe.Run(ctx, cat, pipeline.Input{
		Time:      st.Timeline.Current,
		Frame:     st.Frame,
		ColorMode: st.ColorMode,
		Filters:   st.Filters,
	}, e.back)
	if err != nil {
		return stats, err
	}

	e.mu.Lock()
	e.front, e.back = e.back, e.front
	e.last = stats
	e.mu.Unlock()

	e.ready.Store(true)
	e.ticks.Add(1)
	return stats, nil
}

func (e *Engine) logCutover(old uint64, cat *catalog.Catalog) {
	if old == 0 {
		e.logger.Info("catalog loaded", "version", cat.Version, "records", cat.Len())
		return
	}
	e.logger.Info("catalog cutover",
		"old_version", old,
		"new_version", cat.Version,
		"records", cat.Len(),
	)
}

// Frame calls fn with the front buffer. The buffer must not be retained
// after fn returns.
func (e *Engine) Frame(fn func(b *pipeline.Buffer)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.front)
}

// Status summarizes the engine for health and metadata endpoints.
type Status struct {
	Ready          bool           `json:"ready"`
	Ticks          uint64         `json:"ticks"`
	CatalogVersion uint64         `json:"catalog_version"`
	FrameTime      time.Time      `json:"frame_time"`
	LastTick       pipeline.Stats `json:"last_tick"`
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Ready:          e.ready.Load(),
		Ticks:          e.ticks.Load(),
		CatalogVersion: e.front.CatalogVersion,
		FrameTime:      e.front.Time,
		LastTick:       e.last,
	}
}

// Ready reports whether at least one frame has been published.
func (e *Engine) Ready() bool { return e.ready.Load() }
