// Package pipeline turns the catalog into one tick of render data: filter,
// cap, propagate, band-filter by altitude, color, and pack into a Buffer.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/metrics"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

var tracer = otel.Tracer("github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline")

// DefaultMaxInstances caps the number of candidates propagated per tick.
// Truncation follows catalog order; it is a performance bound, not a ranking.
const DefaultMaxInstances = 15000

// Filters selects which records are drawn.
type Filters struct {
	Group       catalog.Group `json:"group"`
	AltitudeMin float64       `json:"altitude_min"`
	AltitudeMax float64       `json:"altitude_max"`
	ActiveOnly  bool          `json:"active_only"`
}

// DefaultFilters shows every record.
func DefaultFilters() Filters {
	return Filters{Group: catalog.GroupAll, AltitudeMin: 0, AltitudeMax: 100000}
}

// Inactive reports whether rec is treated as debris or a rocket body. The
// check is a name heuristic ("deb", "r/b") plus the debris group. The marker
// computed at parse time covers names whose "/" was sanitized away.
func Inactive(rec *catalog.Record) bool {
	return rec.Inactive || rec.Group == catalog.GroupDebris || catalog.LooksInactive(rec.Name)
}

// accepts applies the pre-propagation filters.
func (f Filters) accepts(rec *catalog.Record) bool {
	if f.Group != catalog.GroupAll && f.Group != "" && rec.Group != f.Group {
		return false
	}
	return !f.ActiveOnly || !Inactive(rec)
}

// Input is everything one tick depends on.
type Input struct {
	Time      time.Time
	Frame     transform.Frame
	ColorMode ColorMode
	Filters   Filters
}

// Stats summarizes one run.
type Stats struct {
	Candidates int           `json:"candidates"`
	Truncated  int           `json:"truncated"`
	Failed     int           `json:"failed"`
	OutOfBand  int           `json:"out_of_band"`
	Count      int           `json:"count"`
	Duration   time.Duration `json:"duration_ns"`
}

// Pipeline runs ticks. It holds no per-tick state and may be shared.
type Pipeline struct {
	prop         *propagation.Propagator
	pool         *propagation.WorkerPool
	maxInstances int
	logger       *slog.Logger
}

// New creates a Pipeline. maxInstances <= 0 selects DefaultMaxInstances.
func New(prop *propagation.Propagator, pool *propagation.WorkerPool, maxInstances int, logger *slog.Logger) *Pipeline {
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}
	return &Pipeline{prop: prop, pool: pool, maxInstances: maxInstances, logger: logger}
}

// MaxInstances returns the per-tick instance cap.
func (p *Pipeline) MaxInstances() int { return p.maxInstances }

// Candidates applies the group and activity filters and the instance cap.
// It returns the surviving records in catalog order and how many were cut.
func (p *Pipeline) Candidates(cat *catalog.Catalog, f Filters) ([]*catalog.Record, int) {
	group := f.Group
	if group == "" {
		group = catalog.GroupAll
	}

	var (
		out       []*catalog.Record
		truncated int
	)
	cat.EachInGroup(group, func(rec *catalog.Record) bool {
		if !f.accepts(rec) {
			return true
		}
		if len(out) >= p.maxInstances {
			truncated++
			return true
		}
		out = append(out, rec)
		return true
	})
	return out, truncated
}

// Run fills out with one tick of render data. Every slot of out is rewritten:
// slots 0..Count()-1 hold this tick's instances and nothing from a previous
// tick survives. On cancellation out is left empty and ctx.Err() is returned.
func (p *Pipeline) Run(ctx context.Context, cat *catalog.Catalog, in Input, out *Buffer) (Stats, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	start := time.Now()
	out.reset()
	out.Time, out.Frame = in.Time, in.Frame
	out.CatalogVersion = 0
	if cat != nil {
		out.CatalogVersion = cat.Version
	}

	recs, truncated := p.Candidates(cat, in.Filters)
	if len(recs) > out.Cap() {
		truncated += len(recs) - out.Cap()
		recs = recs[:out.Cap()]
	}
	stats := Stats{Candidates: len(recs), Truncated: truncated}

	samples, failed, err := p.pool.PropagateBatch(ctx, p.prop, recs, in.Time, in.Frame)
	if err != nil {
		span.RecordError(err)
		return stats, err
	}
	stats.Failed = failed

	n := 0
	for i, s := range samples {
		if !s.OK {
			continue
		}
		alt := AltitudeKm(s.Pos)
		if alt < in.Filters.AltitudeMin || alt > in.Filters.AltitudeMax {
			stats.OutOfBand++
			continue
		}
		out.put(n, recs[i], s.Pos, ColorFor(recs[i], s.Pos, in.ColorMode))
		n++
	}
	out.count = n
	stats.Count = n
	stats.Duration = time.Since(start)

	metrics.TickDuration.Observe(stats.Duration.Seconds())
	metrics.Instances.Set(float64(n))
	if truncated > 0 {
		metrics.Truncated.Add(float64(truncated))
	}
	span.SetAttributes(
		attribute.Int("pipeline.candidates", stats.Candidates),
		attribute.Int("pipeline.count", n),
		attribute.Int("pipeline.failed", failed),
	)
	p.logger.Debug("pipeline tick",
		"time", in.Time.UTC().Format(time.RFC3339Nano),
		"frame", in.Frame.String(),
		"candidates", stats.Candidates,
		"truncated", truncated,
		"failed", failed,
		"out_of_band", stats.OutOfBand,
		"count", n,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}
