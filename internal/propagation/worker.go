package propagation

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// ctxCheckInterval is how many items a worker processes between context checks.
const ctxCheckInterval = 256

// WorkerPool spreads per-record work over a fixed number of goroutines.
// Each goroutine owns one contiguous index range, so callers can write results
// into a shared slice without locking.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool. workers <= 0 uses GOMAXPROCS.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// Run calls fn(i) for every i in [0, n). It returns ctx.Err() if the context
// was cancelled before all indices were processed.
func (wp *WorkerPool) Run(ctx context.Context, n int, fn func(i int)) error {
	if n == 0 {
		return ctx.Err()
	}

	workers := wp.workers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if (i-lo)%ctxCheckInterval == 0 && ctx.Err() != nil {
					return
				}
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()

	return ctx.Err()
}

// Sample is the outcome of propagating one record: a normalized position in
// the requested frame, or OK=false when propagation failed.
type Sample struct {
	Pos transform.Vec3
	OK  bool
}

// PropagateBatch propagates every record to t in parallel. out[i] corresponds
// to recs[i]. Failed records are counted and skipped, never zero-filled.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, p *Propagator, recs []*catalog.Record, t time.Time, frame transform.Frame) ([]Sample, int, error) {
	out := make([]Sample, len(recs))
	if len(recs) == 0 {
		return out, 0, nil
	}

	// One sidereal angle serves the whole batch.
	theta := 0.0
	if frame == transform.Fixed {
		theta = transform.SiderealAngle(t)
	}

	var failures atomic.Int64
	err := wp.Run(ctx, len(recs), func(i int) {
		pos, ok := p.PositionWithAngle(recs[i], t, frame, theta)
		if !ok {
			failures.Add(1)
			return
		}
		out[i] = Sample{Pos: pos, OK: true}
	})

	if n := failures.Load(); n > 0 {
		wp.logger.Debug("propagation batch had failures",
			"records", len(recs),
			"failures", n,
			"time", t.UTC().Format(time.RFC3339),
		)
	}
	return out, int(failures.Load()), err
}
