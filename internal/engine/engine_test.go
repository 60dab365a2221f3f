package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog/catalogtest"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/geometry"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	epoch   = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
)

func newEngine(t *testing.T, withCatalog bool) *Engine {
	t.Helper()
	cats := catalog.NewStore(discard)
	if withCatalog {
		cats.Set(catalogtest.Catalog(
			catalogtest.Record("STARLINK-1007", catalogtest.Circular500(1)),
			catalogtest.Record("NAVSTAR 60", catalogtest.GPS(2)),
			catalogtest.Record("ISS (ZARYA)", catalogtest.Circular500(3)),
		))
	}
	prop := propagation.New(64, discard)
	pipe := pipeline.New(prop, propagation.NewWorkerPool(2, discard), 100, discard)
	st := state.NewStore(state.Defaults(epoch), discard)
	return New(Config{
		RenderInterval: 10 * time.Millisecond,
		ClockInterval:  5 * time.Millisecond,
		WaitInterval:   5 * time.Millisecond,
	}, cats, st, pipe, prop, discard)
}

func TestTickNotReady(t *testing.T) {
	e := newEngine(t, false)
	if _, err := e.Tick(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Tick err = %v, want ErrNotReady", err)
	}
	if e.Ready() {
		t.Error("ready without a catalog")
	}
	e.Frame(func(b *pipeline.Buffer) {
		if b.Count() != 0 {
			t.Errorf("empty engine frame has %d instances", b.Count())
		}
	})
}

func TestTickPublishesFrame(t *testing.T) {
	e := newEngine(t, true)
	stats, err := e.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 3 {
		t.Errorf("count = %d, want 3", stats.Count)
	}
	e.Frame(func(b *pipeline.Buffer) {
		if b.Count() != 3 || !b.Time.Equal(epoch) || b.CatalogVersion != 1 {
			t.Errorf("front = count %d time %v version %d", b.Count(), b.Time, b.CatalogVersion)
		}
	})

	// A state change shows up in the next frame, not the current one.
	e.State().SetFilters(state.FiltersPatch{Group: ptr(catalog.GroupStarlink)})
	e.Frame(func(b *pipeline.Buffer) {
		if b.Count() != 3 {
			t.Errorf("front changed before tick: %d", b.Count())
		}
	})
	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.Frame(func(b *pipeline.Buffer) {
		if ids := b.IDs(); len(ids) != 1 || ids[0] != "00001" {
			t.Errorf("ids = %v", ids)
		}
	})

	st := e.Status()
	if !st.Ready || st.Ticks != 2 || st.LastTick.Count != 1 {
		t.Errorf("status = %+v", st)
	}
}

func ptr[T any](v T) *T { return &v }

func TestPick(t *testing.T) {
	e := newEngine(t, true)
	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec, err := e.Pick(2)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "00003" || e.State().Snapshot().Selected != "00003" {
		t.Errorf("picked %q, selected %q", rec.ID, e.State().Snapshot().Selected)
	}
	if _, err := e.Pick(3); !errors.Is(err, ErrNoSuchSlot) {
		t.Errorf("Pick(3) err = %v", err)
	}
	if _, err := e.Pick(-1); !errors.Is(err, ErrNoSuchSlot) {
		t.Errorf("Pick(-1) err = %v", err)
	}
}

func TestPickRay(t *testing.T) {
	e := newEngine(t, true)
	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	var target transform.Vec3
	e.Frame(func(b *pipeline.Buffer) { target = b.Position(1) })

	// Aim from far outside along the direction of instance 1.
	origin := target.Scale(10)
	rec, slot, err := e.PickRay(origin, target.Sub(origin), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if slot != 1 || rec.ID != "00002" {
		t.Errorf("PickRay = slot %d id %q", slot, rec.ID)
	}
}

func TestSelectionGeometry(t *testing.T) {
	e := newEngine(t, true)
	if _, err := e.SelectionOrbit(0); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("orbit without selection err = %v", err)
	}

	e.State().Select("99999")
	if _, err := e.SelectionDetails(); !errors.Is(err, ErrNoSelection) {
		t.Errorf("unknown selection err = %v", err)
	}

	e.State().Select("00001")
	orbit, err := e.SelectionOrbit(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(orbit.Points) != geometry.DefaultOrbitSamples+1 || orbit.ID != "00001" || !orbit.Time.Equal(epoch) {
		t.Errorf("orbit = %s at %v with %d points", orbit.ID, orbit.Time, len(orbit.Points))
	}

	rec, segs, err := e.SelectionGroundTrack(geometry.TrackOptions{})
	if err != nil || rec.ID != "00001" || len(segs) == 0 {
		t.Errorf("ground track = %v, %d segments, %v", rec, len(segs), err)
	}

	trail, err := e.SelectionTrail(geometry.TrailOptions{})
	if err != nil || len(trail.Points) != geometry.DefaultTrailSamples+1 {
		t.Errorf("trail = %d points, %v", len(trail.Points), err)
	}

	d, err := e.SelectionDetails()
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != "00001" || d.AltitudeKm < 450 || d.AltitudeKm > 560 {
		t.Errorf("details = %+v", d)
	}
}

func TestStartRendersAndAdvances(t *testing.T) {
	e := newEngine(t, false)
	e.State().SetTimeline(state.TimelinePatch{Playing: ptr(true), Speed: ptr(60.0)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Start(ctx)
		close(done)
	}()

	// Publish after Start is already waiting.
	time.Sleep(20 * time.Millisecond)
	e.Catalogs().Set(catalogtest.Catalog(catalogtest.Record("STARLINK-1007", catalogtest.Circular500(1))))

	deadline := time.After(5 * time.Second)
	for e.Status().Ticks < 3 {
		select {
		case <-deadline:
			t.Fatal("engine never rendered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	if now := e.State().Snapshot().Timeline.Current; !now.After(epoch) {
		t.Errorf("clock did not advance: %v", now)
	}
}

func TestStartCancelledWhileWaiting(t *testing.T) {
	e := newEngine(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Start(ctx)
	if e.Ready() {
		t.Error("ready after cancelled wait")
	}
}
