package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/geometry"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

var (
	// ErrNoSelection is returned when nothing is selected or the selected id
	// is not in the current catalog.
	ErrNoSelection = errors.New("no selection")
	// ErrNoSuchSlot is returned by Pick for a slot outside the current frame.
	ErrNoSuchSlot = errors.New("no instance in slot")
)

// Pick resolves slot in the front buffer to its record and selects it.
func (e *Engine) Pick(slot int) (catalog.Record, error) {
	var (
		rec catalog.Record
		ok  bool
	)
	e.Frame(func(b *pipeline.Buffer) {
		var r *catalog.Record
		if r, ok = b.RecordAt(slot); ok {
			rec = *r
		}
	})
	if !ok {
		return catalog.Record{}, fmt.Errorf("%w: %d", ErrNoSuchSlot, slot)
	}
	e.state.Select(rec.ID)
	e.logger.Debug("instance picked", "slot", slot, "record_id", rec.ID)
	return rec, nil
}

// PickRay selects the first instance along a scene-space ray whose distance
// from the ray is at most maxDist.
func (e *Engine) PickRay(origin, dir transform.Vec3, maxDist float64) (catalog.Record, int, error) {
	slot := -1
	e.Frame(func(b *pipeline.Buffer) {
		if s, ok := b.PickRay(origin, dir, maxDist); ok {
			slot = s
		}
	})
	if slot < 0 {
		return catalog.Record{}, -1, ErrNoSuchSlot
	}
	rec, err := e.Pick(slot)
	return rec, slot, err
}

// Selection returns the selected record and the instant and frame geometry
// should be computed for.
func (e *Engine) Selection() (*catalog.Record, time.Time, transform.Frame, error) {
	st := e.state.Snapshot()
	if st.Selected == "" {
		return nil, time.Time{}, 0, ErrNoSelection
	}
	cat := e.catalogs.Get()
	if cat == nil {
		return nil, time.Time{}, 0, ErrNotReady
	}
	rec, ok := cat.ByID(st.Selected)
	if !ok {
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s not in catalog", ErrNoSelection, st.Selected)
	}
	return &rec, st.Timeline.Current, st.Frame, nil
}

// Path is a polyline for one object, in normalized scene units.
type Path struct {
	ID     string
	Time   time.Time
	Frame  transform.Frame
	Points []transform.Vec3
}

// SelectionOrbit samples one period of the selected object.
func (e *Engine) SelectionOrbit(samples int) (Path, error) {
	rec, t, frame, err := e.Selection()
	if err != nil {
		return Path{}, err
	}
	return Path{ID: rec.ID, Time: t, Frame: frame, Points: geometry.OrbitPath(e.prop, rec, t, frame, samples)}, nil
}

// SelectionGroundTrack samples the ground track ahead of the selected object.
func (e *Engine) SelectionGroundTrack(opts geometry.TrackOptions) (*catalog.Record, [][]geometry.TrackPoint, error) {
	rec, t, _, err := e.Selection()
	if err != nil {
		return nil, nil, err
	}
	return rec, geometry.GroundTrack(e.prop, rec, t, opts), nil
}

// SelectionTrail samples the trail behind the selected object.
func (e *Engine) SelectionTrail(opts geometry.TrailOptions) (Path, error) {
	rec, t, frame, err := e.Selection()
	if err != nil {
		return Path{}, err
	}
	return Path{ID: rec.ID, Time: t, Frame: frame, Points: geometry.Trail(e.prop, rec, t, frame, opts)}, nil
}

// SelectionDetails describes the selected object at the current instant.
func (e *Engine) SelectionDetails() (propagation.Details, error) {
	rec, t, _, err := e.Selection()
	if err != nil {
		return propagation.Details{}, err
	}
	return e.prop.Describe(rec, t)
}
