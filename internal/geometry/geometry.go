// Package geometry derives polylines for a single selected object: one full
// orbit, the ground track ahead of it and the trail behind it.
//
// Every call re-propagates from scratch. Nothing is accumulated between calls,
// so a trail is correct regardless of how irregularly it is requested.
package geometry

import (
	"math"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// Propagator is the subset of propagation.Propagator the generators need.
type Propagator interface {
	PropagateAt(rec *catalog.Record, t time.Time) (propagation.State, error)
}

const (
	DefaultOrbitSamples = 90
	MinOrbitSamples     = 60

	DefaultTrackDuration = 120 * time.Minute
	DefaultTrackSamples  = 180
	MinTrackSamples      = 120

	DefaultTrailWindow  = 90 * time.Minute
	DefaultTrailSamples = 45
)

// position propagates rec to t and returns its normalized position in frame.
func position(p Propagator, rec *catalog.Record, t time.Time, frame transform.Frame) (transform.Vec3, bool) {
	s, err := p.PropagateAt(rec, t)
	if err != nil {
		return transform.Vec3{}, false
	}
	theta := 0.0
	if frame == transform.Fixed {
		theta = transform.SiderealAngle(t)
	}
	return transform.Normalize(transform.ToFrame(s.Position, frame, theta)), true
}

// OrbitPath samples one orbital period of rec starting at start. It returns
// samples+1 points so the path closes on itself; intermediate failures are
// skipped. The result is empty when propagation fails at start or the record
// has no usable mean motion.
func OrbitPath(p Propagator, rec *catalog.Record, start time.Time, frame transform.Frame, samples int) []transform.Vec3 {
	if samples <= 0 {
		samples = DefaultOrbitSamples
	}
	samples = max(samples, MinOrbitSamples)

	period := rec.Elements.PeriodMinutes()
	if period <= 0 {
		return nil
	}

	first, ok := position(p, rec, start, frame)
	if !ok {
		return nil
	}

	step := time.Duration(period * float64(time.Minute) / float64(samples))
	points := make([]transform.Vec3, 0, samples+1)
	points = append(points, first)
	for i := 1; i <= samples; i++ {
		if pos, ok := position(p, rec, start.Add(time.Duration(i)*step), frame); ok {
			points = append(points, pos)
		}
	}
	return points
}

// TrackOptions configures GroundTrack. Zero values select the defaults.
type TrackOptions struct {
	Duration time.Duration
	Samples  int
}

// TrackPoint is one sub-satellite point.
type TrackPoint struct {
	Time     time.Time      `json:"time"`
	Lat      float64        `json:"lat"`
	Lon      float64        `json:"lon"`
	Altitude float64        `json:"altitude_km"`
	Pos      transform.Vec3 `json:"pos"` // on the unit sphere, fixed frame
}

// GroundTrack samples the sub-satellite point forward from start and splits the
// track into segments at antimeridian crossings.
func GroundTrack(p Propagator, rec *catalog.Record, start time.Time, opts TrackOptions) [][]TrackPoint {
	if opts.Duration <= 0 {
		opts.Duration = DefaultTrackDuration
	}
	if opts.Samples <= 0 {
		opts.Samples = DefaultTrackSamples
	}
	opts.Samples = max(opts.Samples, MinTrackSamples)

	step := opts.Duration / time.Duration(opts.Samples)
	points := make([]TrackPoint, 0, opts.Samples+1)
	for i := 0; i <= opts.Samples; i++ {
		t := start.Add(time.Duration(i) * step)
		s, err := p.PropagateAt(rec, t)
		if err != nil {
			continue
		}
		geo := transform.FixedToGeodetic(transform.InertialToFixed(s.Position, t))
		points = append(points, TrackPoint{
			Time:     t,
			Lat:      geo.Lat,
			Lon:      geo.Lon,
			Altitude: geo.Altitude,
			Pos:      transform.GeodeticToUnitSphere(geo.Lat, geo.Lon),
		})
	}
	return Segment(points)
}

// Segment splits points wherever consecutive longitudes differ by more than
// 180 degrees, so no segment wraps around the globe.
func Segment(points []TrackPoint) [][]TrackPoint {
	var (
		segments [][]TrackPoint
		current  []TrackPoint
	)
	for i, pt := range points {
		if i > 0 && math.Abs(pt.Lon-points[i-1].Lon) > 180 && len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
		current = append(current, pt)
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// TrailOptions configures Trail. Zero values select the defaults.
type TrailOptions struct {
	Window  time.Duration
	Samples int
}

// Trail samples the window ending at now, oldest first. Failed samples are
// skipped.
func Trail(p Propagator, rec *catalog.Record, now time.Time, frame transform.Frame, opts TrailOptions) []transform.Vec3 {
	if opts.Window <= 0 {
		opts.Window = DefaultTrailWindow
	}
	if opts.Samples <= 0 {
		opts.Samples = DefaultTrailSamples
	}

	step := opts.Window / time.Duration(opts.Samples)
	points := make([]transform.Vec3, 0, opts.Samples+1)
	for i := opts.Samples; i >= 0; i-- {
		if pos, ok := position(p, rec, now.Add(-time.Duration(i)*step), frame); ok {
			points = append(points, pos)
		}
	}
	return points
}
