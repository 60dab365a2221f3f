package propagation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit inertial (TEME) output, and shares its sidereal-time and
// frame helpers with our transform package for cross-validation.
//
// Propagate takes the Satellite by value and resolves time to whole seconds,
// so SGP4 error codes never reach the caller. Failures are detected from the
// output (NaN/Inf or an implausible radius), and sub-second instants are
// interpolated between the bracketing whole seconds.

// ErrPropagation is wrapped by every propagation failure: decayed, diverged or
// otherwise non-physical output for a (record, instant) pair.
var ErrPropagation = errors.New("propagation failed")

// State is an object's inertial position (km) and velocity (km/s) at an instant.
type State struct {
	Position transform.Vec3
	Velocity transform.Vec3
}

// Distance is the distance from Earth's centre in km.
func (s State) Distance() float64 { return s.Position.Norm() }

// Altitude is the height above the mean Earth radius in km.
func (s State) Altitude() float64 { return s.Position.Norm() - transform.EarthRadiusKm }

// Speed is the inertial speed in km/s.
func (s State) Speed() float64 { return s.Velocity.Norm() }

// SGP4 is an initialized propagator for one element set. It is safe for
// concurrent use.
//
// The two most recent whole-second states are kept, so ticks that fall
// inside the same second cost no SGP4 evaluations after the first.
type SGP4 struct {
	sat satellite.Satellite
	id  string

	mu     sync.Mutex
	recent [2]secondState
	next   int
	evals  int
}

type secondState struct {
	unix  int64
	state State
	ok    bool
}

// NewSGP4 decodes an element set and initializes the SGP4 model.
//
// The lines are validated before reaching go-satellite, because the library
// calls log.Fatal on malformed numeric fields.
func NewSGP4(line1, line2 string) (*SGP4, error) {
	id, _, err := catalog.DecodeElements(line1, line2)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPropagation, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init for %s: code=%d %s", ErrPropagation, id, sat.Error, sat.ErrorStr)
	}
	return &SGP4{sat: sat, id: id}, nil
}

// At propagates to t.
func (p *SGP4) At(t time.Time) (State, error) {
	t = t.UTC()
	whole := t.Truncate(time.Second)
	frac := t.Sub(whole).Seconds()

	s0, err := p.atSecond(whole)
	if err != nil || frac == 0 {
		return s0, err
	}
	s1, err := p.atSecond(whole.Add(time.Second))
	if err != nil {
		return State{}, err
	}
	return State{
		Position: lerp(s0.Position, s1.Position, frac),
		Velocity: lerp(s0.Velocity, s1.Velocity, frac),
	}, nil
}

func (p *SGP4) atSecond(t time.Time) (State, error) {
	unix := t.Unix()
	p.mu.Lock()
	for _, r := range p.recent {
		if r.ok && r.unix == unix {
			p.mu.Unlock()
			return r.state, nil
		}
	}
	p.evals++
	p.mu.Unlock()

	s, err := p.evaluate(t)
	if err != nil {
		return State{}, err
	}

	p.mu.Lock()
	p.recent[p.next] = secondState{unix: unix, state: s, ok: true}
	p.next ^= 1
	p.mu.Unlock()
	return s, nil
}

func (p *SGP4) evaluate(t time.Time) (State, error) {
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	s := State{
		Position: transform.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: transform.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if !s.Velocity.IsFinite() || !transform.PlausibleRadius(s.Position) {
		return State{}, fmt.Errorf("%w: %s at %s: radius %.1f km", ErrPropagation, p.id, t.Format(time.RFC3339), s.Position.Norm())
	}
	return s, nil
}

func lerp(a, b transform.Vec3, f float64) transform.Vec3 {
	return transform.Vec3{
		X: a.X + (b.X-a.X)*f,
		Y: a.Y + (b.Y-a.Y)*f,
		Z: a.Z + (b.Z-a.Z)*f,
	}
}
