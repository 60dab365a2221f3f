// Package state owns the view and simulation state: camera, timeline, frame,
// color mode, filters, selection and search query. All mutation goes through
// merge-patch operations on Store, and subscribers see every change.
package state

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// Zoom bounds, as distance from the Earth's centre in Earth radii.
const (
	MinZoom = 1.5
	MaxZoom = 100.0
)

// Camera is the orbit-camera pose. Angles are degrees.
type Camera struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Zoom  float64 `json:"zoom"`
}

// Timeline is the simulation clock. While Playing, Current advances at
// Speed times wall-clock rate; while paused it only changes on explicit input.
type Timeline struct {
	Playing bool      `json:"playing"`
	Speed   float64   `json:"speed"`
	Current time.Time `json:"current"`
}

// State is one consistent snapshot of everything the store owns.
type State struct {
	Camera    Camera             `json:"camera"`
	Timeline  Timeline           `json:"timeline"`
	Frame     transform.Frame    `json:"frame"`
	ColorMode pipeline.ColorMode `json:"color_mode"`
	Filters   pipeline.Filters   `json:"filters"`
	Selected  string             `json:"selected,omitempty"`
	Query     string             `json:"query,omitempty"`
}

// Defaults returns the initial state with the clock paused at now.
func Defaults(now time.Time) State {
	return State{
		Camera:    Camera{Pitch: 39, Yaw: 85, Zoom: 4},
		Timeline:  Timeline{Playing: false, Speed: 1, Current: now.UTC()},
		Frame:     transform.Inertial,
		ColorMode: pipeline.ColorByGroup,
		Filters:   pipeline.DefaultFilters(),
	}
}

// Change is a bit set naming the parts of State a mutation touched.
type Change uint16

const (
	ChangeCamera Change = 1 << iota
	ChangeTimeline
	// ChangeClock marks a playback advance of Timeline.Current.
	ChangeClock
	ChangeFrame
	ChangeColorMode
	ChangeFilters
	ChangeSelection
	ChangeQuery

	ChangeAll = ChangeCamera | ChangeTimeline | ChangeClock | ChangeFrame |
		ChangeColorMode | ChangeFilters | ChangeSelection | ChangeQuery
)

// CameraPatch updates the non-nil camera fields.
type CameraPatch struct {
	Pitch *float64 `json:"pitch,omitempty"`
	Yaw   *float64 `json:"yaw,omitempty"`
	Zoom  *float64 `json:"zoom,omitempty"`
}

// TimelinePatch updates the non-nil timeline fields.
type TimelinePatch struct {
	Playing *bool      `json:"playing,omitempty"`
	Speed   *float64   `json:"speed,omitempty"`
	Current *time.Time `json:"current,omitempty"`
}

// FiltersPatch updates the non-nil filter fields.
type FiltersPatch struct {
	Group       *catalog.Group `json:"group,omitempty"`
	AltitudeMin *float64       `json:"altitude_min,omitempty"`
	AltitudeMax *float64       `json:"altitude_max,omitempty"`
	ActiveOnly  *bool          `json:"active_only,omitempty"`
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// Store holds the current State. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	st       State
	defaults State
	subs     map[int]func(State, Change)
	nextSub  int
	logger   *slog.Logger
}

// NewStore creates a store initialized to defaults.
func NewStore(defaults State, logger *slog.Logger) *Store {
	return &Store{
		st:       defaults,
		defaults: defaults,
		subs:     make(map[int]func(State, Change)),
		logger:   logger,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Defaults returns the state the store was created with.
func (s *Store) Defaults() State {
	return s.defaults
}

// Subscribe registers fn to run after every mutation with the resulting
// snapshot. fn runs on the mutating goroutine, outside the store lock.
// The returned function unregisters it.
func (s *Store) Subscribe(fn func(State, Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers if fn reports a
// change.
func (s *Store) update(fn func(st *State) Change) State {
	s.mu.Lock()
	change := fn(&s.st)
	snap := s.st
	var subs []func(State, Change)
	if change != 0 {
		subs = make([]func(State, Change), 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap, change)
	}
	return snap
}

// SetCamera merges p into the camera. Non-finite values are ignored and zoom
// is clamped.
func (s *Store) SetCamera(p CameraPatch) State {
	return s.update(func(st *State) Change {
		if p.Pitch != nil && finite(*p.Pitch) {
			st.Camera.Pitch = *p.Pitch
		}
		if p.Yaw != nil && finite(*p.Yaw) {
			st.Camera.Yaw = *p.Yaw
		}
		if p.Zoom != nil && finite(*p.Zoom) {
			st.Camera.Zoom = ClampZoom(*p.Zoom)
		}
		return ChangeCamera
	})
}

// SetTimeline merges p into the timeline. Speeds that are not positive and
// finite are ignored.
func (s *Store) SetTimeline(p TimelinePatch) State {
	return s.update(func(st *State) Change {
		if p.Playing != nil {
			st.Timeline.Playing = *p.Playing
		}
		if p.Speed != nil && finite(*p.Speed) && *p.Speed > 0 {
			st.Timeline.Speed = *p.Speed
		}
		if p.Current != nil && !p.Current.IsZero() {
			st.Timeline.Current = p.Current.UTC()
		}
		return ChangeTimeline
	})
}

// SetFilters merges p into the filters. Unknown groups and non-finite bounds
// are ignored.
func (s *Store) SetFilters(p FiltersPatch) State {
	return s.update(func(st *State) Change {
		if p.Group != nil {
			if g, ok := catalog.ParseGroup(string(*p.Group)); ok {
				st.Filters.Group = g
			}
		}
		if p.AltitudeMin != nil && finite(*p.AltitudeMin) {
			st.Filters.AltitudeMin = *p.AltitudeMin
		}
		if p.AltitudeMax != nil && finite(*p.AltitudeMax) {
			st.Filters.AltitudeMax = *p.AltitudeMax
		}
		if p.ActiveOnly != nil {
			st.Filters.ActiveOnly = *p.ActiveOnly
		}
		return ChangeFilters
	})
}

// SetFrame selects the display frame.
func (s *Store) SetFrame(f transform.Frame) State {
	return s.update(func(st *State) Change {
		st.Frame = f
		return ChangeFrame
	})
}

// SetColorMode selects the color mode. Unknown modes are ignored.
func (s *Store) SetColorMode(m pipeline.ColorMode) State {
	return s.update(func(st *State) Change {
		if _, ok := pipeline.ParseColorMode(string(m)); !ok {
			return 0
		}
		st.ColorMode = m
		return ChangeColorMode
	})
}

// Select makes id the selection. An empty id clears it.
func (s *Store) Select(id string) State {
	return s.update(func(st *State) Change {
		st.Selected = id
		return ChangeSelection
	})
}

// ClearSelection removes the selection.
func (s *Store) ClearSelection() State {
	return s.Select("")
}

// SetQuery sets the search text.
func (s *Store) SetQuery(q string) State {
	return s.update(func(st *State) Change {
		st.Query = q
		return ChangeQuery
	})
}

// ResetCamera restores the default camera.
func (s *Store) ResetCamera() State {
	return s.update(func(st *State) Change {
		st.Camera = s.defaults.Camera
		return ChangeCamera
	})
}

// ResetFilters restores the default filters.
func (s *Store) ResetFilters() State {
	return s.update(func(st *State) Change {
		st.Filters = s.defaults.Filters
		return ChangeFilters
	})
}

// Replace swaps in a whole state, normalizing invalid fields to defaults.
func (s *Store) Replace(next State) State {
	next = s.normalize(next)
	return s.update(func(st *State) Change {
		*st = next
		return ChangeAll &^ ChangeClock
	})
}

func (s *Store) normalize(st State) State {
	d := s.defaults
	if !finite(st.Camera.Pitch) {
		st.Camera.Pitch = d.Camera.Pitch
	}
	if !finite(st.Camera.Yaw) {
		st.Camera.Yaw = d.Camera.Yaw
	}
	if !finite(st.Camera.Zoom) {
		st.Camera.Zoom = d.Camera.Zoom
	}
	st.Camera.Zoom = ClampZoom(st.Camera.Zoom)
	if !finite(st.Timeline.Speed) || st.Timeline.Speed <= 0 {
		st.Timeline.Speed = d.Timeline.Speed
	}
	if st.Timeline.Current.IsZero() {
		st.Timeline.Current = d.Timeline.Current
	}
	if _, ok := pipeline.ParseColorMode(string(st.ColorMode)); !ok {
		st.ColorMode = d.ColorMode
	}
	if _, ok := catalog.ParseGroup(string(st.Filters.Group)); !ok {
		st.Filters.Group = d.Filters.Group
	}
	return st
}

// Advance moves the clock forward by wall times the playback speed when
// playing. It returns the resulting simulation instant.
func (s *Store) Advance(wall time.Duration) time.Time {
	st := s.update(func(st *State) Change {
		if !st.Timeline.Playing || wall <= 0 {
			return 0
		}
		st.Timeline.Current = st.Timeline.Current.Add(time.Duration(float64(wall) * st.Timeline.Speed))
		return ChangeClock
	})
	return st.Timeline.Current
}
