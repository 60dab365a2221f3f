package propagation

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/metrics"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// DefaultCacheSize bounds the number of decoded element sets kept in memory.
const DefaultCacheSize = 20000

// decoded is a memo entry. Decode failures are cached too, so a bad element
// set is not re-decoded every tick.
type decoded struct {
	model *SGP4
	err   error
}

// Propagator computes object states from catalog records. Decoding is memoized
// per element-set text; results are never cached across instants.
// A Propagator is safe for concurrent use.
type Propagator struct {
	cache  *lru.Cache[string, decoded]
	logger *slog.Logger
}

// New creates a Propagator whose decode memo holds up to cacheSize entries.
func New(cacheSize int, logger *slog.Logger) *Propagator {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, decoded](cacheSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Propagator{cache: cache, logger: logger}
}

func (p *Propagator) model(rec *catalog.Record) (*SGP4, error) {
	key := rec.Line1 + "\n" + rec.Line2
	if d, ok := p.cache.Get(key); ok {
		metrics.DecodeCache.WithLabelValues("hit").Inc()
		return d.model, d.err
	}
	metrics.DecodeCache.WithLabelValues("miss").Inc()

	m, err := NewSGP4(rec.Line1, rec.Line2)
	if err != nil {
		p.logger.Debug("element set decode failed", "record_id", rec.ID, "error", err)
	}
	p.cache.Add(key, decoded{model: m, err: err})
	return m, err
}

// PropagateAt computes the inertial state of rec at t.
func (p *Propagator) PropagateAt(rec *catalog.Record, t time.Time) (State, error) {
	m, err := p.model(rec)
	if err != nil {
		metrics.PropagationFailures.Inc()
		return State{}, err
	}
	s, err := m.At(t)
	if err != nil {
		metrics.PropagationFailures.Inc()
		return State{}, err
	}
	return s, nil
}

// PositionForFrame returns the normalized position of rec at t in frame.
// The boolean is false when propagation failed; callers skip the record.
func (p *Propagator) PositionForFrame(rec *catalog.Record, t time.Time, frame transform.Frame) (transform.Vec3, bool) {
	theta := 0.0
	if frame == transform.Fixed {
		theta = transform.SiderealAngle(t)
	}
	return p.PositionWithAngle(rec, t, frame, theta)
}

// PositionWithAngle is PositionForFrame with a precomputed sidereal angle.
func (p *Propagator) PositionWithAngle(rec *catalog.Record, t time.Time, frame transform.Frame, theta float64) (transform.Vec3, bool) {
	s, err := p.PropagateAt(rec, t)
	if err != nil {
		return transform.Vec3{}, false
	}
	return transform.Normalize(transform.ToFrame(s.Position, frame, theta)), true
}

// Details describes one object at an instant.
type Details struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Group           string    `json:"group"`
	Operator        string    `json:"operator,omitempty"`
	Mission         string    `json:"mission,omitempty"`
	Country         string    `json:"country,omitempty"`
	AltitudeKm      float64   `json:"altitude_km"`
	SpeedKmS        float64   `json:"speed_km_s"`
	FixedSpeedKmS   float64   `json:"fixed_speed_km_s"`
	PeriodMinutes   float64   `json:"period_minutes"`
	Inclination     float64   `json:"inclination_deg"`
	RAAN            float64   `json:"raan_deg"`
	Eccentricity    float64   `json:"eccentricity"`
	ArgPerigee      float64   `json:"arg_perigee_deg"`
	MeanAnomaly     float64   `json:"mean_anomaly_deg"`
	MeanMotion      float64   `json:"mean_motion_rev_day"`
	Latitude        float64   `json:"latitude_deg"`
	Longitude       float64   `json:"longitude_deg"`
	Epoch           time.Time `json:"epoch"`
	EpochAgeDays    float64   `json:"epoch_age_days"`
	PropagatedAtUTC time.Time `json:"propagated_at"`
}

// Describe propagates rec to t and reports its state alongside its mean elements.
func (p *Propagator) Describe(rec *catalog.Record, t time.Time) (Details, error) {
	s, err := p.PropagateAt(rec, t)
	if err != nil {
		return Details{}, fmt.Errorf("describing %s: %w", rec.ID, err)
	}

	theta := transform.SiderealAngle(t)
	geo := transform.FixedToGeodetic(transform.InertialToFixedWithAngle(s.Position, theta))
	el := rec.Elements

	return Details{
		ID:              rec.ID,
		Name:            rec.Name,
		Group:           string(rec.Group),
		Operator:        rec.Operator,
		Mission:         rec.Mission,
		Country:         rec.Country,
		AltitudeKm:      s.Altitude(),
		SpeedKmS:        s.Speed(),
		FixedSpeedKmS:   transform.InertialVelocityToFixed(s.Position, s.Velocity, theta).Norm(),
		PeriodMinutes:   el.PeriodMinutes(),
		Inclination:     el.Inclination,
		RAAN:            el.RAAN,
		Eccentricity:    el.Eccentricity,
		ArgPerigee:      el.ArgPerigee,
		MeanAnomaly:     el.MeanAnomaly,
		MeanMotion:      el.MeanMotion,
		Latitude:        geo.Lat,
		Longitude:       geo.Lon,
		Epoch:           el.Epoch,
		EpochAgeDays:    math.Round(t.Sub(el.Epoch).Hours()/24*1000) / 1000,
		PropagatedAtUTC: t.UTC(),
	}, nil
}
