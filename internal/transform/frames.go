// Package transform converts positions between the inertial frame produced by
// SGP4, the Earth-fixed frame that rotates with the planet, spherical
// latitude/longitude/altitude, and the normalized scene space where one unit
// equals one Earth radius.
//
// Inertial and fixed frames differ by a single rotation about the Z axis by the
// mean sidereal angle. Precession, nutation and polar motion are ignored; the
// resulting error is well below what a globe-scale view can show.
package transform

import (
	"fmt"
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used for altitude and normalization.
const EarthRadiusKm = 6371.0

// MuEarth is Earth's gravitational parameter in km³/s².
const MuEarth = 398600.4418

// Plausible radius band for an Earth-orbiting object, in km.
const (
	MinOrbitRadiusKm = 6200.0
	MaxOrbitRadiusKm = 50000.0
)

// Vec3 is a Cartesian vector. Units depend on context (km, km/s, or Earth radii).
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Scale multiplies every component by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Sub returns v − o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Dot returns the scalar product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// IsFinite reports whether no component is NaN or ±Inf.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Geodetic is a spherical latitude/longitude (degrees) and altitude above
// the mean Earth radius (km).
type Geodetic struct {
	Lat      float64
	Lon      float64
	Altitude float64
}

// InertialToFixed rotates an inertial vector into the Earth-fixed frame at t.
func InertialToFixed(v Vec3, t time.Time) Vec3 {
	return InertialToFixedWithAngle(v, SiderealAngle(t))
}

// InertialToFixedWithAngle rotates by a precomputed sidereal angle (radians).
// Callers transforming many vectors at the same instant compute the angle once.
func InertialToFixedWithAngle(v Vec3, theta float64) Vec3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return Vec3{
		X: v.X*c + v.Y*s,
		Y: -v.X*s + v.Y*c,
		Z: v.Z,
	}
}

// FixedToInertial is the inverse of InertialToFixed.
func FixedToInertial(v Vec3, t time.Time) Vec3 {
	return FixedToInertialWithAngle(v, SiderealAngle(t))
}

// FixedToInertialWithAngle is the inverse of InertialToFixedWithAngle.
func FixedToInertialWithAngle(v Vec3, theta float64) Vec3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return Vec3{
		X: v.X*c - v.Y*s,
		Y: v.X*s + v.Y*c,
		Z: v.Z,
	}
}

// InertialVelocityToFixed rotates an inertial velocity into the fixed frame and
// removes the frame's own rotation:
//
//	v_fixed = R3(θ)·v_inertial − ω × r_fixed
//
// r and v are in km and km/s; the result is km/s.
func InertialVelocityToFixed(r, v Vec3, theta float64) Vec3 {
	rf := InertialToFixedWithAngle(r, theta)
	vr := InertialToFixedWithAngle(v, theta)
	return Vec3{
		X: vr.X + OmegaEarth*rf.Y,
		Y: vr.Y - OmegaEarth*rf.X,
		Z: vr.Z,
	}
}

// FixedToGeodetic projects a fixed-frame position (km) onto a spherical Earth.
func FixedToGeodetic(v Vec3) Geodetic {
	return Geodetic{
		Lat:      math.Atan2(v.Z, math.Hypot(v.X, v.Y)) * 180.0 / math.Pi,
		Lon:      math.Atan2(v.Y, v.X) * 180.0 / math.Pi,
		Altitude: v.Norm() - EarthRadiusKm,
	}
}

// GeodeticToUnitSphere places a latitude/longitude (degrees) on the sphere of
// radius one, in the fixed frame.
func GeodeticToUnitSphere(latDeg, lonDeg float64) Vec3 {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	return Vec3{
		X: math.Cos(lat) * math.Cos(lon),
		Y: math.Cos(lat) * math.Sin(lon),
		Z: math.Sin(lat),
	}
}

// Normalize scales a km vector into Earth radii.
func Normalize(v Vec3) Vec3 {
	return v.Scale(1.0 / EarthRadiusKm)
}

// PlausibleRadius reports whether a km position is finite and lies between
// MinOrbitRadiusKm and MaxOrbitRadiusKm from Earth's centre.
func PlausibleRadius(v Vec3) bool {
	if !v.IsFinite() {
		return false
	}
	r := v.Norm()
	return r >= MinOrbitRadiusKm && r <= MaxOrbitRadiusKm
}

// Frame selects the reference frame positions are reported in.
type Frame uint8

const (
	// Inertial is the non-rotating frame SGP4 produces.
	Inertial Frame = iota
	// Fixed rotates with the Earth.
	Fixed
)

func (f Frame) String() string {
	if f == Fixed {
		return "fixed"
	}
	return "inertial"
}

// ToFrame expresses an inertial vector in frame f, given the sidereal angle.
func ToFrame(v Vec3, f Frame, theta float64) Vec3 {
	if f == Fixed {
		return InertialToFixedWithAngle(v, theta)
	}
	return v
}

// ParseFrame accepts "inertial" (or "eci") and "fixed" (or "ecf", "ecef").
func ParseFrame(s string) (Frame, bool) {
	switch s {
	case "inertial", "eci":
		return Inertial, true
	case "fixed", "ecf", "ecef":
		return Fixed, true
	}
	return Inertial, false
}

func (f Frame) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Frame) UnmarshalText(b []byte) error {
	v, ok := ParseFrame(string(b))
	if !ok {
		return fmt.Errorf("unknown frame %q", b)
	}
	*f = v
	return nil
}
