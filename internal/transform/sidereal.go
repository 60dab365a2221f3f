package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 reference epoch (2000-01-01 12:00 TT).
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

// secondsPerDay is the length of a mean solar day.
const secondsPerDay = 86400.0

// JulianDate converts an instant to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	century := math.Floor(y / 100)
	gregorian := 2 - century + math.Floor(century/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + gregorian - 1524.5 + dayFrac
}

// SiderealAngle returns the Greenwich mean sidereal angle in radians for t,
// normalized to [0, 2π). It evaluates the IAU-82 polynomial in Julian centuries
// from J2000 (Vallado Eq 3-47):
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² − 6.2e-6·T³  [s]
func SiderealAngle(t time.Time) float64 {
	centuries := (JulianDate(t) - j2000) / 36525.0

	// 876600h expressed in seconds is 3155760000.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*centuries +
		0.093104*centuries*centuries -
		6.2e-6*centuries*centuries*centuries

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2.0 * math.Pi
}
