package catalog

import (
	"time"
)

// Group is the closed set of object categories.
type Group string

const (
	GroupStarlink         Group = "starlink"
	GroupDebris           Group = "debris"
	GroupNavigation       Group = "navigation"
	GroupCommunication    Group = "communication"
	GroupEarthObservation Group = "earth_observation"
	GroupScientific       Group = "scientific"
	GroupMilitary         Group = "military"
	GroupWeather          Group = "weather"
	GroupAmateur          Group = "amateur"
	GroupSpaceStation     Group = "space_station"
	GroupOther            Group = "other"
)

// GroupAll is the filter value matching every group. It is never assigned to a record.
const GroupAll Group = "all"

// Groups lists every category in display order.
var Groups = []Group{
	GroupStarlink,
	GroupDebris,
	GroupNavigation,
	GroupCommunication,
	GroupEarthObservation,
	GroupScientific,
	GroupMilitary,
	GroupWeather,
	GroupAmateur,
	GroupSpaceStation,
	GroupOther,
}

// Valid reports whether g is a known category.
func (g Group) Valid() bool {
	for _, known := range Groups {
		if g == known {
			return true
		}
	}
	return false
}

// ParseGroup maps a filter string to a Group. "all" and the known categories
// are accepted; anything else reports false.
func ParseGroup(s string) (Group, bool) {
	g := Group(s)
	if g == GroupAll || g.Valid() {
		return g, true
	}
	return "", false
}

// Elements are the mean orbital elements decoded from an element set.
// Angles are in degrees, mean motion in revolutions per day.
type Elements struct {
	Epoch        time.Time `msgpack:"epoch"`
	Inclination  float64   `msgpack:"incl"`
	RAAN         float64   `msgpack:"raan"`
	Eccentricity float64   `msgpack:"ecc"`
	ArgPerigee   float64   `msgpack:"argp"`
	MeanAnomaly  float64   `msgpack:"ma"`
	MeanMotion   float64   `msgpack:"mm"`
	BStar        float64   `msgpack:"bstar"`
}

// PeriodMinutes is the orbital period derived from the mean motion.
// Returns 0 when the mean motion is not positive.
func (e Elements) PeriodMinutes() float64 {
	if e.MeanMotion <= 0 {
		return 0
	}
	return 1440.0 / e.MeanMotion
}

// Record is one tracked object. Records are immutable once ingested.
type Record struct {
	ID       string   `msgpack:"id"`
	Name     string   `msgpack:"name"`
	Line1    string   `msgpack:"l1"`
	Line2    string   `msgpack:"l2"`
	Group    Group    `msgpack:"group"`
	Operator string   `msgpack:"operator,omitempty"`
	Mission  string   `msgpack:"mission,omitempty"`
	Country  string   `msgpack:"country,omitempty"`
	Elements Elements `msgpack:"el"`
	Source   string   `msgpack:"src,omitempty"`
	// Inactive is the debris or rocket-body marker, taken from the raw name
	// before sanitizing strips the "/" of "R/B".
	Inactive bool     `msgpack:"inactive,omitempty"`
}

// Classification is the metadata inferred from an object name.
type Classification struct {
	Group    Group
	Operator string
	Mission  string
	Country  string
}

// Source is one raw catalog text blob awaiting parsing.
type Source struct {
	Name string
	Data []byte
}
