package pipeline

import (
	"math"
	"strconv"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// ColorMode selects how instances are colored.
type ColorMode string

const (
	ColorByGroup    ColorMode = "group"
	ColorByAltitude ColorMode = "altitude"
	ColorByVelocity ColorMode = "velocity"
	ColorByOperator ColorMode = "operator"
	ColorByMission  ColorMode = "mission"
	ColorByCountry  ColorMode = "country"
)

// ColorModes lists every mode.
var ColorModes = []ColorMode{
	ColorByGroup, ColorByAltitude, ColorByVelocity,
	ColorByOperator, ColorByMission, ColorByCountry,
}

// ParseColorMode reports whether s names a color mode.
func ParseColorMode(s string) (ColorMode, bool) {
	for _, m := range ColorModes {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Color is a linear RGB triple in [0, 1].
type Color struct {
	R, G, B float32
}

// Hex formats c as #rrggbb.
func (c Color) Hex() string {
	b := []byte{'#'}
	for _, v := range [3]float32{c.R, c.G, c.B} {
		n := int(math.Round(float64(v) * 255))
		if n < 16 {
			b = append(b, '0')
		}
		b = strconv.AppendInt(b, int64(n), 16)
	}
	return string(b)
}

// hex parses a #rrggbb literal. Only used on the static tables below.
func hex(s string) Color {
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		panic("pipeline: bad color literal " + s)
	}
	return Color{
		R: float32(v>>16&0xff) / 255,
		G: float32(v>>8&0xff) / 255,
		B: float32(v&0xff) / 255,
	}
}

var defaultColor = hex("#ffffff")

var groupColors = map[catalog.Group]Color{
	catalog.GroupStarlink:         hex("#00ff41"),
	catalog.GroupDebris:           hex("#ff1744"),
	catalog.GroupNavigation:       hex("#00d4ff"),
	catalog.GroupCommunication:    hex("#ff6d00"),
	catalog.GroupEarthObservation: hex("#e91e63"),
	catalog.GroupScientific:       hex("#ffeb3b"),
	catalog.GroupMilitary:         hex("#9c27b0"),
	catalog.GroupWeather:          hex("#2196f3"),
	catalog.GroupAmateur:          hex("#ff9800"),
	catalog.GroupSpaceStation:     hex("#00e676"),
	catalog.GroupOther:            hex("#ffffff"),
}

var groupLabels = map[catalog.Group]string{
	catalog.GroupStarlink:         "Starlink",
	catalog.GroupDebris:           "Debris",
	catalog.GroupNavigation:       "Navigation",
	catalog.GroupCommunication:    "Communication",
	catalog.GroupEarthObservation: "Earth Observation",
	catalog.GroupScientific:       "Scientific",
	catalog.GroupMilitary:         "Military",
	catalog.GroupWeather:          "Weather",
	catalog.GroupAmateur:          "Amateur Radio",
	catalog.GroupSpaceStation:     "Space Station",
	catalog.GroupOther:            "Other",
}

// band is an upper bound (exclusive) and the color below it.
type band struct {
	below float64
	color Color
	label string
}

var altitudeBands = []band{
	{300, hex("#ff1744"), "< 300km"},
	{600, hex("#ff6d00"), "300-600km"},
	{900, hex("#ffeb3b"), "600-900km"},
	{1200, hex("#00ff41"), "900-1200km"},
	{1500, hex("#00d4ff"), "1200-1500km"},
	{2000, hex("#e91e63"), "1500-2000km"},
	{5000, hex("#9c27b0"), "2000-5000km"},
	{math.Inf(1), hex("#ffffff"), "> 5000km"},
}

var velocityBands = []band{
	{6.0, hex("#ffffff"), "< 6.0 km/s"},
	{7.0, hex("#9c27b0"), "6.0-7.0 km/s"},
	{7.3, hex("#e91e63"), "7.0-7.3 km/s"},
	{7.6, hex("#00d4ff"), "7.3-7.6 km/s"},
	{7.9, hex("#00ff41"), "7.6-7.9 km/s"},
	{8.2, hex("#ffeb3b"), "7.9-8.2 km/s"},
	{8.5, hex("#ff6d00"), "8.2-8.5 km/s"},
	{math.Inf(1), hex("#ff1744"), "> 8.5 km/s"},
}

// entry is one categorical table row. Legend-only rows have inLegend set.
type entry struct {
	key      string
	label    string
	color    Color
	inLegend bool
}

var operatorTable = []entry{
	{"SpaceX", "SpaceX", hex("#00ff00"), true},
	{"NASA", "NASA", hex("#ff6b6b"), true},
	{"ROSCOSMOS", "ROSCOSMOS", hex("#ff8cc8"), true},
	{"ESA", "ESA", hex("#51cf66"), true},
	{"JAXA", "JAXA", hex("#ffd43b"), true},
	{"CNSA", "CNSA", hex("#ff4757"), true},
	{"ISRO", "ISRO", hex("#ff9f43"), true},
	{"US SPACE FORCE", "US Space Force", hex("#5352ed"), true},
	{"US NAVY", "US Navy", hex("#3742fa"), false},
	{"US AIR FORCE", "US Air Force", hex("#70a1ff"), false},
}

var missionTable = []entry{
	{"GPS", "GPS", hex("#00d4ff"), true},
	{"GLONASS", "GLONASS", hex("#ff6b00"), true},
	{"GALILEO", "Galileo", hex("#9c27b0"), true},
	{"BEIDOU", "BeiDou", hex("#ffeb3b"), true},
	{"LANDSAT", "Landsat", hex("#4caf50"), true},
	{"SENTINEL", "Sentinel", hex("#2196f3"), true},
	{"GOES", "GOES", hex("#ff9800"), true},
	{"NOAA", "NOAA", hex("#795548"), false},
	{"IRIDIUM", "Iridium", hex("#e91e63"), false},
	{"GLOBALSTAR", "Globalstar", hex("#9e9e9e"), false},
	{"INTELSAT", "Intelsat", hex("#607d8b"), false},
	{"HUBBLE", "Hubble", hex("#ffc107"), true},
	{"CHANDRA", "Chandra", hex("#673ab7"), false},
	{"SPITZER", "Spitzer", hex("#ff5722"), false},
}

var countryTable = []entry{
	{"United States", "United States", hex("#ff4757"), true},
	{"Russia", "Russia", hex("#ff6b00"), true},
	{"China", "China", hex("#ffeb3b"), true},
	{"European Union", "European Union", hex("#2196f3"), true},
	{"Japan", "Japan", hex("#e91e63"), true},
	{"India", "India", hex("#ff9800"), true},
	{"Canada", "Canada", hex("#f44336"), false},
	{"United Kingdom", "United Kingdom", hex("#9c27b0"), false},
	{"France", "France", hex("#3f51b5"), false},
	{"Germany", "Germany", hex("#009688"), false},
	{"Italy", "Italy", hex("#4caf50"), false},
	{"Israel", "Israel", hex("#00bcd4"), false},
	{"South Korea", "South Korea", hex("#795548"), false},
	{"Australia", "Australia", hex("#607d8b"), false},
}

func lookup(table []entry, key string) Color {
	if key == "" {
		return defaultColor
	}
	for _, e := range table {
		if e.key == key {
			return e.color
		}
	}
	return defaultColor
}

func banded(bands []band, v float64) Color {
	for _, b := range bands {
		if v < b.below {
			return b.color
		}
	}
	return bands[len(bands)-1].color
}

// AltitudeKm is the altitude of a normalized position.
func AltitudeKm(pos transform.Vec3) float64 {
	return (pos.Norm() - 1) * transform.EarthRadiusKm
}

// CircularSpeed is the circular orbital speed (km/s) at the given altitude.
func CircularSpeed(altitudeKm float64) float64 {
	return math.Sqrt(transform.MuEarth / (transform.EarthRadiusKm + altitudeKm))
}

// ColorFor computes the color of rec at the normalized position pos. It is a
// pure function of its arguments. Unknown modes and groups color as other.
func ColorFor(rec *catalog.Record, pos transform.Vec3, mode ColorMode) Color {
	switch mode {
	case ColorByGroup:
		if c, ok := groupColors[rec.Group]; ok {
			return c
		}
	case ColorByAltitude:
		return banded(altitudeBands, AltitudeKm(pos))
	case ColorByVelocity:
		return banded(velocityBands, CircularSpeed(AltitudeKm(pos)))
	case ColorByOperator:
		return lookup(operatorTable, rec.Operator)
	case ColorByMission:
		return lookup(missionTable, rec.Mission)
	case ColorByCountry:
		return lookup(countryTable, rec.Country)
	}
	return groupColors[catalog.GroupOther]
}

// LegendEntry is one row of a color legend.
type LegendEntry struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Legend returns the legend rows for mode, or nil for an unknown mode.
func Legend(mode ColorMode) []LegendEntry {
	var out []LegendEntry
	switch mode {
	case ColorByGroup:
		for _, g := range catalog.Groups {
			out = append(out, LegendEntry{groupLabels[g], groupColors[g].Hex()})
		}
	case ColorByAltitude:
		for _, b := range altitudeBands {
			out = append(out, LegendEntry{b.label, b.color.Hex()})
		}
	case ColorByVelocity:
		for _, b := range velocityBands {
			out = append(out, LegendEntry{b.label, b.color.Hex()})
		}
	case ColorByOperator:
		out = tableLegend(operatorTable)
	case ColorByMission:
		out = tableLegend(missionTable)
	case ColorByCountry:
		out = tableLegend(countryTable)
	}
	return out
}

func tableLegend(table []entry) []LegendEntry {
	var out []LegendEntry
	for _, e := range table {
		if e.inLegend {
			out = append(out, LegendEntry{e.label, e.color.Hex()})
		}
	}
	return append(out, LegendEntry{"Other", defaultColor.Hex()})
}
