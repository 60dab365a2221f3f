package catalog

import (
	"errors"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"24100.50000000", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"00001.00000000", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"57001.25000000", time.Date(1957, 1, 1, 6, 0, 0, 0, time.UTC)},
		{"56366.00000000", time.Date(2056, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEpoch(tt.in)
			if err != nil {
				t.Fatalf("parseEpoch(%q): %v", tt.in, err)
			}
			if d := got.Sub(tt.want); d > time.Millisecond || d < -time.Millisecond {
				t.Errorf("parseEpoch(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"2410", "AB100.5", "24XYZ.000", "24000.00000000", "24400.00000000"} {
		if _, err := parseEpoch(bad); err == nil {
			t.Errorf("parseEpoch(%q) succeeded, want error", bad)
		}
	}
}

func TestDecodeElements(t *testing.T) {
	id, el, err := DecodeElements(issLine1, issLine2)
	if err != nil {
		t.Fatalf("DecodeElements: %v", err)
	}
	if id != "25544" {
		t.Errorf("id = %q, want 25544", id)
	}
	if el.Inclination != 51.64 || el.RAAN != 100 || el.Eccentricity != 0.0001 || el.MeanMotion != 15.5 {
		t.Errorf("unexpected elements %+v", el)
	}
	if el.BStar != 0.10270e-3 {
		t.Errorf("bstar = %g, want 1.027e-4", el.BStar)
	}
	if p := el.PeriodMinutes(); p < 92.9 || p > 93.0 {
		t.Errorf("period = %v min, want ~92.9", p)
	}
}

func TestDecodeElementsRejects(t *testing.T) {
	replace := func(s string, at int, with string) string {
		return s[:at] + with + s[at+len(with):]
	}

	tests := []struct {
		name   string
		l1, l2 string
	}{
		{"short line 1", issLine1[:60], issLine2},
		{"short line 2", issLine1, issLine2[:68]},
		{"swapped lines", issLine2, issLine1},
		{"catalog mismatch", issLine1, replace(issLine2, 2, "25545")},
		{"alpha catalog number", replace(issLine1, 2, "A5544"), replace(issLine2, 2, "A5544")},
		{"garbage inclination", issLine1, replace(issLine2, 8, " 51.6X00")},
		{"garbage bstar", replace(issLine1, 53, " 1O270-3"), issLine2},
		{"blank mean motion", issLine1, replace(issLine2, 52, "           ")},
		{"zero mean motion", issLine1, replace(issLine2, 52, " 0.00000000")},
		{"bad epoch", replace(issLine1, 18, "2X"), issLine2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeElements(tt.l1, tt.l2)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestField(t *testing.T) {
	good := map[string]float64{
		" 51.6400": 51.64,
		"  0.0000": 0,
		" .00016717": 0.00016717,
		"-.00002182": -0.00002182,
		" .10270e-3": 0.1027e-3,
		"+.00000e+0": 0,
	}
	for in, want := range good {
		got, err := field(in)
		if err != nil || got != want {
			t.Errorf("field(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	for _, bad := range []string{"", "   ", "5 1.6", "   1.0000", "x"} {
		if _, err := field(bad); err == nil {
			t.Errorf("field(%q) succeeded, want error", bad)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"ISS (ZARYA)":      "ISS ZARYA",
		"  STARLINK-1007 ": "STARLINK-1007",
		"SL-16 R/B":        "SL-16 RB",
		"COSMOS 2251 DEB*": "COSMOS 2251 DEB",
		"NOAA_19":          "NOAA_19",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Classification
	}{
		{"STARLINK-1007", Classification{GroupStarlink, "SpaceX", "STARLINK", "United States"}},
		{"GPS BIIR-2 (PRN 13)", Classification{GroupNavigation, "US SPACE FORCE", "GPS", "United States"}},
		{"NAVSTAR 43", Classification{GroupNavigation, "US SPACE FORCE", "GPS", "United States"}},
		{"COSMOS 2425 (GLONASS)", Classification{GroupNavigation, "ROSCOSMOS", "GLONASS", "Russia"}},
		{"GSAT0101 (GALILEO-PFM)", Classification{GroupNavigation, "ESA", "GALILEO", "European Union"}},
		{"BEIDOU-3 M1", Classification{GroupNavigation, "CNSA", "BEIDOU", "China"}},
		{"COMPASS-G1", Classification{GroupNavigation, "CNSA", "BEIDOU", "China"}},
		{"LANDSAT 9", Classification{GroupEarthObservation, "NASA", "LANDSAT", "United States"}},
		{"SENTINEL-2A", Classification{GroupEarthObservation, "ESA", "SENTINEL", "European Union"}},
		{"GOES 16", Classification{GroupWeather, "NOAA", "GOES", "United States"}},
		{"NOAA 19", Classification{GroupWeather, "NOAA", "NOAA", "United States"}},
		{"HST (HUBBLE)", Classification{GroupScientific, "NASA", "HUBBLE", "United States"}},
		{"ISS (ZARYA)", Classification{GroupSpaceStation, "NASA", "ISS", "International"}},
		{"COSMOS 2251 DEB", Classification{Group: GroupDebris, Country: "Various"}},
		{"SL-16 R/B", Classification{Group: GroupDebris, Country: "Various"}},
		{"FENGYUN 1C DEBRIS", Classification{Group: GroupDebris, Country: "Various"}},
		{"INTELSAT 901", Classification{GroupCommunication, "INTELSAT", "COMMUNICATION", "United States"}},
		{"SES-14", Classification{GroupCommunication, "SES", "COMMUNICATION", "Luxembourg"}},
		{"EUTELSAT 7C", Classification{GroupCommunication, "EUTELSAT", "COMMUNICATION", "France"}},
		{"TIANHE", Classification{Group: GroupOther}},
		{"", Classification{Group: GroupOther}},

		// Priority order: the earlier rule wins when several match.
		{"STARLINK DEB", Classification{GroupStarlink, "SpaceX", "STARLINK", "United States"}},
		{"GLONASS R/B", Classification{GroupNavigation, "ROSCOSMOS", "GLONASS", "Russia"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.name); got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLooksInactive(t *testing.T) {
	for name, want := range map[string]bool{
		"COSMOS 2251 DEB": true,
		"sl-16 r/b":       true,
		"STARLINK-1007":   false,
		"ISS (ZARYA)":     false,
	} {
		if got := LooksInactive(name); got != want {
			t.Errorf("LooksInactive(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewRecordInactiveMarker(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		inactive bool
	}{
		{"GPS BIIR-2 R/B", "GPS BIIR-2 RB", true},
		{"NOAA 19 R/B", "NOAA 19 RB", true},
		{"COSMOS 2251 DEB", "COSMOS 2251 DEB", true},
		{"NOAA 19", "NOAA 19", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewRecord(tt.name, issLine1, issLine2)
			if err != nil {
				t.Fatalf("NewRecord: %v", err)
			}
			if rec.Name != tt.stored {
				t.Errorf("Name = %q, want %q", rec.Name, tt.stored)
			}
			if rec.Inactive != tt.inactive {
				t.Errorf("Inactive = %v, want %v", rec.Inactive, tt.inactive)
			}
		})
	}
}

func TestBlock(t *testing.T) {
	lines := []string{"ISS (ZARYA)", issLine1, issLine2, issLine1, issLine2, "orphan"}

	if name, _, _, w := block(lines, 0); w != 3 || name != "ISS (ZARYA)" {
		t.Errorf("three-line block: width=%d name=%q", w, name)
	}
	if name, _, _, w := block(lines, 3); w != 2 || name != "" {
		t.Errorf("bare block: width=%d name=%q", w, name)
	}
	if _, _, _, w := block(lines, 5); w != 0 {
		t.Errorf("orphan line: width=%d, want 0", w)
	}
}
