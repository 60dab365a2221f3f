// Package catalogtest builds well-formed element sets for tests.
package catalogtest

import (
	"fmt"
	"math"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
)

// Elset describes one element set. Epoch uses the YYDDD.DDDDDDDD form.
type Elset struct {
	ID           int
	Epoch        string
	Inclination  float64
	RAAN         float64
	Eccentricity float64
	ArgPerigee   float64
	MeanAnomaly  float64
	MeanMotion   float64
}

// TestEpoch is the epoch shared by the stock element sets: 2024-04-09 12:00 UTC.
const TestEpoch = "24100.50000000"

// Circular500 is a near-circular orbit roughly 500 km above the mean radius.
func Circular500(id int) Elset {
	return Elset{
		ID:           id,
		Epoch:        TestEpoch,
		Inclination:  51.6,
		RAAN:         100,
		Eccentricity: 0.0001,
		ArgPerigee:   0,
		MeanAnomaly:  0,
		MeanMotion:   15.2429,
	}
}

// GPS is a semi-synchronous medium orbit (about 20200 km altitude).
func GPS(id int) Elset {
	return Elset{
		ID:           id,
		Epoch:        TestEpoch,
		Inclination:  55,
		RAAN:         30,
		Eccentricity: 0.005,
		ArgPerigee:   45,
		MeanAnomaly:  120,
		MeanMotion:   2.00564,
	}
}

// Lines renders e as two 69-column lines with valid checksums.
func Lines(e Elset) (string, string) {
	l1 := fmt.Sprintf("1 %05dU %-8s %14s %10s %8s %8s 0 %4d",
		e.ID, "24001A", e.Epoch, " .00000000", " 00000-0", " 00000-0", 999)
	l2 := fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		e.ID, e.Inclination, e.RAAN, int(math.Round(e.Eccentricity*1e7)),
		e.ArgPerigee, e.MeanAnomaly, e.MeanMotion, 1)
	return l1 + checksum(l1), l2 + checksum(l2)
}

// Text renders a three-line block for name and e.
func Text(name string, e Elset) string {
	l1, l2 := Lines(e)
	return name + "\n" + l1 + "\n" + l2 + "\n"
}

// Record builds a classified record, panicking if e does not decode.
func Record(name string, e Elset) catalog.Record {
	l1, l2 := Lines(e)
	rec, err := catalog.NewRecord(name, l1, l2)
	if err != nil {
		panic(fmt.Sprintf("catalogtest: %s: %v", name, err))
	}
	return rec
}

// Catalog merges records into an unpublished catalog.
func Catalog(recs ...catalog.Record) *catalog.Catalog {
	return catalog.Merge(recs)
}

func checksum(line string) string {
	sum := 0
	for _, r := range line {
		switch {
		case r >= '0' && r <= '9':
			sum += int(r - '0')
		case r == '-':
			sum++
		}
	}
	return fmt.Sprint(sum % 10)
}
