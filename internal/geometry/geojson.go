package geometry

import (
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
)

// GroundTrackGeoJSON renders ground-track segments as a MultiLineString
// feature. Coordinates are [lon, lat] in degrees.
func GroundTrackGeoJSON(rec *catalog.Record, segments [][]TrackPoint) *geojson.Feature {
	lines := make([][][]float64, 0, len(segments))
	var start, end time.Time
	for _, seg := range segments {
		line := make([][]float64, len(seg))
		for i, pt := range seg {
			line[i] = []float64{pt.Lon, pt.Lat}
		}
		lines = append(lines, line)

		if len(seg) > 0 {
			if start.IsZero() {
				start = seg[0].Time
			}
			end = seg[len(seg)-1].Time
		}
	}

	f := geojson.NewMultiLineStringFeature(lines...)
	f.ID = rec.ID
	f.SetProperty("name", rec.Name)
	f.SetProperty("group", string(rec.Group))
	if !start.IsZero() {
		f.SetProperty("start", start.UTC().Format(time.RFC3339))
		f.SetProperty("end", end.UTC().Format(time.RFC3339))
	}
	return f
}
