package api

import (
	"net/http"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/geometry"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/httputil"
)

const (
	maxSamples = 2000
	maxMinutes = 1440
)

type pathResponse struct {
	ID     string       `json:"id"`
	Time   time.Time    `json:"time"`
	Frame  string       `json:"frame"`
	Points [][3]float64 `json:"points"`
}

func newPathResponse(p engine.Path) pathResponse {
	return pathResponse{ID: p.ID, Time: p.Time, Frame: p.Frame.String(), Points: points(p.Points)}
}

// handleOrbit samples one orbital period of the selected object in the
// current reference frame.
// GET /api/v1/selection/orbit?samples=90
func (s *Server) handleOrbit(w http.ResponseWriter, r *http.Request) {
	samples, err := intParam(r, "samples", 0, 0, maxSamples)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, err := s.engine.SelectionOrbit(samples)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newPathResponse(path))
}

type groundTrackResponse struct {
	ID       string                  `json:"id"`
	Segments [][]geometry.TrackPoint `json:"segments"`
}

// handleGroundTrack samples the sub-satellite track ahead of the selection.
// GET /api/v1/selection/groundtrack?minutes=120&samples=180&format=geojson
func (s *Server) handleGroundTrack(w http.ResponseWriter, r *http.Request) {
	minutes, err := intParam(r, "minutes", 0, 1, maxMinutes)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	samples, err := intParam(r, "samples", 0, 0, maxSamples)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "geojson" {
		httputil.WriteError(w, http.StatusBadRequest, "invalid format parameter, must be json or geojson")
		return
	}

	rec, segs, err := s.engine.SelectionGroundTrack(geometry.TrackOptions{
		Duration: time.Duration(minutes) * time.Minute,
		Samples:  samples,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	if format == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		feature := geometry.GroundTrackGeoJSON(rec, segs)
		data, err := feature.MarshalJSON()
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		w.Write(data)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, groundTrackResponse{ID: rec.ID, Segments: segs})
}

// handleTrail samples the recent past of the selection, oldest first.
// GET /api/v1/selection/trail?minutes=90&samples=45
func (s *Server) handleTrail(w http.ResponseWriter, r *http.Request) {
	minutes, err := intParam(r, "minutes", 0, 1, maxMinutes)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	samples, err := intParam(r, "samples", 0, 0, maxSamples)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, err := s.engine.SelectionTrail(geometry.TrailOptions{
		Window:  time.Duration(minutes) * time.Minute,
		Samples: samples,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newPathResponse(path))
}

// handleDetails describes the selection at the current simulation time.
// GET /api/v1/selection/details
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.SelectionDetails()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}
