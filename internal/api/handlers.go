package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/httputil"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 16 << 10

// intParam parses an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %d-%d", name, lo, hi)
	}
	return n, nil
}

// writeEngineError maps engine and propagation errors to status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotReady):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrNoSelection), errors.Is(err, engine.ErrNoSuchSlot):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, propagation.ErrPropagation):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func points(vs []transform.Vec3) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = [3]float64{v.X, v.Y, v.Z}
	}
	return out
}

var framePool = sync.Pool{New: func() any { return new(pipeline.Buffer) }}

type frameResponse struct {
	Time           time.Time `json:"time"`
	Frame          string    `json:"frame"`
	CatalogVersion uint64    `json:"catalog_version"`
	Count          int       `json:"count"`
	Stride         int       `json:"stride"`
	IDs            []string  `json:"ids"`
	Data           []float32 `json:"data"`
}

// handleFrame serves the current front buffer.
// GET /api/v1/frame?format=json|binary
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "binary" {
		httputil.WriteError(w, http.StatusBadRequest, "invalid format parameter, must be json or binary")
		return
	}
	if !s.engine.Ready() {
		s.writeEngineError(w, engine.ErrNotReady)
		return
	}

	// Copy out so slow clients never hold the front buffer.
	b := framePool.Get().(*pipeline.Buffer)
	defer framePool.Put(b)
	s.engine.Frame(func(front *pipeline.Buffer) { front.CopyTo(b) })

	if format == "binary" {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Frame", b.Frame.String())
		w.Header().Set("X-Catalog-Version", strconv.FormatUint(b.CatalogVersion, 10))
		w.Header().Set("X-Instance-Count", strconv.Itoa(b.Count()))
		w.Header().Set("X-Stride", strconv.Itoa(pipeline.Stride))
		if _, err := b.WriteTo(w); err != nil {
			s.logger.Debug("frame write failed", "error", err)
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, frameResponse{
		Time:           b.Time,
		Frame:          b.Frame.String(),
		CatalogVersion: b.CatalogVersion,
		Count:          b.Count(),
		Stride:         pipeline.Stride,
		IDs:            b.IDs(),
		Data:           b.Data(),
	})
}

type pickRequest struct {
	Origin  [3]float64 `json:"origin"`
	Dir     [3]float64 `json:"dir"`
	MaxDist float64    `json:"max_dist"`
}

type pickResponse struct {
	Slot  int    `json:"slot"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// handlePick selects the instance in a slot of the current frame, or the
// first instance along a ray given as a JSON body.
// POST /api/v1/pick?slot=N
func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	var (
		rec  catalog.Record
		slot int
		err  error
	)
	if v := r.URL.Query().Get("slot"); v != "" {
		slot, err = strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid slot parameter")
			return
		}
		rec, err = s.engine.Pick(slot)
	} else {
		var req pickRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "slot parameter or ray body required")
			return
		}
		if req.MaxDist <= 0 {
			req.MaxDist = 0.02
		}
		origin := transform.Vec3{X: req.Origin[0], Y: req.Origin[1], Z: req.Origin[2]}
		dir := transform.Vec3{X: req.Dir[0], Y: req.Dir[1], Z: req.Dir[2]}
		rec, slot, err = s.engine.PickRay(origin, dir, req.MaxDist)
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pickResponse{Slot: slot, ID: rec.ID, Name: rec.Name, Group: string(rec.Group)})
}

type stateResponse struct {
	State state.State `json:"state"`
	// Query is the canonical query string for State.
	Query string `json:"query"`
	// Written is the last query string written by URL sync.
	Written *string `json:"written,omitempty"`
}

func (s *Server) stateResponse(st state.State) stateResponse {
	resp := stateResponse{State: st, Query: state.EncodeQuery(st, s.engine.State().Defaults())}
	if s.urls != nil {
		q := s.urls.Query()
		resp.Written = &q
	}
	return resp
}

// handleGetState returns the current state and its query string.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.stateResponse(s.engine.State().Snapshot()))
}

// statePatch is the JSON body of POST /api/v1/state. Absent fields are left
// unchanged.
type statePatch struct {
	Camera       *state.CameraPatch   `json:"camera"`
	Timeline     *state.TimelinePatch `json:"timeline"`
	Filters      *state.FiltersPatch  `json:"filters"`
	Frame        *transform.Frame     `json:"frame"`
	ColorMode    *pipeline.ColorMode  `json:"color_mode"`
	Selected     *string              `json:"selected"`
	Query        *string              `json:"query"`
	ResetCamera  bool                 `json:"reset_camera"`
	ResetFilters bool                 `json:"reset_filters"`
}

func (p statePatch) apply(st *state.Store) {
	if p.ResetCamera {
		st.ResetCamera()
	}
	if p.ResetFilters {
		st.ResetFilters()
	}
	if p.Camera != nil {
		st.SetCamera(*p.Camera)
	}
	if p.Timeline != nil {
		st.SetTimeline(*p.Timeline)
	}
	if p.Filters != nil {
		st.SetFilters(*p.Filters)
	}
	if p.Frame != nil {
		st.SetFrame(*p.Frame)
	}
	if p.ColorMode != nil {
		st.SetColorMode(*p.ColorMode)
	}
	if p.Selected != nil {
		st.Select(*p.Selected)
	}
	if p.Query != nil {
		st.SetQuery(*p.Query)
	}
}

// handlePostState updates the state. A request with a query string and no
// body applies the view parameters (pitch, yaw, zoom, color, ecf, date,
// selected, q) on top of the current state; otherwise the body is a JSON
// merge patch.
// POST /api/v1/state
func (s *Server) handlePostState(w http.ResponseWriter, r *http.Request) {
	store := s.engine.State()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "could not read body")
		return
	}

	if len(body) == 0 {
		if r.URL.RawQuery == "" {
			httputil.WriteError(w, http.StatusBadRequest, "query string or JSON patch required")
			return
		}
		st := store.Replace(state.DecodeQuery(r.URL.Query(), store.Snapshot()))
		httputil.WriteJSON(w, http.StatusOK, s.stateResponse(st))
		return
	}

	var patch statePatch
	if err := json.Unmarshal(body, &patch); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid state patch: "+err.Error())
		return
	}
	patch.apply(store)
	httputil.WriteJSON(w, http.StatusOK, s.stateResponse(store.Snapshot()))
}

// handleLegend returns the legend for a color mode (default: the current one).
// GET /api/v1/legend?mode=altitude
func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	mode := s.engine.State().Snapshot().ColorMode
	if v := r.URL.Query().Get("mode"); v != "" {
		m, ok := pipeline.ParseColorMode(v)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "unknown color mode")
			return
		}
		mode = m
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"mode":    mode,
		"entries": pipeline.Legend(mode),
	})
}
