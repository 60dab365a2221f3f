package api

import (
	"net/http"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/httputil"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

type recordSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Group         string  `json:"group"`
	Operator      string  `json:"operator,omitempty"`
	Mission       string  `json:"mission,omitempty"`
	Country       string  `json:"country,omitempty"`
	PeriodMinutes float64 `json:"period_minutes"`
	Inclination   float64 `json:"inclination_deg"`
}

func summarize(rec catalog.Record) recordSummary {
	return recordSummary{
		ID:            rec.ID,
		Name:          rec.Name,
		Group:         string(rec.Group),
		Operator:      rec.Operator,
		Mission:       rec.Mission,
		Country:       rec.Country,
		PeriodMinutes: rec.Elements.PeriodMinutes(),
		Inclination:   rec.Elements.Inclination,
	}
}

type searchResponse struct {
	Query   string          `json:"query"`
	Total   int             `json:"total"`
	Results []recordSummary `json:"results"`
}

// handleSearch filters the catalog by a case-insensitive substring over name,
// id, group, operator, mission and country.
// GET /api/v1/catalog/search?q=starlink&limit=50
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat := s.engine.Catalogs().Get()
	if cat == nil {
		s.writeEngineError(w, engine.ErrNotReady)
		return
	}

	q := r.URL.Query().Get("q")
	matches := cat.Search(q)
	resp := searchResponse{Query: q, Total: len(matches), Results: make([]recordSummary, 0, min(len(matches), limit))}
	for _, rec := range matches[:min(len(matches), limit)] {
		resp.Results = append(resp.Results, summarize(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type metadataResponse struct {
	Loaded      bool           `json:"loaded"`
	Version     uint64         `json:"version"`
	Records     int            `json:"records"`
	LoadedAt    *time.Time     `json:"loaded_at,omitempty"`
	Groups      map[string]int `json:"groups,omitempty"`
	OldestEpoch *time.Time     `json:"oldest_epoch,omitempty"`
	NewestEpoch *time.Time     `json:"newest_epoch,omitempty"`
	Engine      engine.Status  `json:"engine"`
}

// handleMetadata reports the published catalog and the engine status. It
// answers 200 before the first catalog so clients can poll it.
// GET /api/v1/catalog/metadata
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	resp := metadataResponse{Engine: s.engine.Status()}
	if cat := s.engine.Catalogs().Get(); cat != nil {
		resp.Loaded = true
		resp.Version = cat.Version
		resp.Records = cat.Len()
		loaded := cat.LoadedAt
		resp.LoadedAt = &loaded

		resp.Groups = make(map[string]int)
		for g, n := range cat.GroupCounts() {
			resp.Groups[string(g)] = n
		}
		if oldest, newest := cat.EpochRange(); !oldest.IsZero() {
			resp.OldestEpoch, resp.NewestEpoch = &oldest, &newest
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleObject describes one object at the current simulation time.
// GET /api/v1/objects/{id}
func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalogs().Get()
	if cat == nil {
		s.writeEngineError(w, engine.ErrNotReady)
		return
	}
	rec, ok := cat.ByID(r.PathValue("id"))
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "object not found")
		return
	}
	d, err := s.engine.Propagator().Describe(&rec, s.engine.State().Snapshot().Timeline.Current)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}
