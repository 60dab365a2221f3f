package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/auth"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog/catalogtest"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var epoch = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

// newTestServer builds a server over a real engine. With rendered set, the
// engine has a three-object catalog and one published frame.
func newTestServer(t *testing.T, cfg Config, rendered bool) (*Server, *engine.Engine) {
	t.Helper()
	logger := testLogger()
	cats := catalog.NewStore(logger)
	prop := propagation.New(64, logger)
	pipe := pipeline.New(prop, propagation.NewWorkerPool(2, logger), 100, logger)
	st := state.NewStore(state.Defaults(epoch), logger)
	eng := engine.New(engine.Config{}, cats, st, pipe, prop, logger)

	if rendered {
		cats.Set(catalogtest.Catalog(
			catalogtest.Record("STARLINK-1007", catalogtest.Circular500(1)),
			catalogtest.Record("NAVSTAR 60", catalogtest.GPS(2)),
			catalogtest.Record("ISS (ZARYA)", catalogtest.Circular500(25544)),
		))
		if _, err := eng.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(cfg, eng, nil, nil, logger), eng
}

func do(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	s, _ := newTestServer(t, Config{}, false)
	if w := do(t, s, "GET", "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
	w := do(t, s, "GET", "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "no catalog loaded") {
		t.Errorf("readyz before catalog = %d %q", w.Code, w.Body.String())
	}

	s, _ = newTestServer(t, Config{}, true)
	if w := do(t, s, "GET", "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("readyz after render = %d", w.Code)
	}
}

func TestFrameNotReady(t *testing.T) {
	s, _ := newTestServer(t, Config{}, false)
	w := do(t, s, "GET", "/api/v1/frame", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestFrameJSON(t *testing.T) {
	s, _ := newTestServer(t, Config{}, true)
	w := do(t, s, "GET", "/api/v1/frame", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decode[frameResponse](t, w)
	if resp.Count != 3 || len(resp.IDs) != 3 || len(resp.Data) != 3*pipeline.Stride {
		t.Errorf("count %d, ids %v, %d values", resp.Count, resp.IDs, len(resp.Data))
	}
	if resp.Frame != "inertial" || resp.CatalogVersion != 1 || !resp.Time.Equal(epoch) {
		t.Errorf("header = %s v%d %v", resp.Frame, resp.CatalogVersion, resp.Time)
	}
}

func TestFrameBinary(t *testing.T) {
	s, _ := newTestServer(t, Config{}, true)
	w := do(t, s, "GET", "/api/v1/frame?format=binary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("X-Instance-Count"); got != "3" {
		t.Errorf("X-Instance-Count = %q", got)
	}
	body := w.Body.Bytes()
	if len(body) != 12+3*pipeline.Stride*4 {
		t.Fatalf("body is %d bytes", len(body))
	}
	if n := binary.LittleEndian.Uint32(body[:4]); n != 3 {
		t.Errorf("encoded count = %d", n)
	}
	if ms := int64(binary.LittleEndian.Uint64(body[4:12])); ms != epoch.UnixMilli() {
		t.Errorf("encoded time = %d", ms)
	}

	if w := do(t, s, "GET", "/api/v1/frame?format=xml", ""); w.Code != http.StatusBadRequest {
		t.Errorf("format=xml status = %d", w.Code)
	}
}

func TestPickBySlot(t *testing.T) {
	s, eng := newTestServer(t, Config{}, true)

	w := do(t, s, "POST", "/api/v1/pick?slot=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decode[pickResponse](t, w)
	if resp.ID != "25544" || resp.Slot != 2 {
		t.Errorf("pick = %+v", resp)
	}
	if sel := eng.State().Snapshot().Selected; sel != "25544" {
		t.Errorf("selected = %q", sel)
	}

	tests := []struct {
		target string
		body   string
		want   int
	}{
		{"/api/v1/pick?slot=9", "", http.StatusNotFound},
		{"/api/v1/pick?slot=x", "", http.StatusBadRequest},
		{"/api/v1/pick", "", http.StatusBadRequest},
		{"/api/v1/pick", `{"origin":[0,0,100],"dir":[0,0,1]}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := do(t, s, "POST", tt.target, tt.body); w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.target, tt.body, w.Code, tt.want)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	s, eng := newTestServer(t, Config{}, true)

	w := do(t, s, "POST", "/api/v1/state", `{"camera":{"zoom":7.25},"color_mode":"altitude","frame":"fixed","selected":"25544"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decode[stateResponse](t, w)
	if resp.State.Camera.Zoom != 7.25 || resp.State.ColorMode != pipeline.ColorByAltitude || resp.State.Selected != "25544" {
		t.Errorf("state = %+v", resp.State)
	}
	if resp.Query != "zoom=7.25&color=altitude&ecf=1&selected=25544" {
		t.Errorf("query = %q", resp.Query)
	}

	// Query-string form applies on top of the current state.
	w = do(t, s, "POST", "/api/v1/state?pitch=10&q=starlink", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	st := eng.State().Snapshot()
	if st.Camera.Pitch != 10 || st.Query != "starlink" || st.Camera.Zoom != 7.25 {
		t.Errorf("after query post: %+v", st)
	}

	w = do(t, s, "POST", "/api/v1/state", `{"reset_camera":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cam := eng.State().Snapshot().Camera; cam != state.Defaults(epoch).Camera {
		t.Errorf("camera after reset = %+v", cam)
	}

	if w := do(t, s, "GET", "/api/v1/state", ""); w.Code != http.StatusOK {
		t.Errorf("GET state = %d", w.Code)
	}
}

func TestStateBadRequests(t *testing.T) {
	s, _ := newTestServer(t, Config{}, true)
	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"empty", "/api/v1/state", ""},
		{"malformed json", "/api/v1/state", `{"camera":`},
		{"unknown frame", "/api/v1/state", `{"frame":"galactic"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, s, "POST", tt.target, tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLegend(t *testing.T) {
	s, _ := newTestServer(t, Config{}, true)
	w := do(t, s, "GET", "/api/v1/legend?mode=altitude", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["mode"] != "altitude" {
		t.Errorf("mode = %v", resp["mode"])
	}
	if entries, ok := resp["entries"].([]any); !ok || len(entries) == 0 {
		t.Errorf("entries = %v", resp["entries"])
	}
	if w := do(t, s, "GET", "/api/v1/legend?mode=rainbow", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d", w.Code)
	}
}

func TestSearchAndMetadata(t *testing.T) {
	s, _ := newTestServer(t, Config{}, true)

	w := do(t, s, "GET", "/api/v1/catalog/search?q=starlink", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[searchResponse](t, w)
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "00001" {
		t.Errorf("search = %+v", resp)
	}

	w = do(t, s, "GET", "/api/v1/catalog/search?limit=2", "")
	resp = decode[searchResponse](t, w)
	if resp.Total != 3 || len(resp.Results) != 2 {
		t.Errorf("limited search: total %d, %d results", resp.Total, len(resp.Results))
	}
	if w := do(t, s, "GET", "/api/v1/catalog/search?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d", w.Code)
	}

	w = do(t, s, "GET", "/api/v1/catalog/metadata", "")
	meta := decode[metadataResponse](t, w)
	if !meta.Loaded || meta.Version != 1 || meta.Records != 3 || !meta.Engine.Ready {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestObject(t *testing.T) {
	s, _ := newTestServer(t, Config{}, true)
	w := do(t, s, "GET", "/api/v1/objects/25544", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	d := decode[propagation.Details](t, w)
	if d.ID != "25544" || d.AltitudeKm < 450 || d.AltitudeKm > 560 {
		t.Errorf("details = %+v", d)
	}
	if w := do(t, s, "GET", "/api/v1/objects/99999", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown object status = %d", w.Code)
	}
}

func TestSelectionEndpoints(t *testing.T) {
	s, eng := newTestServer(t, Config{}, true)

	if w := do(t, s, "GET", "/api/v1/selection/orbit", ""); w.Code != http.StatusNotFound {
		t.Errorf("orbit without selection = %d", w.Code)
	}

	eng.State().Select("25544")

	w := do(t, s, "GET", "/api/v1/selection/orbit?samples=60", "")
	if w.Code != http.StatusOK {
		t.Fatalf("orbit status = %d", w.Code)
	}
	if orbit := decode[pathResponse](t, w); orbit.ID != "25544" || len(orbit.Points) != 61 {
		t.Errorf("orbit = %s with %d points", orbit.ID, len(orbit.Points))
	}

	w = do(t, s, "GET", "/api/v1/selection/trail?minutes=30&samples=10", "")
	if trail := decode[pathResponse](t, w); len(trail.Points) != 11 {
		t.Errorf("trail has %d points", len(trail.Points))
	}

	w = do(t, s, "GET", "/api/v1/selection/groundtrack", "")
	if track := decode[groundTrackResponse](t, w); track.ID != "25544" || len(track.Segments) == 0 {
		t.Errorf("ground track = %s with %d segments", track.ID, len(track.Segments))
	}

	w = do(t, s, "GET", "/api/v1/selection/groundtrack?format=geojson", "")
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"MultiLineString"`)) {
		t.Errorf("geojson body = %s", w.Body.String())
	}

	if w := do(t, s, "GET", "/api/v1/selection/groundtrack?minutes=5000", ""); w.Code != http.StatusBadRequest {
		t.Errorf("minutes=5000 status = %d", w.Code)
	}

	w = do(t, s, "GET", "/api/v1/selection/details", "")
	if d := decode[propagation.Details](t, w); d.ID != "25544" {
		t.Errorf("details id = %q", d.ID)
	}
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, Config{Auth: auth.Config{Enabled: true, Token: "secret", PublicReads: true}}, true)

	if w := do(t, s, "GET", "/api/v1/frame", ""); w.Code != http.StatusOK {
		t.Errorf("public read = %d", w.Code)
	}
	if w := do(t, s, "POST", "/api/v1/pick?slot=0", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated pick = %d", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/pick?slot=0", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated pick = %d", w.Code)
	}
}

func TestURLSyncReported(t *testing.T) {
	logger := testLogger()
	_, eng := newTestServer(t, Config{}, true)

	written := make(chan string, 4)
	urls := state.NewURLSync(eng.State(), 10*time.Millisecond, func(q string) { written <- q }, logger)
	defer urls.Close()
	urls.Load("?zoom=9.00")
	s := NewServer(Config{}, eng, urls, nil, logger)

	if w := do(t, s, "POST", "/api/v1/state", `{"selected":"25544"}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	select {
	case q := <-written:
		if q != "zoom=9.00&selected=25544" {
			t.Errorf("written = %q", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no URL write")
	}

	resp := decode[stateResponse](t, do(t, s, "GET", "/api/v1/state", ""))
	if resp.Written == nil || *resp.Written != "zoom=9.00&selected=25544" {
		t.Errorf("written = %v", resp.Written)
	}
}
