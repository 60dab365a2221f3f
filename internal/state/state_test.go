package state

import (
	"io"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	epoch   = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
)

func ptr[T any](v T) *T { return &v }

func newStore() *Store { return NewStore(Defaults(epoch), discard) }

func TestDefaults(t *testing.T) {
	d := Defaults(epoch)
	if d.Camera != (Camera{Pitch: 39, Yaw: 85, Zoom: 4}) {
		t.Errorf("camera = %+v", d.Camera)
	}
	if d.Timeline.Playing || d.Timeline.Speed != 1 || !d.Timeline.Current.Equal(epoch) {
		t.Errorf("timeline = %+v", d.Timeline)
	}
	if d.Frame != transform.Inertial || d.ColorMode != pipeline.ColorByGroup {
		t.Errorf("frame %v, color %q", d.Frame, d.ColorMode)
	}
	if d.Filters != pipeline.DefaultFilters() {
		t.Errorf("filters = %+v", d.Filters)
	}
}

func TestSetCamera(t *testing.T) {
	tests := []struct {
		name  string
		patch CameraPatch
		want  Camera
	}{
		{"pitch only", CameraPatch{Pitch: ptr(10.0)}, Camera{10, 85, 4}},
		{"zoom clamped low", CameraPatch{Zoom: ptr(0.2)}, Camera{39, 85, MinZoom}},
		{"zoom clamped high", CameraPatch{Zoom: ptr(500.0)}, Camera{39, 85, MaxZoom}},
		{"nan ignored", CameraPatch{Yaw: ptr(math.NaN()), Zoom: ptr(math.Inf(1))}, Camera{39, 85, 4}},
		{"all fields", CameraPatch{Pitch: ptr(-5.0), Yaw: ptr(190.0), Zoom: ptr(12.0)}, Camera{-5, 190, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore()
			if got := s.SetCamera(tt.patch).Camera; got != tt.want {
				t.Errorf("camera = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSetTimelineRejectsBadSpeed(t *testing.T) {
	s := newStore()
	for _, v := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		s.SetTimeline(TimelinePatch{Speed: ptr(v)})
	}
	if got := s.Snapshot().Timeline.Speed; got != 1 {
		t.Errorf("speed = %v after invalid patches", got)
	}
	got := s.SetTimeline(TimelinePatch{Playing: ptr(true), Speed: ptr(60.0)}).Timeline
	if !got.Playing || got.Speed != 60 {
		t.Errorf("timeline = %+v", got)
	}
}

func TestSetFilters(t *testing.T) {
	s := newStore()
	s.SetFilters(FiltersPatch{Group: ptr(catalog.Group("nope")), AltitudeMax: ptr(math.NaN())})
	if got := s.Snapshot().Filters; got != pipeline.DefaultFilters() {
		t.Errorf("invalid patch changed filters: %+v", got)
	}
	got := s.SetFilters(FiltersPatch{Group: ptr(catalog.GroupStarlink), AltitudeMin: ptr(300.0), ActiveOnly: ptr(true)}).Filters
	want := pipeline.Filters{Group: catalog.GroupStarlink, AltitudeMin: 300, AltitudeMax: 100000, ActiveOnly: true}
	if got != want {
		t.Errorf("filters = %+v, want %+v", got, want)
	}
	if got := s.ResetFilters().Filters; got != pipeline.DefaultFilters() {
		t.Errorf("after reset = %+v", got)
	}
}

func TestSelectionAndQuery(t *testing.T) {
	s := newStore()
	if got := s.Select("25544").Selected; got != "25544" {
		t.Errorf("selected = %q", got)
	}
	if got := s.ClearSelection().Selected; got != "" {
		t.Errorf("selected after clear = %q", got)
	}
	if got := s.SetQuery("iss").Query; got != "iss" {
		t.Errorf("query = %q", got)
	}
	if got := s.SetColorMode("sparkle").ColorMode; got != pipeline.ColorByGroup {
		t.Errorf("unknown color mode accepted: %q", got)
	}
}

func TestAdvance(t *testing.T) {
	s := newStore()
	if got := s.Advance(time.Second); !got.Equal(epoch) {
		t.Errorf("paused clock moved to %v", got)
	}
	s.SetTimeline(TimelinePatch{Playing: ptr(true), Speed: ptr(60.0)})
	if got := s.Advance(2 * time.Second); !got.Equal(epoch.Add(2 * time.Minute)) {
		t.Errorf("Advance = %v, want %v", got, epoch.Add(2*time.Minute))
	}
}

func TestSubscribe(t *testing.T) {
	s := newStore()
	var mu sync.Mutex
	var changes []Change
	unsub := s.Subscribe(func(_ State, c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	s.SetFrame(transform.Fixed)
	s.SetColorMode("bogus") // no change, no notification
	s.SetTimeline(TimelinePatch{Playing: ptr(true)})
	s.Advance(time.Second)
	unsub()
	s.ResetCamera()

	mu.Lock()
	defer mu.Unlock()
	want := []Change{ChangeFrame, ChangeTimeline, ChangeClock}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %b, want %b", i, changes[i], want[i])
		}
	}
}

func TestEncodeQuery(t *testing.T) {
	d := Defaults(epoch)
	if got := EncodeQuery(d, d); got != "" {
		t.Errorf("defaults encode to %q", got)
	}

	st := d
	st.Camera = Camera{Pitch: 12.5, Yaw: -30, Zoom: 7.25}
	st.ColorMode = pipeline.ColorByAltitude
	st.Frame = transform.Fixed
	st.Timeline.Current = epoch.Add(time.Hour)
	st.Selected = "25544"
	st.Query = "iss zarya"

	want := "pitch=12.500&yaw=-30.000&zoom=7.25&color=altitude&ecf=1&date=1712667600000&selected=25544&q=iss+zarya"
	if got := EncodeQuery(st, d); got != want {
		t.Errorf("EncodeQuery =\n %s\nwant\n %s", got, want)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	d := Defaults(epoch)
	queries := []string{
		"pitch=12.500&yaw=-30.000&zoom=7.25&color=altitude&ecf=1&date=1712667600000&selected=25544&q=iss+zarya",
		"zoom=1.50",
		"color=country&selected=44713",
		"yaw=359.999",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			values, err := url.ParseQuery(q)
			if err != nil {
				t.Fatal(err)
			}
			if got := EncodeQuery(DecodeQuery(values, d), d); got != q {
				t.Errorf("round trip = %q", got)
			}
		})
	}
}

func TestDecodeQueryFallsBack(t *testing.T) {
	d := Defaults(epoch)
	values := url.Values{
		"pitch": {"abc"},
		"yaw":   {"NaN"},
		"zoom":  {"1000"},
		"color": {"plaid"},
		"ecf":   {"0"},
		"date":  {"yesterday"},
	}
	got := DecodeQuery(values, d)
	if got.Camera != (Camera{Pitch: 39, Yaw: 85, Zoom: MaxZoom}) {
		t.Errorf("camera = %+v", got.Camera)
	}
	if got.ColorMode != pipeline.ColorByGroup || got.Frame != transform.Inertial {
		t.Errorf("color %q frame %v", got.ColorMode, got.Frame)
	}
	if !got.Timeline.Current.Equal(epoch) {
		t.Errorf("date = %v", got.Timeline.Current)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"1712664000000", epoch, true},
		{"2024-04-09T12:00:00Z", epoch, true},
		{"2024-04-09T12:00:00.250Z", epoch.Add(250 * time.Millisecond), true},
		{"2024-04-09", time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"noon", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 8)
	d := NewDebouncer(30*time.Millisecond, func() {
		calls.Add(1)
		done <- struct{}{}
	})
	for i := 0; i < 10; i++ {
		d.Trigger()
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if d.Pending() {
		t.Error("still pending after firing")
	}
}

func TestDebouncerStopAndFlush(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func() { calls.Add(1) })

	d.Trigger()
	if !d.Stop() {
		t.Error("Stop found nothing pending")
	}
	if d.Flush() {
		t.Error("Flush ran a stopped call")
	}
	d.Trigger()
	if !d.Flush() {
		t.Error("Flush found nothing pending")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestURLSyncLoadOnce(t *testing.T) {
	s := newStore()
	var writes atomic.Int32
	u := NewURLSync(s, time.Hour, func(string) { writes.Add(1) }, discard)
	defer u.Close()

	if !u.Load("?zoom=8.00&color=velocity&selected=25544") {
		t.Fatal("first Load did not load")
	}
	if u.Load("zoom=2.00") {
		t.Error("second Load loaded")
	}
	st := s.Snapshot()
	if st.Camera.Zoom != 8 || st.ColorMode != pipeline.ColorByVelocity || st.Selected != "25544" {
		t.Errorf("loaded state = %+v", st)
	}
	if u.Query() != "zoom=8.00&color=velocity&selected=25544" {
		t.Errorf("Query = %q", u.Query())
	}
	u.Flush()
	if n := writes.Load(); n != 0 {
		t.Errorf("Load wrote %d times", n)
	}
}

func TestURLSyncCoalescesWrites(t *testing.T) {
	s := newStore()
	written := make(chan string, 8)
	u := NewURLSync(s, 30*time.Millisecond, func(q string) { written <- q }, discard)
	defer u.Close()
	u.Load("")

	for _, z := range []float64{5, 6, 7} {
		s.SetCamera(CameraPatch{Zoom: ptr(z)})
	}
	s.Select("25544")

	select {
	case q := <-written:
		if q != "zoom=7.00&selected=25544" {
			t.Errorf("written = %q", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no write")
	}
	time.Sleep(100 * time.Millisecond)
	if n := len(written); n != 0 {
		t.Errorf("%d extra writes", n)
	}
}

func TestURLSyncIgnoresClockAndFilters(t *testing.T) {
	s := newStore()
	var writes atomic.Int32
	u := NewURLSync(s, time.Hour, func(string) { writes.Add(1) }, discard)
	defer u.Close()
	u.Load("")

	s.SetFilters(FiltersPatch{ActiveOnly: ptr(true)})
	s.Advance(time.Second)
	u.Flush()
	if n := writes.Load(); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}

	s.SetFrame(transform.Fixed)
	u.Flush()
	if n := writes.Load(); n != 1 || u.Query() != "ecf=1" {
		t.Errorf("writes = %d, query %q", n, u.Query())
	}
}
