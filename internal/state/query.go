package state

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/orderedmap"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// Query parameter names, in the order they are written.
const (
	ParamPitch    = "pitch"
	ParamYaw      = "yaw"
	ParamZoom     = "zoom"
	ParamColor    = "color"
	ParamFixed    = "ecf"
	ParamDate     = "date"
	ParamSelected = "selected"
	ParamQuery    = "q"
)

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

// ParseDate accepts epoch milliseconds or an ISO-8601 timestamp (RFC 3339,
// with or without fractional seconds, or a bare date).
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DecodeQuery reads the view-state parameters from values on top of base.
// Absent or invalid parameters keep the value from base; zoom is clamped.
func DecodeQuery(values url.Values, base State) State {
	st := base
	if v, ok := parseFloat(values.Get(ParamPitch)); ok {
		st.Camera.Pitch = v
	}
	if v, ok := parseFloat(values.Get(ParamYaw)); ok {
		st.Camera.Yaw = v
	}
	if v, ok := parseFloat(values.Get(ParamZoom)); ok {
		st.Camera.Zoom = ClampZoom(v)
	}
	if m, ok := pipeline.ParseColorMode(values.Get(ParamColor)); ok {
		st.ColorMode = m
	}
	if values.Has(ParamFixed) {
		st.Frame = transform.Inertial
		if values.Get(ParamFixed) == "1" {
			st.Frame = transform.Fixed
		}
	}
	if t, ok := ParseDate(values.Get(ParamDate)); ok {
		st.Timeline.Current = t
	}
	if id := strings.TrimSpace(values.Get(ParamSelected)); id != "" {
		st.Selected = id
	}
	if q := values.Get(ParamQuery); q != "" {
		st.Query = q
	}
	return st
}

// fields renders the canonical form of every URL-visible field in write order.
func fields(st State) *orderedmap.OrderedMap {
	m := orderedmap.New()
	m.Set(ParamPitch, strconv.FormatFloat(st.Camera.Pitch, 'f', 3, 64))
	m.Set(ParamYaw, strconv.FormatFloat(st.Camera.Yaw, 'f', 3, 64))
	m.Set(ParamZoom, strconv.FormatFloat(st.Camera.Zoom, 'f', 2, 64))
	m.Set(ParamColor, string(st.ColorMode))
	if st.Frame == transform.Fixed {
		m.Set(ParamFixed, "1")
	} else {
		m.Set(ParamFixed, "0")
	}
	m.Set(ParamDate, strconv.FormatInt(st.Timeline.Current.UnixMilli(), 10))
	m.Set(ParamSelected, st.Selected)
	m.Set(ParamQuery, st.Query)
	return m
}

// EncodeFields returns the parameters that differ from defaults, in write
// order. Fields whose canonical form equals the default's are omitted.
func EncodeFields(st, defaults State) *orderedmap.OrderedMap {
	cur, def := fields(st), fields(defaults)
	out := orderedmap.New()
	for _, k := range cur.Keys() {
		v, _ := cur.Get(k)
		d, _ := def.Get(k)
		if v == d || v == "" {
			continue
		}
		out.Set(k, v)
	}
	return out
}

// EncodeQuery serializes st as a query string in fixed parameter order.
func EncodeQuery(st, defaults State) string {
	m := EncodeFields(st, defaults)
	var b strings.Builder
	for i, k := range m.Keys() {
		v, _ := m.Get(k)
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v.(string)))
	}
	return b.String()
}
