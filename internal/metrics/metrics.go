package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitview_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbitview_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// CatalogRecords is the number of records in the published catalog.
	CatalogRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbitview_catalog_records",
		Help: "Records in the currently published catalog.",
	})

	// CatalogVersion is the version number of the published catalog.
	CatalogVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbitview_catalog_version",
		Help: "Version of the currently published catalog.",
	})

	// CatalogSkipped counts element sets dropped during parsing.
	CatalogSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitview_catalog_skipped_total",
		Help: "Malformed or undecodable catalog entries skipped while parsing.",
	})

	// PropagationFailures counts (record, instant) pairs that failed to propagate.
	PropagationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitview_propagation_failures_total",
		Help: "Propagations rejected as diverged, decayed or implausible.",
	})

	// DecodeCache counts element-set decode memo lookups by result (hit, miss).
	DecodeCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbitview_decode_cache_total",
		Help: "Element-set decode memo lookups.",
	}, []string{"result"})

	// TickDuration observes the wall time of one pipeline run.
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbitview_tick_duration_seconds",
		Help:    "Duration of one visualization pipeline run.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// Instances is the number of instances published by the last tick.
	Instances = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbitview_instances",
		Help: "Instances published by the most recent tick.",
	})

	// Truncated counts candidates dropped by the instance cap.
	Truncated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitview_instances_truncated_total",
		Help: "Filtered candidates dropped because they exceeded the instance cap.",
	})

	// URLWrites counts debounced view-state writes.
	URLWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitview_url_writes_total",
		Help: "Coalesced view-state query writes.",
	})

	// StreamClients is the number of connected frame stream clients.
	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbitview_stream_clients",
		Help: "Connected frame stream clients.",
	})

	// StreamFrames counts frames sent to stream clients.
	StreamFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitview_stream_frames_total",
		Help: "Frames sent over the frame stream.",
	})

	// StreamBytes counts bytes written to stream clients.
	StreamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitview_stream_bytes_total",
		Help: "Bytes written over the frame stream.",
	})

	// StreamErrors counts stream failures by reason.
	StreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbitview_stream_errors_total",
		Help: "Frame stream errors by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		CatalogRecords,
		CatalogVersion,
		CatalogSkipped,
		PropagationFailures,
		DecodeCache,
		TickDuration,
		Instances,
		Truncated,
		URLWrites,
		StreamClients,
		StreamFrames,
		StreamBytes,
		StreamErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

var knownRoutes = map[string]bool{
	"/":                             true,
	"/healthz":                      true,
	"/readyz":                       true,
	"/metrics":                      true,
	"/api/v1/frame":                 true,
	"/api/v1/pick":                  true,
	"/api/v1/state":                 true,
	"/api/v1/legend":                true,
	"/api/v1/catalog/search":        true,
	"/api/v1/catalog/metadata":      true,
	"/api/v1/selection/orbit":       true,
	"/api/v1/selection/groundtrack": true,
	"/api/v1/selection/trail":       true,
	"/api/v1/selection/details":     true,
	"/api/v1/stream/frames":         true,
}

// normalizeRoute maps a request path to a bounded label set. Per-object routes
// collapse to a template and anything unknown becomes "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/objects/"); ok && rest != "" {
		if _, err := strconv.Atoi(rest); err == nil {
			return "/api/v1/objects/{id}"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so streaming handlers keep working.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
