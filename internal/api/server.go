// Package api serves the engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/auth"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/health"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/httputil"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/metrics"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/stream"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	engine     *engine.Engine
	urls       *state.URLSync
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. streams may be nil to disable
// the frame stream.
func NewServer(cfg Config, eng *engine.Engine, urls *state.URLSync, streams *stream.Handler, logger *slog.Logger) *Server {
	s := &Server{engine: eng, urls: urls, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(s.ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/frame", s.handleFrame)
	mux.HandleFunc("POST /api/v1/pick", s.handlePick)
	mux.HandleFunc("GET /api/v1/state", s.handleGetState)
	mux.HandleFunc("POST /api/v1/state", s.handlePostState)
	mux.HandleFunc("GET /api/v1/legend", s.handleLegend)

	mux.HandleFunc("GET /api/v1/catalog/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/catalog/metadata", s.handleMetadata)
	mux.HandleFunc("GET /api/v1/objects/{id}", s.handleObject)

	mux.HandleFunc("GET /api/v1/selection/orbit", s.handleOrbit)
	mux.HandleFunc("GET /api/v1/selection/groundtrack", s.handleGroundTrack)
	mux.HandleFunc("GET /api/v1/selection/trail", s.handleTrail)
	mux.HandleFunc("GET /api/v1/selection/details", s.handleDetails)

	if streams != nil {
		mux.HandleFunc("GET /api/v1/stream/frames", streams.HandleFrames)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) ready() (bool, string) {
	if s.engine.Catalogs().Get() == nil {
		return false, "no catalog loaded"
	}
	if !s.engine.Ready() {
		return false, "no frame rendered"
	}
	return true, ""
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
