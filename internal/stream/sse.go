// Package stream implements Server-Sent Events (SSE) streaming of rendered
// frames. Clients connect via GET /api/v1/stream/frames and receive the
// engine's front buffer at the interval they ask for.
//
// SSE message format:
//
//	data: {"type":"frame","t":"2024-04-09T12:00:00Z","frame":"inertial","count":2,"ids":[...],"data":[...]}\n\n
//
// data holds count*6 values per instance: position x, y, z in Earth radii,
// then color r, g, b in [0, 1]. ids[i] is the record in slot i for that frame
// only. The first message is always metadata:
//
//	data: {"type":"metadata","catalog_version":3,"stride":6,"frame_time":"..."}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
package stream

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/engine"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/httputil"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/metrics"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
)

// Interval bounds for the interval_ms query parameter.
const (
	DefaultInterval = time.Second
	MinInterval     = 50 * time.Millisecond
	MaxInterval     = 10 * time.Second
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrent      int           // Max concurrent streams overall (default: 1000).
	BandwidthLimit     int           // Bytes per second per stream, 0 = unlimited (default: 1048576).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For.
}

// Source is the frame provider; *engine.Engine satisfies it.
type Source interface {
	Frame(fn func(b *pipeline.Buffer))
	Status() engine.Status
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  Source
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream/frames?interval_ms=1000&ids=1
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	interval := DefaultInterval
	if v := r.URL.Query().Get("interval_ms"); v != "" {
		n, err := strconv.Atoi(v)
		d := time.Duration(n) * time.Millisecond
		if err != nil || d < MinInterval || d > MaxInterval {
			httputil.WriteError(w, http.StatusBadRequest, "invalid interval_ms parameter, must be 50-10000")
			return
		}
		interval = d
	}

	withIDs := true
	switch r.URL.Query().Get("ids") {
	case "", "1", "true":
	case "0", "false":
		withIDs = false
	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid ids parameter, must be 0 or 1")
		return
	}

	// Enforce the concurrent stream limits.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.StreamErrors.WithLabelValues("rate_limit").Inc()
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamClients.Inc()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_ms", interval.Milliseconds(),
	)

	c := &client{
		w:      w,
		ip:     ip,
		logger: h.logger,
	}
	defer func() {
		h.limiter.release(ip)
		metrics.StreamClients.Dec()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	c.flusher = flusher

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	c.rc = http.NewResponseController(w)
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	if h.config.BandwidthLimit > 0 {
		c.bandwidth = rate.NewLimiter(rate.Limit(h.config.BandwidthLimit), h.config.BandwidthLimit)
	}

	// Jittered retry interval (3-7s) against reconnection storms.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	ctx := r.Context()
	st := h.source.Status()
	meta := metadataMessage{
		Type:           "metadata",
		CatalogVersion: st.CatalogVersion,
		Ready:          st.Ready,
		Stride:         pipeline.Stride,
		IntervalMs:     interval.Milliseconds(),
	}
	if !st.FrameTime.IsZero() {
		meta.FrameTime = st.FrameTime.UTC().Format(time.RFC3339Nano)
	}
	if err := c.sendJSON(ctx, meta); err != nil {
		metrics.StreamErrors.WithLabelValues("send_error").Inc()
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			var msg frameMessage
			h.source.Frame(func(b *pipeline.Buffer) {
				msg = buildFrameMessage(b, withIDs)
			})
			if msg.Count == 0 && msg.CatalogVersion == 0 {
				metrics.StreamErrors.WithLabelValues("not_ready").Inc()
				continue
			}
			if err := c.sendJSON(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				metrics.StreamErrors.WithLabelValues("send_error").Inc()
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			metrics.StreamFrames.Inc()
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.StreamErrors.WithLabelValues("send_error").Inc()
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// buildFrameMessage copies b into an SSE payload. b is only valid inside the
// engine's Frame callback, so nothing here may alias it.
func buildFrameMessage(b *pipeline.Buffer, withIDs bool) frameMessage {
	msg := frameMessage{
		Type:           "frame",
		T:              b.Time.UTC().Format(time.RFC3339Nano),
		Frame:          b.Frame.String(),
		CatalogVersion: b.CatalogVersion,
		Count:          b.Count(),
		Data:           append([]float32(nil), b.Data()...),
	}
	if withIDs {
		msg.IDs = b.IDs()
	}
	return msg
}

// SSE message payload types.

type metadataMessage struct {
	Type           string `json:"type"`
	CatalogVersion uint64 `json:"catalog_version"`
	Ready          bool   `json:"ready"`
	Stride         int    `json:"stride"`
	IntervalMs     int64  `json:"interval_ms"`
	FrameTime      string `json:"frame_time,omitempty"`
}

type frameMessage struct {
	Type           string    `json:"type"`
	T              string    `json:"t"`
	Frame          string    `json:"frame"`
	CatalogVersion uint64    `json:"catalog_version"`
	Count          int       `json:"count"`
	IDs            []string  `json:"ids,omitempty"`
	Data           []float32 `json:"data"`
}
