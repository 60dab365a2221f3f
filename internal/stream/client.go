package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/metrics"
)

// client manages a single SSE connection's write operations.
type client struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	rc        *http.ResponseController
	bandwidth *rate.Limiter // nil = unlimited
	ip        string
	logger    *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// throttle blocks until n bytes fit the stream's bandwidth budget. Messages
// larger than the burst are admitted in burst-sized pieces.
func (c *client) throttle(ctx context.Context, n int) error {
	if c.bandwidth == nil {
		return nil
	}
	burst := c.bandwidth.Burst()
	for n > 0 {
		k := min(n, burst)
		if err := c.bandwidth.WaitN(ctx, k); err != nil {
			return fmt.Errorf("bandwidth wait: %w", err)
		}
		n -= k
	}
	return nil
}

// sendJSON marshals v and sends it as one SSE "data:" message.
func (c *client) sendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	msg := make([]byte, 0, len(data)+8)
	msg = append(msg, "data: "...)
	msg = append(msg, data...)
	msg = append(msg, "\n\n"...)

	if err := c.throttle(ctx, len(msg)); err != nil {
		return err
	}

	// Extend the write deadline before each write on the long-lived connection.
	if c.rc != nil {
		if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
			c.logger.Debug("could not set write deadline", "error", err)
		}
	}

	n, err := c.w.Write(msg)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.StreamBytes.Add(float64(n))
	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
func (c *client) sendKeepalive() error {
	if c.rc != nil {
		if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
			c.logger.Debug("could not set write deadline", "error", err)
		}
	}

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.StreamBytes.Add(float64(n))
	return nil
}
