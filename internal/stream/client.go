package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/star/walkertrack/internal/metrics"
)

// sseClient manages a single SSE connection's write operations.
type sseClient struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	bw      *bandwidth
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// send writes one SSE event:
//
//	id: 1770349500
//	event: snapshot
//	data: {json}
//
// The id line is omitted for frames without one.
func (c *sseClient) send(ctx context.Context, f frame) error {
	var b strings.Builder
	if f.id != "" {
		fmt.Fprintf(&b, "id: %s\n", f.id)
	}
	fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", f.event, f.data)
	msg := b.String()

	if err := c.bw.wait(ctx, len(msg)); err != nil {
		return fmt.Errorf("bandwidth wait: %w", err)
	}

	// Extend write deadline before each write to prevent timeout on long-lived connections.
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := io.WriteString(c.w, msg)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.flusher.Flush()
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))

	return nil
}

// keepalive sends an SSE comment line: ":\n\n".
func (c *sseClient) keepalive(ctx context.Context) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}

	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))

	return nil
}
