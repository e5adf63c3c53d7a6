package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/star/walkertrack/internal/metrics"
)

const wsWriteWait = 10 * time.Second

// wsClient manages a single WebSocket connection's write operations.
type wsClient struct {
	conn *websocket.Conn
	bw   *bandwidth
}

// send writes the frame's data as one text message. The message type is
// already in the JSON body, so the event name and id are not sent.
func (c *wsClient) send(ctx context.Context, f frame) error {
	data := f.data
	if err := c.bw.wait(ctx, len(data)); err != nil {
		return fmt.Errorf("bandwidth wait: %w", err)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(len(data)))
	return nil
}

// keepalive sends a ping control frame.
func (c *wsClient) keepalive(ctx context.Context) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// HandleWebSocket serves the snapshot stream over a WebSocket. Query
// parameters match HandleSnapshots. Messages from the client are discarded;
// a close frame or read error ends the stream.
// GET /api/v1/ws/snapshots?step=5&station=Equator
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	p, ip, ok := h.admit(w, r)
	if !ok {
		return
	}
	defer h.track(r, "websocket", ip, p)()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		metrics.IncStreamErrors("upgrade_error")
		h.logger.Warn("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: a hijacked connection's close is only observed through reads.
	conn.SetReadLimit(4096)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.serve(ctx, &wsClient{conn: conn, bw: newBandwidth(h.config.BandwidthLimit)}, p, ip)

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}
