// Package stream pushes cached tracking snapshots to clients over
// Server-Sent Events (GET /api/v1/stream/snapshots) or a WebSocket
// (GET /api/v1/ws/snapshots).
//
// SSE message format:
//
//	id: 1770350400\n
//	event: snapshot\n
//	data: {"type":"snapshot","t":"2026-02-06T04:00:00Z","stations":{"Equator":[...]}}\n\n
//
// First message is always metadata and carries no id:
//
//	event: metadata\n
//	data: {"type":"metadata","station_source":"builtin","stations":["Equator"],...}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// timeout; WebSocket streams use ping frames instead. Reconnecting clients
// receive a fresh metadata message on each connection.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/star/walkertrack/internal/cache"
	"github.com/star/walkertrack/internal/httputil"
	"github.com/star/walkertrack/internal/metrics"
	"github.com/star/walkertrack/internal/station"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	BandwidthLimit     int           // Bytes per second per stream (default: 1048576).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For.

	// AllowedOrigins lists the browser origins (scheme://host[:port]) that may
	// open a WebSocket. Same-origin requests and clients that send no Origin
	// are always accepted; "*" accepts any origin.
	AllowedOrigins []string
}

// Handler manages streaming connections.
type Handler struct {
	cache    *cache.SnapshotCache
	store    *station.Store
	config   Config
	limiter  *streamLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// checkOrigin returns the WebSocket origin policy for an allowlist.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// NewHandler creates a new streaming handler.
func NewHandler(snapCache *cache.SnapshotCache, store *station.Store, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		cache:   snapCache,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     checkOrigin(config.AllowedOrigins),
		},
		logger: logger,
	}
}

// frame is one stream message. event matches the JSON "type" field; id is
// the snapshot's Unix time and is empty for metadata.
type frame struct {
	event string
	id    string
	data  []byte
}

// sender writes stream messages over one transport.
type sender interface {
	send(ctx context.Context, f frame) error
	keepalive(ctx context.Context) error
}

// parseParams reads step, station and drop_failed from the query string.
// step defaults to the cache step.
func (h *Handler) parseParams(r *http.Request) (streamParams, error) {
	q := r.URL.Query()
	p := streamParams{step: h.cache.Config().Step}

	if v := q.Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			return p, fmt.Errorf("invalid step parameter, must be 1-60")
		}
		p.step = time.Duration(n) * time.Second
	}
	if p.step <= 0 {
		p.step = 5 * time.Second
	}

	if v := q.Get("station"); v != "" {
		reg := h.store.Get()
		if reg == nil {
			return p, fmt.Errorf("no stations loaded")
		}
		if _, ok := reg.Lookup(v); !ok {
			return p, fmt.Errorf("unknown station %q", v)
		}
		p.station = v
	}

	if v := q.Get("drop_failed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid drop_failed parameter, must be a boolean")
		}
		p.dropFailed = b
	}
	return p, nil
}

// admit parses the query and takes a connection slot. On failure it has
// already written the error response.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request) (streamParams, string, bool) {
	p, err := h.parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return p, "", false
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return p, "", false
	}
	return p, ip, true
}

// track records connection metrics and returns the matching cleanup.
func (h *Handler) track(r *http.Request, transport, ip string, p streamParams) func() {
	metrics.IncStreamConnections(transport, "connect")
	metrics.IncStreamsActive(transport)

	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", transport,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step_seconds", p.step.Seconds(),
		"station", p.station,
	)

	return func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections(transport, "disconnect")
		metrics.DecStreamsActive(transport)
		h.logger.Info("stream disconnected",
			"transport", transport,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}
}

// HandleSnapshots serves the SSE snapshot stream.
// GET /api/v1/stream/snapshots?step=5&station=Equator&drop_failed=true
func (h *Handler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	p, ip, ok := h.admit(w, r)
	if !ok {
		return
	}
	defer h.track(r, "sse", ip, p)()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &sseClient{
		w:       w,
		flusher: flusher,
		rc:      rc,
		bw:      newBandwidth(h.config.BandwidthLimit),
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) so a server restart does not cause a
	// reconnection storm.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	h.serve(r.Context(), c, p, ip)
}

// serve writes the metadata message and then one snapshot per step until
// ctx ends or a write fails.
func (h *Handler) serve(ctx context.Context, s sender, p streamParams, ip string) {
	if reg := h.store.Get(); reg != nil {
		names := make([]string, 0, len(reg.Stations))
		for _, st := range reg.Stations {
			if p.station == "" || st.Name == p.station {
				names = append(names, st.Name)
			}
		}
		meta := metadataMessage{
			Type:             "metadata",
			StationSource:    reg.Source,
			StationsLoadedAt: reg.LoadedAt.UTC().Format(time.RFC3339),
			Stations:         names,
			Policy:           h.cache.Config().Policy,
			StepSeconds:      int(p.step.Seconds()),
		}
		data, err := json.Marshal(meta)
		if err == nil {
			err = s.send(ctx, frame{event: meta.Type, data: data})
		}
		if err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	ticker := time.NewTicker(p.step)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case t := <-ticker.C:
			snap := h.cache.Get(t)
			if snap == nil {
				metrics.IncStreamErrors("cache_miss")
				h.logger.Debug("stream cache miss",
					"timestamp", h.cache.RoundToStep(t).Format(time.RFC3339),
					"remote_ip", ip,
				)
				continue
			}

			msg := buildSnapshotMessage(snap, p)
			data, err := json.Marshal(msg)
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			id := strconv.FormatInt(snap.Timestamp.Unix(), 10)
			if err := s.send(ctx, frame{event: msg.Type, id: id, data: data}); err != nil {
				if ctx.Err() == nil {
					metrics.IncStreamErrors("send_error")
					h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				}
				return
			}

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := s.keepalive(ctx); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
