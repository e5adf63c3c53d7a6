package api

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/walkertrack/internal/auth"
	"github.com/star/walkertrack/internal/cache"
	"github.com/star/walkertrack/internal/health"
	"github.com/star/walkertrack/internal/links"
	"github.com/star/walkertrack/internal/metrics"
	"github.com/star/walkertrack/internal/station"
	"github.com/star/walkertrack/internal/stream"
	"github.com/star/walkertrack/internal/tracking"
)

// Deps are the components the API serves from.
type Deps struct {
	Tracker  *tracking.Tracker
	Cache    *cache.SnapshotCache
	Stations *station.Store
	Source   *station.Source // nil when the built-in registry is used
	Stream   *stream.Handler
	Links    links.Config

	// PassWorkers bounds the goroutines of one pass prediction request.
	PassWorkers int
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	mux := http.NewServeMux()
	prop := deps.Tracker.Propagator()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Cache.Warm))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/constellation", constellationHandler(prop.Catalogue()))
	mux.HandleFunc("GET /api/v1/positions", positionsHandler(logger, prop))
	mux.HandleFunc("GET /api/v1/keyframes", keyframesHandler(logger, prop))
	mux.HandleFunc("GET /api/v1/snapshot", snapshotHandler(logger, deps.Tracker, deps.Cache, deps.Stations))
	mux.HandleFunc("GET /api/v1/passes", passesHandler(logger, prop.Catalogue(), deps.Stations, deps.Cache.Config().Policy, deps.PassWorkers))
	mux.HandleFunc("GET /api/v1/links", linksHandler(logger, prop, deps.Links))

	mux.HandleFunc("GET /api/v1/stations", stationsHandler(deps.Stations))
	mux.HandleFunc("POST /api/v1/stations/reload", reloadHandler(logger, deps.Stations, deps.Source))

	mux.HandleFunc("GET /api/v1/cache/snapshots/latest", cacheLatestHandler(deps.Cache))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(deps.Cache))

	mux.HandleFunc("GET /api/v1/stream/snapshots", deps.Stream.HandleSnapshots)
	mux.HandleFunc("GET /api/v1/ws/snapshots", deps.Stream.HandleWebSocket)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Streams clear their own write deadline.
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
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

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(sr.ResponseWriter).Hijack()
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
