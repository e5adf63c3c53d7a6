package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walkertrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walkertrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "walkertrack_propagation_duration_seconds",
			Help:    "Time to propagate the whole constellation to one timestamp.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	propagationSatellitesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walkertrack_propagation_satellites_total",
			Help: "Satellites propagated, by result.",
		},
		[]string{"result"},
	)

	propagationWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "walkertrack_propagation_workers",
			Help: "Size of the propagation worker pool.",
		},
	)

	snapshotDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "walkertrack_snapshot_duration_seconds",
			Help:    "Time to compute one tracking snapshot.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	snapshotPairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walkertrack_snapshot_pairs_total",
			Help: "Station/satellite pairs evaluated, by result.",
		},
		[]string{"result"},
	)

	visibleSatellites = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walkertrack_visible_satellites",
			Help: "Satellites above the visibility mask in the latest cached snapshot, per station.",
		},
		[]string{"station"},
	)

	stationsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "walkertrack_stations_loaded",
			Help: "Number of ground stations in the registry.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "walkertrack_cache_entries",
			Help: "Snapshots currently cached.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "walkertrack_cache_hits_total",
			Help: "Snapshot cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "walkertrack_cache_misses_total",
			Help: "Snapshot cache misses.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "walkertrack_cache_evictions_total",
			Help: "Snapshots evicted from the cache.",
		},
	)

	cacheRegenerationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "walkertrack_cache_regeneration_errors_total",
			Help: "Snapshot generations that failed.",
		},
	)

	cacheRegenerationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "walkertrack_cache_regeneration_duration_seconds",
			Help:    "Duration of leading-edge generation and cutover rebuilds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheGracePeriodActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "walkertrack_cache_grace_period_active",
			Help: "1 while the cache is rebuilding after a station change.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walkertrack_stream_connections_total",
			Help: "Stream connection events.",
		},
		[]string{"transport", "event"},
	)

	streamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walkertrack_streams_active",
			Help: "Open streaming connections.",
		},
		[]string{"transport"},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "walkertrack_stream_messages_total",
			Help: "Messages written to stream clients.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "walkertrack_stream_bytes_total",
			Help: "Bytes written to stream clients.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walkertrack_stream_errors_total",
			Help: "Stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationDurationSeconds,
		propagationSatellitesTotal,
		propagationWorkers,
		snapshotDurationSeconds,
		snapshotPairsTotal,
		visibleSatellites,
		stationsLoaded,
		cacheEntries,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheRegenerationErrorsTotal,
		cacheRegenerationDurationSeconds,
		cacheGracePeriodActive,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the only path label values; anything else is "other".
var knownRoutes = map[string]bool{
	"/":                              true,
	"/healthz":                       true,
	"/readyz":                        true,
	"/metrics":                       true,
	"/api/v1/constellation":          true,
	"/api/v1/positions":              true,
	"/api/v1/keyframes":              true,
	"/api/v1/snapshot":               true,
	"/api/v1/passes":                 true,
	"/api/v1/links":                  true,
	"/api/v1/stations":               true,
	"/api/v1/stations/reload":        true,
	"/api/v1/cache/snapshots/latest": true,
	"/api/v1/cache/stats":            true,
	"/api/v1/stream/snapshots":       true,
	"/api/v1/ws/snapshots":           true,
}

// normalizeRoute bounds the cardinality of the path label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
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

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack lets WebSocket upgrades take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// RecordPropagation records one constellation propagation.
func RecordPropagation(d time.Duration, success, failed int) {
	propagationDurationSeconds.Observe(d.Seconds())
	propagationSatellitesTotal.WithLabelValues("success").Add(float64(success))
	propagationSatellitesTotal.WithLabelValues("error").Add(float64(failed))
}

func SetPropagationWorkers(n int) { propagationWorkers.Set(float64(n)) }

// RecordSnapshot records one tracking snapshot.
func RecordSnapshot(d time.Duration, visible, hidden, failed int) {
	snapshotDurationSeconds.Observe(d.Seconds())
	snapshotPairsTotal.WithLabelValues("visible").Add(float64(visible))
	snapshotPairsTotal.WithLabelValues("hidden").Add(float64(hidden))
	snapshotPairsTotal.WithLabelValues("error").Add(float64(failed))
}

// SetVisibleSatellites replaces the per-station visible counts.
func SetVisibleSatellites(counts map[string]int) {
	visibleSatellites.Reset()
	for station, n := range counts {
		visibleSatellites.WithLabelValues(station).Set(float64(n))
	}
}

func SetStationsLoaded(n int) { stationsLoaded.Set(float64(n)) }

func SetCacheEntries(n int)       { cacheEntries.Set(float64(n)) }
func IncCacheHits()               { cacheHitsTotal.Inc() }
func IncCacheMisses()             { cacheMissesTotal.Inc() }
func AddCacheEvictions(n int)     { cacheEvictionsTotal.Add(float64(n)) }
func IncCacheRegenerationErrors() { cacheRegenerationErrorsTotal.Inc() }

func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenerationDurationSeconds.Observe(d.Seconds())
}

func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGracePeriodActive.Set(1)
		return
	}
	cacheGracePeriodActive.Set(0)
}

func IncStreamConnections(transport, event string) {
	streamConnectionsTotal.WithLabelValues(transport, event).Inc()
}
func IncStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Inc() }
func DecStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Dec() }
func IncStreamMessages()                { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }
