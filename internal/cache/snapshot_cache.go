// Package cache provides an in-memory snapshot cache with a rolling window.
//
// The cache maintains tracking snapshots for [now, now+horizon] continuously,
// one per step. A background worker generates new snapshots at the leading
// edge and evicts expired entries from the trailing edge. When the station
// registry changes, the cache is rebuilt without interrupting reads.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/star/walkertrack/internal/metrics"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/station"
	"github.com/star/walkertrack/internal/tracking"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Step    time.Duration   // Snapshot interval (default: 5s)
	Horizon time.Duration   // How far ahead to cache (default: 600s)
	Buffer  time.Duration   // Keep entries this long past expiration (default: 60s)
	Policy  tracking.Policy // Masks applied to every cached snapshot
}

// Entry wraps a snapshot with generation metadata.
type Entry struct {
	Snapshot    *tracking.Snapshot
	GeneratedAt time.Time
}

// SnapshotCache is an in-memory cache of snapshots with a rolling window.
// Safe for concurrent use by multiple goroutines.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[time.Time]*Entry

	config  Config
	tracker *tracking.Tracker
	store   *station.Store
	logger  *slog.Logger

	// LoadedAt of the registry the entries were built from. Only the
	// maintenance goroutine touches it.
	currentLoadedAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	inGracePeriod atomic.Bool
	warm          atomic.Bool
}

// NewSnapshotCache creates a new snapshot cache.
func NewSnapshotCache(config Config, tracker *tracking.Tracker, store *station.Store, logger *slog.Logger) *SnapshotCache {
	logger.Info("cache initialized",
		"step_seconds", config.Step.Seconds(),
		"horizon_seconds", config.Horizon.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"visibility_mask_deg", config.Policy.VisibilityMaskDeg,
		"slew_mask_deg", config.Policy.SlewMaskDeg,
	)

	return &SnapshotCache{
		entries: make(map[time.Time]*Entry),
		config:  config,
		tracker: tracker,
		store:   store,
		logger:  logger,
	}
}

// Config returns the cache configuration.
func (c *SnapshotCache) Config() Config {
	return c.config
}

// Warm reports whether the initial warmup has completed.
func (c *SnapshotCache) Warm() bool {
	return c.warm.Load()
}

// RoundToStep rounds a timestamp down to the nearest step boundary so that
// lookups for any instant inside a step hit the same entry.
func (c *SnapshotCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Get returns the snapshot for the given timestamp, or nil if not cached.
// The timestamp is rounded to the step boundary.
func (c *SnapshotCache) Get(t time.Time) *tracking.Snapshot {
	key := c.RoundToStep(t)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry.Snapshot
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// GetRecent returns up to count snapshots before (and including) time t,
// ordered oldest-first.
func (c *SnapshotCache) GetRecent(t time.Time, count int) []*tracking.Snapshot {
	if count <= 0 {
		return nil
	}

	key := c.RoundToStep(t)

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*tracking.Snapshot, 0, count)
	for i := count - 1; i >= 0; i-- {
		ts := key.Add(-time.Duration(i) * c.config.Step)
		if entry, ok := c.entries[ts]; ok {
			result = append(result, entry.Snapshot)
		}
	}
	return result
}

// GetLatest returns the snapshot closest to (but not after) the current time.
func (c *SnapshotCache) GetLatest() *tracking.Snapshot {
	if s := c.latest(); s != nil {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return s
	}
	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// latest walks back from now without touching the hit counters.
func (c *SnapshotCache) latest() *tracking.Snapshot {
	now := c.RoundToStep(time.Now())

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < 10; i++ {
		key := now.Add(-time.Duration(i) * c.config.Step)
		if entry, ok := c.entries[key]; ok {
			return entry.Snapshot
		}
	}
	return nil
}

// put stores a snapshot in the cache. Caller must not hold mu.
func (c *SnapshotCache) put(s *tracking.Snapshot) {
	key := c.RoundToStep(s.Timestamp)
	entry := &Entry{
		Snapshot:    s,
		GeneratedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	c.updateMetrics()
}

func (c *SnapshotCache) has(t time.Time) bool {
	c.mu.RLock()
	_, ok := c.entries[c.RoundToStep(t)]
	c.mu.RUnlock()
	return ok
}

// evictExpired removes entries older than now - buffer.
func (c *SnapshotCache) evictExpired() int {
	cutoff := time.Now().Add(-c.config.Buffer)
	var removed int

	c.mu.Lock()
	for ts := range c.entries {
		if ts.Before(cutoff) {
			delete(c.entries, ts)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}

	return removed
}

// replaceAll atomically replaces all cache entries (used during cutover).
func (c *SnapshotCache) replaceAll(newEntries map[time.Time]*Entry) {
	c.mu.Lock()
	c.entries = newEntries
	c.mu.Unlock()
	c.updateMetrics()
}

// Stats returns current cache statistics.
func (c *SnapshotCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)

	var oldest, newest time.Time
	for ts := range c.entries {
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
	}
	c.mu.RUnlock()

	return Stats{
		Entries:         count,
		SizeBytes:       c.estimateSizeBytes(),
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		InGracePeriod:   c.inGracePeriod.Load(),
		Warm:            c.warm.Load(),
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries         int
	SizeBytes       int64
	OldestTimestamp time.Time
	NewestTimestamp time.Time
	Hits            int64
	Misses          int64
	Evictions       int64
	InGracePeriod   bool
	Warm            bool
}

// estimateSizeBytes returns a rough estimate of the cache memory footprint.
func (c *SnapshotCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entrySize := int64(unsafe.Sizeof(tracking.Entry{}))
	posSize := int64(unsafe.Sizeof(propagation.SatellitePosition{}))

	var total int64
	for _, e := range c.entries {
		if e.Snapshot == nil {
			continue
		}
		for name, entries := range e.Snapshot.Stations {
			total += int64(len(name)) + int64(len(entries))*entrySize
		}
		total += int64(len(e.Snapshot.Satellites)) * posSize
		// Snapshot header, map header and the Entry wrapper.
		total += 128
	}
	return total
}

// updateMetrics publishes the current cache size to Prometheus.
func (c *SnapshotCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
}

// publishVisible exports the per-station visible counts of the latest snapshot.
func (c *SnapshotCache) publishVisible() {
	s := c.latest()
	if s == nil {
		return
	}
	counts := make(map[string]int, len(s.Stations))
	for name, n := range s.Counts() {
		counts[name] = n.Visible
	}
	metrics.SetVisibleSatellites(counts)
}
