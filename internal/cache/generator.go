package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/star/walkertrack/internal/metrics"
	"github.com/star/walkertrack/internal/station"
	"github.com/star/walkertrack/internal/tracking"
)

// Start begins the background cache maintenance loop. It performs an initial
// warmup (filling the full [now, now+horizon] window), then on every step:
//   - generates the snapshot at the leading edge
//   - evicts expired entries from the trailing edge
//   - rebuilds the window when the station registry changes
//
// Blocks until ctx is cancelled.
func (c *SnapshotCache) Start(ctx context.Context) {
	if !c.waitForStations(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := time.NewTicker(c.config.Step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache generator stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForStations blocks until a station registry is available in the store,
// checking every second. Returns false if ctx is cancelled.
func (c *SnapshotCache) waitForStations(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("cache waiting for station registry")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("station registry available, starting cache warmup")
				return true
			}
		}
	}
}

// generate computes the snapshot at t for the given registry.
func (c *SnapshotCache) generate(ctx context.Context, reg *station.Registry, t time.Time) (*tracking.Snapshot, error) {
	s, err := c.tracker.Snapshot(ctx, reg.Stations, t, c.config.Policy)
	if err != nil {
		return nil, fmt.Errorf("snapshot at %s: %w", t.UTC().Format(time.RFC3339), err)
	}
	return s, nil
}

// buildWindow generates every snapshot of [now, now+horizon] for reg.
// It stops early, returning what it has, when ctx is cancelled.
func (c *SnapshotCache) buildWindow(ctx context.Context, reg *station.Registry, phase string) (map[time.Time]*Entry, error) {
	now := c.RoundToStep(time.Now())
	numFrames := int(c.config.Horizon/c.config.Step) + 1
	out := make(map[time.Time]*Entry, numFrames)

	for i := 0; i < numFrames; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		target := now.Add(time.Duration(i) * c.config.Step)
		s, err := c.generate(ctx, reg, target)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.logger.Warn(phase+" generation failed", "error", err)
			metrics.IncCacheRegenerationErrors()
			continue
		}
		out[c.RoundToStep(s.Timestamp)] = &Entry{Snapshot: s, GeneratedAt: time.Now()}
	}
	return out, nil
}

// warmup fills the cache with snapshots for [now, now+horizon].
func (c *SnapshotCache) warmup(ctx context.Context) {
	reg := c.store.Get()
	if reg == nil {
		return
	}
	c.currentLoadedAt = reg.LoadedAt

	c.logger.Info("cache warmup starting",
		"frames", int(c.config.Horizon/c.config.Step)+1,
		"stations", len(reg.Stations),
	)

	start := time.Now()
	entries, err := c.buildWindow(ctx, reg, "warmup")
	if err != nil {
		return
	}

	c.mu.Lock()
	for k, e := range entries {
		c.entries[k] = e
	}
	c.mu.Unlock()
	c.updateMetrics()
	c.publishVisible()
	c.warm.Store(true)

	c.logger.Info("cache warmup complete",
		"generated", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *SnapshotCache) tick(ctx context.Context) {
	if c.stationsChanged() {
		c.performCutover(ctx)
		return
	}

	c.generateLeadingEdge(ctx)
	c.evictExpired()
	c.publishVisible()
}

// generateLeadingEdge generates the snapshot at the leading edge of the window.
func (c *SnapshotCache) generateLeadingEdge(ctx context.Context) {
	target := c.RoundToStep(time.Now().Add(c.config.Horizon))
	if c.has(target) {
		return
	}
	reg := c.store.Get()
	if reg == nil {
		return
	}

	start := time.Now()
	s, err := c.generate(ctx, reg, target)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("leading edge generation failed", "error", err)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.put(s)
	metrics.ObserveCacheRegenerationDuration(duration)

	c.logger.Debug("leading edge generated",
		"timestamp", target.Format(time.RFC3339),
		"duration_ms", duration.Milliseconds(),
	)
}
