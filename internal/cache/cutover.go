package cache

import (
	"context"
	"time"

	"github.com/star/walkertrack/internal/metrics"
)

// stationsChanged checks if the registry was reloaded since the cache was last built.
func (c *SnapshotCache) stationsChanged() bool {
	reg := c.store.Get()
	if reg == nil {
		return false
	}
	return !reg.LoadedAt.Equal(c.currentLoadedAt)
}

// performCutover rebuilds the whole window for the new station registry.
//
//  1. Set the grace period flag (old entries keep serving reads)
//  2. Build a new entries map
//  3. Swap it in under the write lock
//  4. Clear the grace period flag
func (c *SnapshotCache) performCutover(ctx context.Context) {
	reg := c.store.Get()
	if reg == nil {
		return
	}

	c.logger.Info("station cutover starting",
		"old_loaded_at", c.currentLoadedAt.UTC().Format(time.RFC3339Nano),
		"new_loaded_at", reg.LoadedAt.UTC().Format(time.RFC3339Nano),
		"stations", len(reg.Stations),
	)

	c.inGracePeriod.Store(true)
	metrics.SetCacheGracePeriodActive(true)
	defer func() {
		c.inGracePeriod.Store(false)
		metrics.SetCacheGracePeriodActive(false)
	}()

	start := time.Now()
	entries, err := c.buildWindow(ctx, reg, "cutover")
	if err != nil {
		c.logger.Warn("cutover cancelled by context")
		return
	}

	c.replaceAll(entries)
	c.currentLoadedAt = reg.LoadedAt
	c.publishVisible()

	duration := time.Since(start)
	c.logger.Info("station cutover complete",
		"duration_ms", duration.Milliseconds(),
		"entries_replaced", len(entries),
	)
	metrics.ObserveCacheRegenerationDuration(duration)
}
