package tracking

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/walkertrack/internal/metrics"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/transform"
)

// Tracker computes snapshots with the propagation worker pool and fans the
// per-station look angle work out over goroutines. Output is identical to
// Compute for the same inputs.
type Tracker struct {
	prop    *propagation.Propagator
	workers int
	logger  *slog.Logger
}

// NewTracker creates a tracker over a validated propagator.
func NewTracker(prop *propagation.Propagator, logger *slog.Logger) *Tracker {
	workers := prop.Config().Workers
	if workers < 1 {
		workers = 1
	}
	return &Tracker{prop: prop, workers: workers, logger: logger}
}

// Propagator returns the underlying propagator.
func (t *Tracker) Propagator() *propagation.Propagator {
	return t.prop
}

// Snapshot computes the tracking snapshot at timestamp. Cancelling ctx
// discards the in-flight computation.
func (t *Tracker) Snapshot(ctx context.Context, stations []transform.GroundStation, timestamp time.Time, policy Policy) (*Snapshot, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateStations(stations); err != nil {
		return nil, err
	}

	start := time.Now()
	kf, err := t.prop.PropagateToTime(ctx, timestamp)
	if err != nil {
		return nil, err
	}

	lists := make([][]Entry, len(stations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, st := range stations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lists[i] = stationEntries(transform.NewObserver(st), kf.Satellites, kf.Failures, policy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := newSnapshot(timestamp, policy, kf.Satellites, len(stations))
	for i, st := range stations {
		snap.Stations[st.Name] = lists[i]
	}

	var visible, hidden, failed int
	for _, c := range snap.Counts() {
		visible += c.Visible
		hidden += c.Hidden
		failed += c.Failed
	}
	duration := time.Since(start)
	metrics.RecordSnapshot(duration, visible, hidden, failed)

	if failed > 0 {
		t.logger.Warn("snapshot has failed pairs",
			"timestamp", timestamp.UTC().Format(time.RFC3339),
			"failed", failed,
		)
	}
	t.logger.Debug("snapshot computed",
		"timestamp", timestamp.UTC().Format(time.RFC3339),
		"stations", len(stations),
		"satellites", len(kf.Satellites)+len(kf.Failures),
		"visible", visible,
		"duration_ms", duration.Milliseconds(),
	)

	return snap, nil
}
