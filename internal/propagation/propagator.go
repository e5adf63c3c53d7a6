package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/metrics"
)

// Propagator orchestrates keyframe generation for one constellation.
type Propagator struct {
	catalogue *Catalogue
	pool      *WorkerPool
	config    PropConfig
	logger    *slog.Logger
}

// NewPropagator validates the constellation and pre-generates its epoch
// elements. A configuration error is returned as-is.
func NewPropagator(cfg constellation.Config, config PropConfig, logger *slog.Logger) (*Propagator, error) {
	cat, err := NewCatalogue(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("constellation catalogue built",
		"satellites", len(cat.Satellites),
		"planes", cfg.Planes,
		"phasing", cfg.Phasing,
		"altitude_km", cfg.AltitudeKm,
		"inclination_deg", cfg.InclinationDeg,
	)
	return &Propagator{
		catalogue: cat,
		pool:      NewWorkerPool(config.Workers, logger),
		config:    config,
		logger:    logger,
	}, nil
}

// Catalogue returns the constellation catalogue. It must not be modified.
func (p *Propagator) Catalogue() *Catalogue {
	return p.catalogue
}

// Config returns the propagation configuration.
func (p *Propagator) Config() PropConfig {
	return p.config
}

// PropagateToTime generates a single keyframe at the given target time.
// A cancelled context discards the in-flight batch.
func (p *Propagator) PropagateToTime(ctx context.Context, targetTime time.Time) (*Keyframe, error) {
	elapsed := p.catalogue.Config.ElapsedSeconds(targetTime)

	p.logger.Debug("propagating",
		"satellite_count", len(p.catalogue.Satellites),
		"target_time", targetTime.UTC().Format(time.RFC3339),
		"workers", p.pool.workers,
	)

	start := time.Now()
	positions, failures := p.pool.PropagateBatch(ctx, p.catalogue, elapsed)
	duration := time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.RecordPropagation(duration, len(positions), len(failures))

	p.logger.Debug("propagation complete",
		"success", len(positions),
		"errors", len(failures),
		"duration_ms", duration.Milliseconds(),
	)

	return &Keyframe{
		Timestamp:  targetTime,
		Satellites: positions,
		Failures:   failures,
	}, nil
}

// GenerateKeyframes generates keyframes from startTime over the configured horizon
// at the configured step interval.
func (p *Propagator) GenerateKeyframes(ctx context.Context, startTime time.Time) ([]*Keyframe, error) {
	if p.config.Step <= 0 {
		return nil, fmt.Errorf("propagation step must be positive, got %s", p.config.Step)
	}

	numFrames := int(p.config.Horizon/p.config.Step) + 1
	keyframes := make([]*Keyframe, 0, numFrames)

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return keyframes, ctx.Err()
		default:
		}

		targetTime := startTime.Add(time.Duration(i) * p.config.Step)
		kf, err := p.PropagateToTime(ctx, targetTime)
		if err != nil {
			return keyframes, fmt.Errorf("keyframe %d at %s: %w", i, targetTime.Format(time.RFC3339), err)
		}
		keyframes = append(keyframes, kf)
	}

	return keyframes, nil
}
