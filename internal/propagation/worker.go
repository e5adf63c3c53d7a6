package propagation

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/orbit"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	sat     constellation.Satellite
	epochEl orbit.Elements
	elapsed float64
}

// propagateResult is the output of a single satellite propagation.
type propagateResult struct {
	position SatellitePosition
	err      error
	sat      constellation.Satellite
}

// WorkerPool manages a fixed number of goroutines for parallel propagation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PropagateBatch propagates every catalogue satellite by elapsedSeconds.
// Results are sorted by satellite ID so the output does not depend on
// scheduling. Failed satellites are logged and reported, never dropped silently.
// When ctx is cancelled the partial results are incomplete; callers check ctx.Err().
func (wp *WorkerPool) PropagateBatch(ctx context.Context, cat *Catalogue, elapsedSeconds float64) ([]SatellitePosition, []SatelliteFailure) {
	if len(cat.Satellites) == 0 {
		return nil, nil
	}

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				pos, err := PositionAt(job.sat, job.epochEl, job.elapsed)
				select {
				case results <- propagateResult{position: pos, err: err, sat: job.sat}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, sat := range cat.Satellites {
			job := propagateJob{
				sat:     sat,
				epochEl: cat.Elements[i],
				elapsed: elapsedSeconds,
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]SatellitePosition, 0, len(cat.Satellites))
	var failures []SatelliteFailure

	for result := range results {
		if result.err != nil {
			wp.logger.Warn("propagation failed",
				"satellite", result.sat.Name,
				"error", result.err,
			)
			failures = append(failures, SatelliteFailure{ID: result.sat.ID, Name: result.sat.Name, Err: result.err})
			continue
		}
		positions = append(positions, result.position)
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].ID < positions[j].ID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].ID < failures[j].ID })

	return positions, failures
}
