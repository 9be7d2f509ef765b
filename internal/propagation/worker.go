package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/kepler"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	index      int
	body       elements.Body
	targetTime time.Time
}

// WorkerPool fans the bodies of one date out over a fixed number of goroutines.
type WorkerPool struct {
	workers int
	calc    *kepler.Calculator
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, calc *kepler.Calculator, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		calc:    calc,
		logger:  logger,
	}
}

// PropagateBatch propagates every body to the target time.
// Positions are returned in body order. A body with invalid elements gets a
// NaN position and is counted in invalid; it never stops the other bodies.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, bodies []elements.Body, targetTime time.Time) ([]kepler.Position, int, error) {
	if len(bodies) == 0 {
		return nil, 0, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	positions := make([]kepler.Position, len(bodies))

	if wp.workers == 1 || len(bodies) == 1 {
		for i, b := range bodies {
			positions[i] = wp.calc.Position(b.Elements, targetTime)
		}
		return positions, countInvalid(positions), nil
	}

	jobs := make(chan propagateJob, wp.workers*2)

	// Each worker writes only its own job's index, so no lock is needed.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				positions[job.index] = wp.calc.Position(job.body.Elements, job.targetTime)
			}
		}()
	}

	var cancelled error
feed:
	for i, b := range bodies {
		select {
		case jobs <- propagateJob{index: i, body: b, targetTime: targetTime}:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, 0, cancelled
	}
	return positions, countInvalid(positions), nil
}

func countInvalid(positions []kepler.Position) int {
	var n int
	for _, p := range positions {
		if !p.Valid() {
			n++
		}
	}
	return n
}
