package field

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geomag/geomagd/internal/geodesy"
	"github.com/geomag/geomagd/internal/metrics"
)

// gridJob is a unit of work for the worker pool.
type gridJob struct {
	index int
	pos   geodesy.Position
}

// gridResult is the output of a single point evaluation.
type gridResult struct {
	index  int
	vector Vector
	err    error
}

// GridPoint is one evaluated grid position.
type GridPoint struct {
	Position geodesy.Position
	Vector   Vector
}

// WorkerPool manages a fixed number of goroutines for parallel grid
// evaluations. A single evaluation is microseconds of arithmetic, so the
// pool only pays off for bulk queries.
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

// EvaluateGrid evaluates the field at every position for a single instant.
// Results preserve input order; failed points are logged and skipped.
// Returns the evaluated points and the success and error counts.
func (wp *WorkerPool) EvaluateGrid(ctx context.Context, ev *Evaluator, t time.Time, positions []geodesy.Position) ([]GridPoint, int, int) {
	if len(positions) == 0 {
		return nil, 0, 0
	}

	start := time.Now()
	jobs := make(chan gridJob, wp.workers*2)
	results := make(chan gridResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				v, err := ev.Field(t, job.pos)
				select {
				case results <- gridResult{index: job.index, vector: v, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, pos := range positions {
			select {
			case jobs <- gridJob{index: i, pos: pos}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*gridResult, len(positions))
	var successCount, errorCount int
	for res := range results {
		res := res
		if res.err != nil {
			errorCount++
			wp.logger.Warn("grid point evaluation failed",
				"index", res.index,
				"error", res.err,
			)
			continue
		}
		successCount++
		ordered[res.index] = &res
	}

	points := make([]GridPoint, 0, successCount)
	for i, res := range ordered {
		if res == nil {
			continue
		}
		points = append(points, GridPoint{Position: positions[i], Vector: res.vector})
	}

	metrics.RecordGrid(time.Since(start), successCount, errorCount)
	return points, successCount, errorCount
}
