package geometry

import (
	"context"
	"sync"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

// chunkSize is the number of times handed to a worker per job.
const chunkSize = 256

type pointingJob struct {
	lo, hi int
}

type pointingResult struct {
	lo  int
	out []transform.RADec
	err error
}

// PointingParallel computes Pointing over a bounded worker pool. Results are
// identical to Pointing. On failure the error of the earliest failing chunk
// seen before cancellation is returned.
// workers <= 0 uses the service default.
func (s *Service) PointingParallel(ctx context.Context, times []float64, dir [3]float64, workers int) ([]transform.RADec, error) {
	v, err := unitVector(dir)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return []transform.RADec{}, nil
	}
	if workers <= 0 {
		workers = s.workers
	}

	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan pointingJob, workers*2)
	results := make(chan pointingResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := pointingResult{lo: job.lo, out: make([]transform.RADec, job.hi-job.lo)}
				for k, t := range times[job.lo:job.hi] {
					d, err := s.pointingAt(t, v)
					if err != nil {
						res.err = err
						break
					}
					res.out[k] = d
				}
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for lo := 0; lo < len(times); lo += chunkSize {
			job := pointingJob{lo: lo, hi: min(lo+chunkSize, len(times))}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]transform.RADec, len(times))
	var firstErr error
	firstErrAt := len(times)
	for res := range results {
		if res.err != nil {
			if res.lo < firstErrAt {
				firstErr, firstErrAt = res.err, res.lo
			}
			cancel()
			continue
		}
		copy(out[res.lo:], res.out)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	metrics.ObservePointingBatch(duration)
	s.logger.Debug("parallel pointing complete",
		"samples", len(times),
		"workers", workers,
		"duration_ms", duration.Milliseconds(),
	)
	return out, nil
}
