package propagation

import (
	"context"
	"log/slog"
	"sync"
)

// WorkerPool runs independent per-sample jobs on a fixed number of goroutines.
// Jobs are identified by index so callers can write results into a slice slot
// and keep input order regardless of completion order.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// Fewer than one worker means sequential execution on the caller's goroutine.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Run calls fn(i) for every i in [0, n) and waits for all calls to return.
// It stops handing out indices once ctx is done and returns ctx.Err() in that
// case; indices not yet handed out are never run.
func (wp *WorkerPool) Run(ctx context.Context, n int, fn func(i int)) error {
	if err := ctx.Err(); err != nil || n == 0 {
		return err
	}

	if wp.workers <= 1 || n == 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	}

	workers := min(wp.workers, n)
	jobs := make(chan int, workers*2)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

	// Feed indices until done or cancelled.
	for i := range n {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			wp.logger.Debug("worker pool cancelled", "dispatched", i, "total", n)
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return nil
}
