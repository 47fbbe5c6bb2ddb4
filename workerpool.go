package shmdag

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// WorkerPool runs a set of Executors against the same payload
// concurrently, bounded to at most workers running at once. All
// executors see the identical payload (fan-out, not a pipeline);
// once every executor has finished, all of their errors are returned
// together, combined with errors.Join.
type WorkerPool struct {
	name      string
	executors []Executor
	sem       chan struct{}
	timeout   time.Duration
	clock     clockz.Clock

	mu sync.RWMutex
}

// NewWorkerPool builds a WorkerPool with the given worker slot count.
func NewWorkerPool(name string, workers int, executors ...Executor) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		name:      name,
		executors: append([]Executor(nil), executors...),
		sem:       make(chan struct{}, workers),
		clock:     clockz.RealClock,
	}
}

// WithTimeout sets a per-executor deadline; zero means no deadline.
func (w *WorkerPool) WithTimeout(timeout time.Duration) *WorkerPool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = timeout
	return w
}

// WithClock overrides the clock used to derive per-executor deadlines.
func (w *WorkerPool) WithClock(clock clockz.Clock) *WorkerPool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock = clock
	return w
}

// WorkerCount returns the pool's worker slot capacity.
func (w *WorkerPool) WorkerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cap(w.sem)
}

// ActiveWorkers returns the number of slots currently in use.
func (w *WorkerPool) ActiveWorkers() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.sem)
}

// Execute implements Executor.
func (w *WorkerPool) Execute(ctx context.Context, payload string) error {
	w.mu.RLock()
	executors := append([]Executor(nil), w.executors...)
	timeout := w.timeout
	clock := w.clock
	w.mu.RUnlock()

	if len(executors) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(executors))

	for _, ex := range executors {
		wg.Add(1)
		go func(ex Executor) {
			defer wg.Done()

			workerCount := cap(w.sem)
			if len(w.sem) >= workerCount {
				capitan.Warn(ctx, SignalWorkerPoolSaturated,
					FieldName.Field(w.name), FieldWorkerCount.Field(workerCount), FieldActiveWorkers.Field(len(w.sem)))
			}

			select {
			case w.sem <- struct{}{}:
				capitan.Info(ctx, SignalWorkerPoolAcquired,
					FieldName.Field(w.name), FieldWorkerCount.Field(workerCount), FieldActiveWorkers.Field(len(w.sem)))
				defer func() {
					<-w.sem
					capitan.Info(ctx, SignalWorkerPoolReleased,
						FieldName.Field(w.name), FieldWorkerCount.Field(workerCount), FieldActiveWorkers.Field(len(w.sem)))
				}()
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}

			taskCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = clock.WithTimeout(taskCtx, timeout)
				defer cancel()
			}

			if taskErr := ex.Execute(taskCtx, payload); taskErr != nil {
				errCh <- taskErr
			}
		}(ex)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
