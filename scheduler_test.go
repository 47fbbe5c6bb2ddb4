package shmdag

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arcflow-dev/shmdag/dagtest"
)

// pumpClock advances a dagtest.FakeClock in small steps until stop fires,
// so a scheduler blocked in its jittered poll backoff or the rwlock's
// write-lock spin-wait is released without depending on wall-clock jitter
// actually elapsing.
func pumpClock(clock *dagtest.FakeClock, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			clock.Advance(time.Millisecond)
		}
	}
}

func TestSchedulerRun(t *testing.T) {
	t.Run("Single Worker Runs A Diamond Graph To Completion", func(t *testing.T) {
		prefix := testPrefix(t)
		g := diamond(t)

		executor := dagtest.NewMockExecutor()
		clock := dagtest.NewFakeClock()

		stop := make(chan struct{})
		go pumpClock(clock, stop)
		defer close(stop)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := Run(ctx, prefix, g, executor, WithClock(clock)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if executor.CallCount() != 4 {
			t.Errorf("expected 4 executions, got %d", executor.CallCount())
		}
	})

	t.Run("Executor Failure Is Returned As ExecError", func(t *testing.T) {
		prefix := testPrefix(t)
		g, err := New([]string{"a"}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		boom := errors.New("boom")
		executor := dagtest.NewMockExecutor().WithReturn(boom)

		err = Run(context.Background(), prefix, g, executor)
		var execErr *ExecError
		if !errors.As(err, &execErr) {
			t.Fatalf("expected *ExecError, got %v", err)
		}
		if !errors.Is(execErr, boom) {
			t.Errorf("expected errors.Is to reach the original error through Unwrap, got %v", execErr.Unwrap())
		}
	})

	t.Run("Second Worker Opens The First Worker's Mapping", func(t *testing.T) {
		prefix := testPrefix(t)
		g, err := New([]string{"a", "b"}, []Edge{{Parent: 0, Child: 1}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var total int32
		executor := dagtest.NewMockExecutor().WithFunc(func(string) error {
			atomic.AddInt32(&total, 1)
			return nil
		})
		clock := dagtest.NewFakeClock()

		stop := make(chan struct{})
		go pumpClock(clock, stop)
		defer close(stop)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = Run(ctx, prefix, g, executor, WithClock(clock))
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Errorf("worker %d: unexpected error: %v", i, err)
			}
		}
		if atomic.LoadInt32(&total) != 2 {
			t.Errorf("expected exactly 2 executions across both workers, got %d", total)
		}
	})

	t.Run("Context Cancellation Stops The Loop", func(t *testing.T) {
		prefix := testPrefix(t)
		g, err := New([]string{"a"}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		executor := dagtest.NewMockExecutor().WithDelay(time.Hour)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- Run(ctx, prefix, g, executor) }()

		for executor.CallCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled somewhere in the error chain, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("test timed out waiting for Run to return after cancellation")
		}
	})
}
