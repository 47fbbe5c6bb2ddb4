package shmdag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestCircuitBreaker(t *testing.T) {
	t.Run("Starts Closed And Passes Through", func(t *testing.T) {
		ex := Apply("work", func(_ context.Context, _ string) error { return nil })
		cb := NewCircuitBreaker("test-cb", ex, 3, time.Second)

		if cb.State() != stateClosed {
			t.Errorf("expected initial state closed, got %s", cb.State())
		}
		if err := cb.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Opens After Failure Threshold", func(t *testing.T) {
		ex := Apply("work", func(_ context.Context, _ string) error { return errors.New("fail") })
		cb := NewCircuitBreaker("test-cb", ex, 2, time.Second)

		_ = cb.Execute(context.Background(), "node-1")
		_ = cb.Execute(context.Background(), "node-1")

		if cb.State() != stateOpen {
			t.Errorf("expected state open after threshold, got %s", cb.State())
		}

		err := cb.Execute(context.Background(), "node-1")
		if err == nil || !strings.Contains(err.Error(), "is open") {
			t.Errorf("expected fail-fast open-circuit error, got %v", err)
		}
	})

	t.Run("Half Open After Reset Timeout", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		calls := 0
		ex := Apply("work", func(_ context.Context, _ string) error {
			calls++
			if calls <= 2 {
				return errors.New("fail")
			}
			return nil
		})

		cb := NewCircuitBreaker("test-cb", ex, 2, 100*time.Millisecond).WithClock(clock)

		_ = cb.Execute(context.Background(), "node-1")
		_ = cb.Execute(context.Background(), "node-1")
		if cb.State() != stateOpen {
			t.Fatalf("expected open, got %s", cb.State())
		}

		clock.Advance(200 * time.Millisecond)
		clock.BlockUntilReady()

		if cb.State() != stateHalfOpen {
			t.Errorf("expected half-open after reset timeout, got %s", cb.State())
		}

		if err := cb.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error in half-open trial: %v", err)
		}
		if cb.State() != stateClosed {
			t.Errorf("expected closed after successful half-open trial, got %s", cb.State())
		}
	})

	t.Run("Half Open Failure Reopens", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		ex := Apply("work", func(_ context.Context, _ string) error { return errors.New("fail") })
		cb := NewCircuitBreaker("test-cb", ex, 1, 50*time.Millisecond).WithClock(clock)

		_ = cb.Execute(context.Background(), "node-1")
		if cb.State() != stateOpen {
			t.Fatalf("expected open, got %s", cb.State())
		}

		clock.Advance(100 * time.Millisecond)
		clock.BlockUntilReady()

		_ = cb.Execute(context.Background(), "node-1")
		if cb.State() != stateOpen {
			t.Errorf("expected reopened after half-open failure, got %s", cb.State())
		}
	})

	t.Run("Reset Forces Closed", func(t *testing.T) {
		ex := Apply("work", func(_ context.Context, _ string) error { return errors.New("fail") })
		cb := NewCircuitBreaker("test-cb", ex, 1, time.Second)

		_ = cb.Execute(context.Background(), "node-1")
		if cb.State() != stateOpen {
			t.Fatalf("expected open, got %s", cb.State())
		}

		cb.Reset()
		if cb.State() != stateClosed {
			t.Errorf("expected closed after Reset, got %s", cb.State())
		}
	})

	t.Run("SuccessThreshold Requires Multiple Successes", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		calls := 0
		ex := Apply("work", func(_ context.Context, _ string) error {
			calls++
			if calls == 1 {
				return errors.New("fail")
			}
			return nil
		})

		cb := NewCircuitBreaker("test-cb", ex, 1, 10*time.Millisecond).WithClock(clock).SetSuccessThreshold(2)
		_ = cb.Execute(context.Background(), "node-1")

		clock.Advance(20 * time.Millisecond)
		clock.BlockUntilReady()

		_ = cb.Execute(context.Background(), "node-1")
		if cb.State() != stateHalfOpen {
			t.Errorf("expected still half-open after one success, got %s", cb.State())
		}

		_ = cb.Execute(context.Background(), "node-1")
		if cb.State() != stateClosed {
			t.Errorf("expected closed after second success, got %s", cb.State())
		}
	})

	t.Run("FailureThreshold Clamped To One", func(t *testing.T) {
		ex := Apply("work", func(_ context.Context, _ string) error { return errors.New("fail") })
		cb := NewCircuitBreaker("test-cb", ex, 0, time.Second)
		_ = cb.Execute(context.Background(), "node-1")
		if cb.State() != stateOpen {
			t.Errorf("expected single failure to open circuit when clamped to 1, got %s", cb.State())
		}
	})
}
