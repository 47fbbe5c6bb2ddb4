package shmdag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestBackoff(t *testing.T) {
	t.Run("Success On First Try", func(t *testing.T) {
		calls := 0
		ex := Apply("work", func(_ context.Context, _ string) error {
			calls++
			return nil
		})

		backoff := NewBackoff("test-backoff", ex, 3, 10*time.Millisecond)
		defer backoff.Close()

		if err := backoff.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("Doubles Delay With Fake Clock", func(t *testing.T) {
		var calls int32
		ex := Apply("work", func(_ context.Context, _ string) error {
			atomic.AddInt32(&calls, 1)
			if atomic.LoadInt32(&calls) < 3 {
				return errors.New("temporary")
			}
			return nil
		})

		clock := clockz.NewFakeClock()
		backoff := NewBackoff("test-backoff", ex, 3, 50*time.Millisecond).WithClock(clock)
		defer backoff.Close()

		done := make(chan error, 1)
		go func() {
			done <- backoff.Execute(context.Background(), "node-1")
		}()

		time.Sleep(10 * time.Millisecond)
		clock.Advance(50 * time.Millisecond)
		clock.BlockUntilReady()
		time.Sleep(10 * time.Millisecond)

		clock.Advance(100 * time.Millisecond)
		clock.BlockUntilReady()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("test timed out")
		}

		if atomic.LoadInt32(&calls) != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Exhausts Attempts", func(t *testing.T) {
		calls := 0
		ex := Apply("work", func(_ context.Context, _ string) error {
			calls++
			return errors.New("persistent")
		})

		backoff := NewBackoff("test-backoff", ex, 2, time.Millisecond)
		defer backoff.Close()

		if err := backoff.Execute(context.Background(), "node-1"); err == nil {
			t.Fatal("expected error after exhausting attempts")
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("Context Cancellation During Delay", func(t *testing.T) {
		calls := 0
		ex := Apply("work", func(_ context.Context, _ string) error {
			calls++
			return errors.New("fail")
		})

		backoff := NewBackoff("test-backoff", ex, 3, 100*time.Millisecond)
		defer backoff.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := backoff.Execute(ctx, "node-1")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call before cancellation, got %d", calls)
		}
	})

	t.Run("MaxAttempts Clamped To One", func(t *testing.T) {
		ex := Apply("work", func(_ context.Context, _ string) error { return nil })
		backoff := NewBackoff("test-backoff", ex, -5, time.Millisecond)
		defer backoff.Close()
		if err := backoff.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
