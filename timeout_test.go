package shmdag

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeout(t *testing.T) {
	t.Run("Completes Within Duration", func(t *testing.T) {
		ex := Apply("work", func(_ context.Context, _ string) error { return nil })
		timeout := NewTimeout("test-timeout", ex, 50*time.Millisecond)
		defer timeout.Close()

		if err := timeout.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Propagates Wrapped Executor Error", func(t *testing.T) {
		ex := Apply("work", func(_ context.Context, _ string) error { return errors.New("boom") })
		timeout := NewTimeout("test-timeout", ex, 50*time.Millisecond)
		defer timeout.Close()

		err := timeout.Execute(context.Background(), "node-1")
		if err == nil || err.Error() != "work: boom" {
			t.Errorf("expected wrapped executor error, got %v", err)
		}
	})

	t.Run("Times Out On Slow Executor", func(t *testing.T) {
		ex := ExecutorFunc(func(ctx context.Context, _ string) error {
			select {
			case <-time.After(time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		timeout := NewTimeout("test-timeout", ex, 10*time.Millisecond)
		defer timeout.Close()

		err := timeout.Execute(context.Background(), "node-1")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})

	t.Run("OnTimeout Hook Fires", func(t *testing.T) {
		fired := false
		ex := ExecutorFunc(func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		})

		timeout := NewTimeout("test-timeout", ex, 10*time.Millisecond)
		defer timeout.Close()
		if err := timeout.OnTimeout(func(_ context.Context, _ TimeoutEvent) error {
			fired = true
			return nil
		}); err != nil {
			t.Fatalf("unexpected error registering hook: %v", err)
		}

		_ = timeout.Execute(context.Background(), "node-1")
		if !fired {
			t.Error("expected timeout hook to fire")
		}
	})
}
