package shmdag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestRateLimiter(t *testing.T) {
	t.Run("Allows Calls Within Burst", func(t *testing.T) {
		rl := NewRateLimiter("test-rl", 1, 3)
		for i := 0; i < 3; i++ {
			if err := rl.Execute(context.Background(), "node-1"); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
		}
	})

	t.Run("Drop Mode Fails Fast When Exhausted", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		rl := NewRateLimiter("test-rl", 1, 1).WithClock(clock).SetMode("drop")

		if err := rl.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error on first call: %v", err)
		}
		if err := rl.Execute(context.Background(), "node-1"); err == nil {
			t.Fatal("expected rate limit exceeded error")
		}
	})

	t.Run("Wait Mode Blocks Until Refill", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		rl := NewRateLimiter("test-rl", 10, 1).WithClock(clock)

		if err := rl.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		done := make(chan error, 1)
		go func() {
			done <- rl.Execute(context.Background(), "node-1")
		}()

		time.Sleep(10 * time.Millisecond)
		clock.Advance(200 * time.Millisecond)
		clock.BlockUntilReady()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("test timed out waiting for token refill")
		}
	})

	t.Run("Wait Mode Returns Context Error On Cancellation", func(t *testing.T) {
		rl := NewRateLimiter("test-rl", 0.001, 1)
		_ = rl.Execute(context.Background(), "node-1")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := rl.Execute(ctx, "node-1")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})

	t.Run("AvailableTokens Reflects Refill", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		rl := NewRateLimiter("test-rl", 1, 5).WithClock(clock)

		if rl.AvailableTokens() != 5 {
			t.Errorf("expected 5 tokens initially, got %v", rl.AvailableTokens())
		}
		_ = rl.Execute(context.Background(), "node-1")
		if rl.AvailableTokens() != 4 {
			t.Errorf("expected 4 tokens after one call, got %v", rl.AvailableTokens())
		}
	})
}
