package shmdag

import (
	"context"
	"errors"
	"testing"
)

func TestExecutorFunc(t *testing.T) {
	t.Run("Adapts A Plain Function", func(t *testing.T) {
		var seen string
		var e Executor = ExecutorFunc(func(_ context.Context, payload string) error {
			seen = payload
			return nil
		})
		if err := e.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen != "node-1" {
			t.Errorf("expected payload 'node-1', got %q", seen)
		}
	})

	t.Run("Propagates The Wrapped Function's Error", func(t *testing.T) {
		boom := errors.New("boom")
		e := ExecutorFunc(func(_ context.Context, _ string) error { return boom })
		if err := e.Execute(context.Background(), "x"); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}
