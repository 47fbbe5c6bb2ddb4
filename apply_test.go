package shmdag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestApply(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var seen string
		ex := Apply("validate", func(_ context.Context, payload string) error {
			seen = payload
			return nil
		})

		if err := ex.Execute(context.Background(), "node-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen != "node-1" {
			t.Errorf("expected payload 'node-1', got %q", seen)
		}
	})

	t.Run("Failure Is Wrapped With Name", func(t *testing.T) {
		ex := Apply("validate", func(_ context.Context, _ string) error {
			return errors.New("bad payload")
		})

		err := ex.Execute(context.Background(), "node-1")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "validate") || !strings.Contains(err.Error(), "bad payload") {
			t.Errorf("expected wrapped error to mention name and cause, got %q", err.Error())
		}
	})
}
