package shmdag

import (
	"context"
	"testing"
)

func TestTransform(t *testing.T) {
	var seen string
	ex := Transform("log", func(_ context.Context, payload string) {
		seen = payload
	})

	if err := ex.Execute(context.Background(), "node-1"); err != nil {
		t.Fatalf("transform should never fail, got %v", err)
	}
	if seen != "node-1" {
		t.Errorf("expected payload 'node-1', got %q", seen)
	}
}
