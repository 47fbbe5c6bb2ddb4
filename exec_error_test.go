package shmdag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecError(t *testing.T) {
	t.Run("IsTimeout Detects DeadlineExceeded", func(t *testing.T) {
		e := &ExecError{Node: 0, Payload: "p", Err: context.DeadlineExceeded, Timestamp: time.Now()}
		if !e.IsTimeout() {
			t.Error("expected IsTimeout to be true")
		}
		if e.IsCanceled() {
			t.Error("expected IsCanceled to be false")
		}
	})

	t.Run("IsCanceled Detects Canceled", func(t *testing.T) {
		e := &ExecError{Node: 0, Payload: "p", Err: context.Canceled, Timestamp: time.Now()}
		if !e.IsCanceled() {
			t.Error("expected IsCanceled to be true")
		}
		if e.IsTimeout() {
			t.Error("expected IsTimeout to be false")
		}
	})

	t.Run("Unwrap Reaches The Underlying Error", func(t *testing.T) {
		boom := errors.New("boom")
		e := &ExecError{Node: 2, Payload: "p", Err: boom, Timestamp: time.Now()}
		if !errors.Is(e, boom) {
			t.Error("expected errors.Is to reach boom through Unwrap")
		}
	})

	t.Run("Error Includes Node Number", func(t *testing.T) {
		e := &ExecError{Node: 3, Payload: "p", Err: errors.New("boom"), Timestamp: time.Now()}
		if got := e.Error(); !strings.Contains(got, "node 3") {
			t.Errorf("expected the error message to name node 3, got %q", got)
		}
	})
}
