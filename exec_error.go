package shmdag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExecError wraps a failure from an Executor's Execute call with the
// context needed to diagnose it: which node, what payload, how long the
// call ran, and whether the failure was a timeout or cancellation. Unlike
// the tagged protocol errors in errors.go (ParseError, CyclicGraphError,
// ForeignMutationError, ...), which report scheduler/storage-level
// failures, ExecError is specifically the wrapper around whatever error
// the opaque user computation itself returned (§4.5's node.execute()
// contract: "errors are surfaced verbatim").
type ExecError struct {
	Node      int
	Payload   string
	Err       error
	Timestamp time.Time
	Duration  time.Duration
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("shmdag: node %d execute failed after %v: %v", e.Node, e.Duration, e.Err)
}

// Unwrap supports errors.Is/errors.As against the underlying executor error.
func (e *ExecError) Unwrap() error { return e.Err }

// IsTimeout reports whether the failure was a timeout, including context
// deadline exceeded.
func (e *ExecError) IsTimeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the failure was a cancellation.
func (e *ExecError) IsCanceled() bool {
	return errors.Is(e.Err, context.Canceled)
}
