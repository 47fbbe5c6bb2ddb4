package shmdag

import "context"

// Executor is the capability interface a node's opaque side effect runs
// through (§9's "dynamic dispatch on node payload" extension point). The
// reference behavior — emit the payload — is a one-line ExecutorFunc, as
// in cmd/shmdag; production callers supply their own Executor to run
// real work keyed off a node's payload string.
type Executor interface {
	Execute(ctx context.Context, payload string) error
}

// ExecutorFunc adapts a plain function to an Executor.
type ExecutorFunc func(ctx context.Context, payload string) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, payload string) error {
	return f(ctx, payload)
}
