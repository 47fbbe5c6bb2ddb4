package shmdag

import "context"

// Enrich adapts a best-effort operation into an Executor: if fn fails,
// Enrich swallows the error rather than failing the node, since the
// operation is an optional enhancement (e.g. emitting extra
// diagnostics) rather than required work.
func Enrich(name string, fn func(context.Context, string) error) Executor {
	return ExecutorFunc(func(ctx context.Context, payload string) error {
		_ = fn(ctx, payload)
		return nil
	})
}
