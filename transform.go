package shmdag

import "context"

// Transform adapts a function that can't fail into an Executor. Use it
// for pure side effects — formatting, computing a derived value for
// logging — where there is no meaningful failure mode.
func Transform(name string, fn func(context.Context, string)) Executor {
	return ExecutorFunc(func(ctx context.Context, payload string) error {
		fn(ctx, payload)
		return nil
	})
}
