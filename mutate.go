package shmdag

import "context"

// Mutate adapts a conditional side effect into an Executor: fn runs
// only when condition returns true for the payload, and never fails.
func Mutate(name string, fn func(context.Context, string), condition func(context.Context, string) bool) Executor {
	return ExecutorFunc(func(ctx context.Context, payload string) error {
		if condition(ctx, payload) {
			fn(ctx, payload)
		}
		return nil
	})
}
