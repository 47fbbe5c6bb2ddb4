package shmdag

import (
	"context"
	"fmt"
)

// Apply adapts a plain function into an Executor. Use Apply when the
// function's failure is a first-class, expected outcome — validation,
// parsing, an external call — that should propagate as the node's
// failure.
func Apply(name string, fn func(context.Context, string) error) Executor {
	return ExecutorFunc(func(ctx context.Context, payload string) error {
		if err := fn(ctx, payload); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}
