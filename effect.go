package shmdag

import (
	"context"
	"fmt"
)

// Effect adapts a function performing a side effect — logging,
// metrics, notifications, audit trails — into an Executor. Behaviorally
// identical to Apply; the separate name exists so call sites can
// signal intent: Effect marks "this step exists for its side effect,"
// not for producing anything the node's execution depends on.
func Effect(name string, fn func(context.Context, string) error) Executor {
	return ExecutorFunc(func(ctx context.Context, payload string) error {
		if err := fn(ctx, payload); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}
