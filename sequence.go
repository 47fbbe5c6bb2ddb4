package shmdag

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// Sequence runs a list of Executors against the same payload, in order,
// stopping at the first failure. Unlike the teacher's pipz.Sequence[T],
// a step does not transform its input into the next step's input — an
// Executor's contract is a side effect plus a success/failure signal
// (§4.5's node.execute()), so every step in a Sequence sees the same
// node payload.
type Sequence struct {
	name      string
	executors []Executor
}

// NewSequence builds a Sequence from the given executors, run in order.
func NewSequence(name string, executors ...Executor) *Sequence {
	return &Sequence{name: name, executors: append([]Executor(nil), executors...)}
}

// Execute implements Executor.
func (s *Sequence) Execute(ctx context.Context, payload string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for i, ex := range s.executors {
		select {
		case <-ctx.Done():
			return fmt.Errorf("sequence %q: step %d: %w", s.name, i, ctx.Err())
		default:
		}
		if err := ex.Execute(ctx, payload); err != nil {
			return fmt.Errorf("sequence %q: step %d: %w", s.name, i, err)
		}
	}
	capitan.Info(ctx, SignalSequenceCompleted,
		FieldName.Field(s.name),
		FieldProcessorCount.Field(len(s.executors)),
	)
	return nil
}

// Len returns the number of executors in the sequence.
func (s *Sequence) Len() int { return len(s.executors) }
