package shmdag

import (
	"errors"
	"fmt"
)

// Sentinel errors recognized by callers that want to branch on a specific
// failure mode rather than match on a concrete type.
var (
	// ErrAlreadyExists is returned by CreateMapping when the mapping's
	// write_lock semaphore already exists. Callers translate this into
	// OpenMapping, exactly as Run does in its create-or-open step.
	ErrAlreadyExists = errors.New("shmdag: mapping already exists")

	// ErrDoesNotExist is returned by OpenMapping when the mapping's
	// semaphores are absent. A missing cell is reported differently:
	// shmbyte.Open wraps os.ErrNotExist, and Mapping surfaces that as a
	// StorageError.
	ErrDoesNotExist = errors.New("shmdag: mapping does not exist")

	// ErrEmptyGraph is returned by New when given zero nodes.
	ErrEmptyGraph = errors.New("shmdag: graph has no nodes")
)

// ParseError reports malformed DOT-like input: a missing label, a
// non-integer ordinal where one is required, or any other structural
// violation of the grammar in graph_dot.go. It is fatal to the parse; no
// partially built graph is ever returned alongside it.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("shmdag: parse error at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("shmdag: parse error: %s", e.Reason)
}

// CyclicGraphError reports a construction-time acyclicity violation. The
// offending node is the target of the back-edge New's cycle check found,
// a node still on the depth-first search stack; either endpoint of the
// offending edge is an acceptable choice and callers must not depend on
// which one is reported.
type CyclicGraphError struct {
	Node int
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("shmdag: graph is cyclic at node %d", e.Node)
}

// IllegalStatusTransitionError reports a request to move a node to a
// status that is not the single legal next step of the state machine in
// status.go (NonExecutable -> Executable -> Executing -> Executed, strictly
// forward). Graph.Transition checks this locally, before any attempt to
// commit the move through a Mapping.
type IllegalStatusTransitionError struct {
	Node int
	From Status
	To   Status
}

func (e *IllegalStatusTransitionError) Error() string {
	return fmt.Sprintf("shmdag: node %d: illegal status transition %s -> %s", e.Node, e.From, e.To)
}

// ForeignMutationError reports that the CAS committing a node's Executed
// status failed: some other worker observed a different graph state than
// the one this worker held after running the node's computation. This is
// always fatal — the commit-Executed CAS, unlike the claim CAS, is never
// retried.
type ForeignMutationError struct {
	Node     int
	Observed Status
}

func (e *ForeignMutationError) Error() string {
	return fmt.Sprintf("shmdag: node %d: foreign mutation, observed status %s", e.Node, e.Observed)
}

// SemaphoreError reports an OS-level failure from a sema.Semaphore
// operation. Op names the failing operation ("create", "open", "wait",
// "try_wait", "post", "get_value", "unlink"); Err carries the underlying
// OS error.
type SemaphoreError struct {
	Op  string
	Err error
}

func (e *SemaphoreError) Error() string {
	return fmt.Sprintf("shmdag: semaphore %s: %v", e.Op, e.Err)
}

func (e *SemaphoreError) Unwrap() error { return e.Err }

// StorageError reports a create/open/load/store failure from a
// shmbyte.Cell operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("shmdag: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
