package shmdag

import "fmt"

// Node is a single compute vertex in the graph. Payload is the opaque
// string handed to an Executor when the node runs; Status is its position
// in the state machine described in status.go. Nodes are identified by an
// immutable ordinal assigned at Graph construction — that ordinal, not any
// field of Node, is what the scheduler and Mapping key on.
//
// Equality of two Node values is by (Payload, Status), matching
// original_source's derived PartialEq on the node struct; ordinal identity
// is tracked by the Graph that owns the node, not by Node itself.
type Node struct {
	Payload string
	Status  Status
}

// Equal reports whether two nodes have the same payload and status.
func (n Node) Equal(other Node) bool {
	return n.Payload == other.Payload && n.Status == other.Status
}

// String renders a node using the exact label form the DOT-like printer
// and parser round-trip on:
//
//	Struct Node, Node.args: <payload>, Node.execution_status: <Status>
func (n Node) String() string {
	return fmt.Sprintf("Struct Node, Node.args: %s, Node.execution_status: %s", n.Payload, n.Status)
}

// newNode builds a node in its construction-time initial status: Executable
// if it has no parents, NonExecutable otherwise (invariant 3).
func newNode(payload string, hasParents bool) Node {
	if hasParents {
		return Node{Payload: payload, Status: NonExecutable}
	}
	return Node{Payload: payload, Status: Executable}
}
