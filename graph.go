package shmdag

// Graph is an immutable-by-convention DAG value: a slice of Nodes keyed by
// ordinal plus a fixed edge list, together with precomputed parent/child
// adjacency for O(deg) neighbor enumeration (per spec.md §9, in place of a
// source-level external graph library dependency).
//
// Graph values are passed by value at the API boundary and cloned before
// any mutation (see Clone/Transition) so that a Mapping[Graph] can use
// plain equality to implement compare-and-swap: the "current" and
// "expected" graphs are distinct values, never aliased through a shared
// node slice.
type Graph struct {
	nodes    []Node
	edges    []Edge
	parents  [][]int
	children [][]int
}

// New builds a Graph from a flat node-payload list and an edge list.
// Every node's initial status is computed per invariant 3: Executable if
// it has no incoming edges, NonExecutable otherwise. Construction fails
// with ErrEmptyGraph on zero nodes, with an out-of-range edge endpoint
// error, or with CyclicGraphError if the edges are not acyclic
// (invariant 2) — in every failure case no partial Graph is returned.
func New(payloads []string, edges []Edge) (Graph, error) {
	if len(payloads) == 0 {
		return Graph{}, ErrEmptyGraph
	}

	n := len(payloads)
	parents := make([][]int, n)
	children := make([][]int, n)

	for _, e := range edges {
		if e.Parent < 0 || e.Parent >= n || e.Child < 0 || e.Child >= n {
			return Graph{}, &ParseError{Reason: "edge endpoint refers to a nonexistent node"}
		}
		parents[e.Child] = append(parents[e.Child], e.Parent)
		children[e.Parent] = append(children[e.Parent], e.Child)
	}

	if cycleNode, ok := findCycle(n, children); ok {
		return Graph{}, &CyclicGraphError{Node: cycleNode}
	}

	nodes := make([]Node, n)
	for i, payload := range payloads {
		nodes[i] = newNode(payload, len(parents[i]) > 0)
	}

	edgesCopy := make([]Edge, len(edges))
	copy(edgesCopy, edges)

	return Graph{nodes: nodes, edges: edgesCopy, parents: parents, children: children}, nil
}

// findCycle runs a three-color DFS over the children adjacency and returns
// the ordinal of a node discovered mid-recursion-stack when revisited
// (the classic "gray node" signal of a back-edge), or false if the graph
// is acyclic.
func findCycle(n int, children [][]int) (int, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, n)

	var visit func(int) (int, bool)
	visit = func(u int) (int, bool) {
		color[u] = gray
		for _, v := range children[u] {
			switch color[v] {
			case gray:
				return v, true
			case white:
				if node, found := visit(v); found {
					return node, found
				}
			}
		}
		color[u] = black
		return 0, false
	}

	for i := 0; i < n; i++ {
		if color[i] == white {
			if node, found := visit(i); found {
				return node, true
			}
		}
	}
	return 0, false
}

// NumNodes returns the number of nodes in the graph.
func (g Graph) NumNodes() int { return len(g.nodes) }

// Node returns the node at the given ordinal.
func (g Graph) Node(i int) Node { return g.nodes[i] }

// Nodes returns a copy of the full node slice, indexed by ordinal.
func (g Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the graph's edge list.
func (g Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Parents returns the ordinals of n's incoming neighbors.
func (g Graph) Parents(n int) []int { return g.parents[n] }

// Children returns the ordinals of n's outgoing neighbors.
func (g Graph) Children(n int) []int { return g.children[n] }

// ExecutableNode returns the ordinal of some node whose status is
// Executable, or false if none exists. Per spec.md §4.5, no fairness is
// guaranteed among candidates; this implementation always returns the
// lowest-numbered one, which is sufficient to satisfy S1's documented
// expectation ([0, 2] for the diamond graph) while leaving relative
// worker progress unspecified.
func (g Graph) ExecutableNode() (int, bool) {
	for i, node := range g.nodes {
		if node.Status == Executable {
			return i, true
		}
	}
	return 0, false
}

// ExecutableNodes returns the ordinals of every node currently Executable,
// in ascending order. original_source's graph.rs exposes both the
// singular and plural query; S1 in spec.md §8 is phrased against this
// plural form.
func (g Graph) ExecutableNodes() []int {
	var out []int
	for i, node := range g.nodes {
		if node.Status == Executable {
			out = append(out, i)
		}
	}
	return out
}

// IsExecuted reports whether every node has reached the terminal Executed
// status (invariant 7).
func (g Graph) IsExecuted() bool {
	for _, node := range g.nodes {
		if node.Status != Executed {
			return false
		}
	}
	return true
}

// AllParentsExecuted reports whether every parent of n is Executed.
func (g Graph) AllParentsExecuted(n int) bool {
	for _, p := range g.parents[n] {
		if g.nodes[p].Status != Executed {
			return false
		}
	}
	return true
}

// AllParentsExecutedOrExecuting reports whether every parent of n has
// reached at least Executing. Used by the scheduler's sweep step (§4.6) to
// decide whether a child is worth retrying later versus dropping for a
// later parent's sweep to pick up.
func (g Graph) AllParentsExecutedOrExecuting(n int) bool {
	for _, p := range g.parents[n] {
		s := g.nodes[p].Status
		if s != Executed && s != Executing {
			return false
		}
	}
	return true
}

// Clone returns a copy whose node slice can be mutated independently of
// g. The edge list and adjacency slices are shared with g, which never
// modifies them after New.
func (g Graph) Clone() Graph {
	nodes := make([]Node, len(g.nodes))
	copy(nodes, g.nodes)
	return Graph{nodes: nodes, edges: g.edges, parents: g.parents, children: g.children}
}

// Transition returns a clone of g with node n advanced to status to,
// failing with IllegalStatusTransitionError if that move isn't a legal
// forward step of the state machine in status.go. This check runs
// entirely against the local value and is independent of whatever a
// Mapping's CompareAndSwap later observes — a caller that gets past
// Transition still needs to commit the result through the Mapping to make
// it visible to other workers.
func (g Graph) Transition(n int, to Status) (Graph, error) {
	from := g.nodes[n].Status
	if !canTransition(from, to) {
		return Graph{}, &IllegalStatusTransitionError{Node: n, From: from, To: to}
	}
	clone := g.Clone()
	clone.nodes[n].Status = to
	return clone, nil
}

// Equal reports whether two graphs have identical node slices and edge
// lists, in order. Mapping[Graph]'s CompareAndSwap relies on this to
// decide whether the "expected" value it was given still matches what's
// in shared memory.
func (g Graph) Equal(other Graph) bool {
	if len(g.nodes) != len(other.nodes) || len(g.edges) != len(other.edges) {
		return false
	}
	for i := range g.nodes {
		if !g.nodes[i].Equal(other.nodes[i]) {
			return false
		}
	}
	for i := range g.edges {
		if g.edges[i] != other.edges[i] {
			return false
		}
	}
	return true
}
