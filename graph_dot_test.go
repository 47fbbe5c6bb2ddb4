package shmdag

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDOTChain(t *testing.T) {
	t.Run("Single Chain", func(t *testing.T) {
		g, err := ParseDOT("a -> b -> c;")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.NumNodes() != 3 {
			t.Fatalf("expected 3 nodes, got %d", g.NumNodes())
		}
		if g.Node(0).Payload != "a" || g.Node(1).Payload != "b" || g.Node(2).Payload != "c" {
			t.Errorf("unexpected payloads: %v %v %v", g.Node(0).Payload, g.Node(1).Payload, g.Node(2).Payload)
		}
		if g.Node(0).Status != Executable || g.Node(1).Status != NonExecutable {
			t.Errorf("expected root Executable and child NonExecutable")
		}
	})

	t.Run("Multiple Lines Share Identifiers", func(t *testing.T) {
		g, err := ParseDOT("a -> b;\na -> c;\n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.NumNodes() != 3 {
			t.Fatalf("expected 3 nodes, got %d", g.NumNodes())
		}
		if len(g.Children(0)) != 2 {
			t.Errorf("expected node a to have 2 children, got %d", len(g.Children(0)))
		}
	})

	t.Run("Empty Identifier Fails", func(t *testing.T) {
		_, err := ParseDOT("a -> -> c;")
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("expected *ParseError, got %v", err)
		}
	})

	t.Run("Empty Input Fails", func(t *testing.T) {
		_, err := ParseDOT("")
		if !errors.Is(err, ErrEmptyGraph) {
			t.Errorf("expected ErrEmptyGraph, got %v", err)
		}
	})
}

func TestParseDOTBlock(t *testing.T) {
	t.Run("Round Trips Through PrintDOT", func(t *testing.T) {
		g := diamond(t)
		src := PrintDOT(g)
		g2, err := ParseDOT(src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !g.Equal(g2) {
			t.Errorf("expected round-tripped graph to equal original")
		}
	})

	t.Run("Parses Explicit Status", func(t *testing.T) {
		src := `digraph {
    0 [ label = "Struct Node, Node.args: task-a, Node.execution_status: Executing" ]
}
`
		g, err := ParseDOT(src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.Node(0).Payload != "task-a" {
			t.Errorf("expected payload task-a, got %q", g.Node(0).Payload)
		}
		if g.Node(0).Status != Executing {
			t.Errorf("expected Executing, got %v", g.Node(0).Status)
		}
	})

	t.Run("Missing Label Quote Fails", func(t *testing.T) {
		src := "digraph {\n    0 [ label = broken ]\n}\n"
		_, err := ParseDOT(src)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("expected *ParseError, got %v", err)
		}
	})

	t.Run("Unknown Status Name Fails", func(t *testing.T) {
		src := `digraph {
    0 [ label = "Struct Node, Node.args: x, Node.execution_status: Bogus" ]
}
`
		_, err := ParseDOT(src)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("expected *ParseError, got %v", err)
		}
	})

	t.Run("Empty Block Fails", func(t *testing.T) {
		_, err := ParseDOT("digraph {\n}\n")
		if !errors.Is(err, ErrEmptyGraph) {
			t.Errorf("expected ErrEmptyGraph, got %v", err)
		}
	})
}

func TestPrintDOT(t *testing.T) {
	t.Run("Contains Node And Edge Lines", func(t *testing.T) {
		g := diamond(t)
		out := PrintDOT(g)
		if !strings.HasPrefix(out, "digraph {") {
			t.Error("expected output to start with 'digraph {'")
		}
		if !strings.Contains(out, "Node.args: a") {
			t.Error("expected a node line for payload 'a'")
		}
		if !strings.Contains(out, "0 -> 1") {
			t.Error("expected an edge line for 0 -> 1")
		}
	})
}
