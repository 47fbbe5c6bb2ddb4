package shmdag

import "testing"

func TestNode(t *testing.T) {
	t.Run("Equal Compares Payload And Status", func(t *testing.T) {
		a := Node{Payload: "x", Status: Executable}
		b := Node{Payload: "x", Status: Executable}
		c := Node{Payload: "x", Status: Executing}
		d := Node{Payload: "y", Status: Executable}

		if !a.Equal(b) {
			t.Error("expected equal nodes to compare equal")
		}
		if a.Equal(c) {
			t.Error("expected different status to compare unequal")
		}
		if a.Equal(d) {
			t.Error("expected different payload to compare unequal")
		}
	})

	t.Run("String Matches DOT Label Form", func(t *testing.T) {
		n := Node{Payload: "task-1", Status: Executed}
		want := "Struct Node, Node.args: task-1, Node.execution_status: Executed"
		if got := n.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("New Node Without Parents Is Executable", func(t *testing.T) {
		n := newNode("root", false)
		if n.Status != Executable {
			t.Errorf("expected Executable, got %v", n.Status)
		}
	})

	t.Run("New Node With Parents Is NonExecutable", func(t *testing.T) {
		n := newNode("child", true)
		if n.Status != NonExecutable {
			t.Errorf("expected NonExecutable, got %v", n.Status)
		}
	})
}
