package shmdag

import "testing"

func TestStatus(t *testing.T) {
	t.Run("String Renders Canonical Names", func(t *testing.T) {
		cases := map[Status]string{
			NonExecutable: "NonExecutable",
			Executable:    "Executable",
			Executing:     "Executing",
			Executed:      "Executed",
			Status(99):    "Unknown",
		}
		for s, want := range cases {
			if got := s.String(); got != want {
				t.Errorf("status %d: got %q, want %q", s, got, want)
			}
		}
	})

	t.Run("CanTransition Follows The Monotone Path", func(t *testing.T) {
		allowed := map[[2]Status]bool{
			{NonExecutable, Executable}: true,
			{Executable, Executing}:     true,
			{Executing, Executed}:       true,
		}
		all := []Status{NonExecutable, Executable, Executing, Executed}
		for _, from := range all {
			for _, to := range all {
				want := allowed[[2]Status{from, to}]
				if got := canTransition(from, to); got != want {
					t.Errorf("canTransition(%v, %v) = %v, want %v", from, to, got, want)
				}
			}
		}
	})

	t.Run("Executed Has No Forward Transitions", func(t *testing.T) {
		for _, to := range []Status{NonExecutable, Executable, Executing, Executed} {
			if canTransition(Executed, to) {
				t.Errorf("expected Executed -> %v to be illegal", to)
			}
		}
	})

	t.Run("StatusFromString Parses Canonical Names", func(t *testing.T) {
		for _, name := range []string{"NonExecutable", "Executable", "Executing", "Executed"} {
			s, ok := statusFromString(name)
			if !ok {
				t.Fatalf("expected %q to parse", name)
			}
			if s.String() != name {
				t.Errorf("round-trip mismatch for %q: got %v", name, s)
			}
		}
	})

	t.Run("StatusFromString Rejects Unknown Input", func(t *testing.T) {
		if _, ok := statusFromString("Bogus"); ok {
			t.Error("expected unknown status name to fail")
		}
	})
}
