// Command shmdag is the reference front-end for running a DOT-like digraph
// through the shared-memory scheduler: parse the file, attach (creating or
// opening) a Mapping[Graph] under the given prefix, and run every node's
// payload through the default print-to-stdout Executor until the graph is
// fully executed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arcflow-dev/shmdag"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shmdag <digraph_file> <filename_suffix>",
		Short:         "Run a DOT-like digraph through the shared-memory scheduler",
		Args:          argCheck(cobra.ExactArgs(2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return runGraph(args[0], args[1])
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddCommand(validateCmd())
	return cmd
}

// validateCmd implements the dry-run invocation original_source's main.rs
// variants use for checking a digraph file without attaching to shared
// memory: parse it, report node/edge counts and the initial executable
// set, and exit without ever touching /dev/shm.
func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "validate <digraph_file>",
		Short:         "Parse and print a digraph file without running it",
		Args:          argCheck(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return validateGraph(args[0])
		},
	}
}

func runGraph(path, prefix string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &argError{err}
	}
	g, err := shmdag.ParseDOT(string(src))
	if err != nil {
		return &argError{err}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	executor := shmdag.ExecutorFunc(func(_ context.Context, payload string) error {
		fmt.Println(payload)
		return nil
	})

	return shmdag.Run(ctx, prefix, g, executor)
}

func validateGraph(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &argError{err}
	}
	g, err := shmdag.ParseDOT(string(src))
	if err != nil {
		return &argError{err}
	}

	fmt.Printf("nodes: %d\n", g.NumNodes())
	fmt.Printf("edges: %d\n", len(g.Edges()))
	fmt.Printf("initially executable: %v\n", g.ExecutableNodes())
	return nil
}

// argError marks a failure as a missing/invalid-argument problem (exit
// code 1), distinct from a runtime failure during Run (any other nonzero
// code), per spec.md §6's exit-code contract.
type argError struct{ err error }

func (e *argError) Error() string { return e.err.Error() }
func (e *argError) Unwrap() error { return e.err }

// argCheck wraps a cobra PositionalArgs validator so its failure also
// counts as an argError for exit-code purposes.
func argCheck(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &argError{err}
		}
		return nil
	}
}

func exitCodeFor(err error) int {
	var ae *argError
	if errors.As(err, &ae) {
		return 1
	}
	return 2
}
