// Package shmdag executes a directed acyclic graph of compute nodes across
// multiple cooperating OS processes that share a single serialized
// representation of the graph in shared memory.
//
// # Overview
//
// Any number of worker processes, started independently, attach to the same
// named shared region (the "prefix"), race to claim executable nodes, run
// them, and collaboratively advance the graph until every node reaches the
// terminal Executed status. There is no central coordinator process: the
// only synchronization is a lock-protected, compare-and-swap state machine
// over a graph value whose sole source of truth is shared memory.
//
// # Core concepts
//
//   - Graph / Node / Edge: the DAG data model and its per-node execution
//     status state machine (NonExecutable -> Executable -> Executing ->
//     Executed).
//   - sema.Semaphore: a named counting semaphore shared across processes,
//     the building block for every other form of coordination here.
//   - shmbyte.Cell: a named, process-persistent single-byte cell; a
//     Mapping's serialized payload is an ordered sequence of these.
//   - rwlock (unexported): the reader/writer discipline built from exactly
//     two semaphores (write_lock, read_count), guarding a Mapping's bytes.
//   - Mapping[T]: the shared container a worker reads, writes, and
//     compare-and-swaps to advance the graph.
//   - Executor: the capability interface for the opaque, per-node
//     computation. Composable the same way pipeline connectors compose:
//     Sequence, Retry, Backoff, Timeout, CircuitBreaker, Fallback,
//     RateLimiter, Handle, WorkerPool all wrap one Executor to produce
//     another.
//   - Run: the scheduler loop every worker process executes.
//
// # Minimal usage
//
//	graph, err := shmdag.ParseDOT(src)
//	if err != nil {
//		return err
//	}
//	err = shmdag.Run(ctx, "my-run", graph, shmdag.ExecutorFunc(func(_ context.Context, payload string) error {
//		fmt.Println(payload)
//		return nil
//	}))
//
// Multiple processes started this way against the same prefix cooperate to
// execute the graph exactly once per node; see Run for the full contract.
package shmdag
