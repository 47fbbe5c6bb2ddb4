package shmdag

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Hook events for scheduler lifecycle, following the same hookz.Hooks[T]
// registration pattern as the node execution policy engine's decorators
// (handle.go, retry.go, ...).
const (
	SchedulerEventExecuted      = hookz.Key("scheduler.executed")
	SchedulerEventClaimLost     = hookz.Key("scheduler.claim_lost")
	SchedulerEventGraphComplete = hookz.Key("scheduler.graph_complete")
)

// SchedulerEvent is emitted on a node claim loss, a node's successful
// execution, and the graph reaching IsExecuted.
type SchedulerEvent struct {
	Prefix    string
	Node      int
	Timestamp time.Time
}

// Metric keys for scheduler observability.
const (
	NodesClaimedTotal  = metricz.Key("scheduler.nodes_claimed.total")
	NodesExecutedTotal = metricz.Key("scheduler.nodes_executed.total")
	ClaimRetriesTotal  = metricz.Key("scheduler.claim_retries.total")
	SweepRequeuedTotal = metricz.Key("scheduler.sweep_requeued.total")
)

// Span names for scheduler tracing.
const (
	RunSpan    = tracez.Key("scheduler.run")
	ClaimSpan  = tracez.Key("scheduler.claim")
	ExecSpan   = tracez.Key("scheduler.execute")
	SweepSpan  = tracez.Key("scheduler.sweep")
)

// Span tags.
const (
	TagPrefix = tracez.Tag("scheduler.prefix")
	TagNode   = tracez.Tag("scheduler.node")
)

// Scheduler runs one worker's copy of the loop in §4.6 against a shared
// Mapping[Graph]. Multiple Scheduler values, in the same process or
// across processes, may attach to the same prefix concurrently; the only
// coordination between them is the Mapping's compare-and-swap.
type Scheduler struct {
	prefix          string
	executor        Executor
	clock           clockz.Clock
	pollJitterMin   time.Duration
	pollJitterMax   time.Duration
	writeSpinPeriod time.Duration
	metrics         *metricz.Registry
	tracer          *tracez.Tracer
	hooks           *hookz.Hooks[SchedulerEvent]
	workers         int
	rng             *rand.Rand
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects a clock for the scheduler's backoff sleep and the
// rwlock's spin-wait sleep, so tests can run the full protocol against a
// clockz.FakeClock without wall-clock delay.
func WithClock(clock clockz.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithPollJitter sets the [min, max) backoff range used when a worker
// observes no executable node (§4.6). Defaults to 10-100ms.
func WithPollJitter(minDelay, maxDelay time.Duration) Option {
	return func(s *Scheduler) {
		s.pollJitterMin = minDelay
		s.pollJitterMax = maxDelay
	}
}

// WithWriteLockSpinInterval overrides the 30ms default sleep between
// read_count drain probes during write-lock acquisition (§4.3).
func WithWriteLockSpinInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.writeSpinPeriod = d }
}

// WithTracer injects a tracez.Tracer, letting a caller join scheduler
// spans onto its own trace collector.
func WithTracer(tracer *tracez.Tracer) Option {
	return func(s *Scheduler) { s.tracer = tracer }
}

// WithMetrics injects a metricz.Registry, letting a caller aggregate
// scheduler counters alongside its own.
func WithMetrics(reg *metricz.Registry) Option {
	return func(s *Scheduler) { s.metrics = reg }
}

// WithHooks injects a hookz.Hooks[SchedulerEvent], letting a caller
// register handlers for SchedulerEventClaimLost, SchedulerEventExecuted,
// and SchedulerEventGraphComplete before Run starts the loop.
func WithHooks(hooks *hookz.Hooks[SchedulerEvent]) Option {
	return func(s *Scheduler) { s.hooks = hooks }
}

// WithIntraProcessWorkers runs n copies of the scheduler's claim/execute
// loop as goroutines within this process, all against the same shared
// Mapping[Graph]; coordination between them is the same CAS the Mapping
// already uses between separate processes. n <= 1 is the default,
// single-loop behavior.
func WithIntraProcessWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = n }
}

func newScheduler(prefix string, executor Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		prefix:          prefix,
		executor:        executor,
		clock:           clockz.RealClock,
		pollJitterMin:   10 * time.Millisecond,
		pollJitterMax:   100 * time.Millisecond,
		writeSpinPeriod: defaultWriteSpinInterval,
		workers:         1,
		rng:             rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metricz.New()
		s.metrics.Counter(NodesClaimedTotal)
		s.metrics.Counter(NodesExecutedTotal)
		s.metrics.Counter(ClaimRetriesTotal)
		s.metrics.Counter(SweepRequeuedTotal)
	}
	if s.tracer == nil {
		s.tracer = tracez.New()
	}
	if s.hooks == nil {
		s.hooks = hookz.New[SchedulerEvent]()
	}
	return s
}

// Run creates or opens the Mapping[Graph] at prefix (creating it with
// initial if this is the first worker to attach), then runs the
// scheduler loop to completion: every node Executed, or ctx canceled, or
// a fatal error (ForeignMutationError, IllegalStatusTransitionError, a
// StorageError/SemaphoreError, or executor failure).
func Run(ctx context.Context, prefix string, initial Graph, executor Executor, opts ...Option) error {
	s := newScheduler(prefix, executor, opts...)

	mapping, err := createGraphMapping(prefix, initial, s.clock, s.writeSpinPeriod)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			mapping, err = openGraphMapping(prefix, s.clock, s.writeSpinPeriod)
			if err != nil {
				return err
			}
			capitan.Info(ctx, SignalMappingOpened, FieldPrefix.Field(prefix))
		} else {
			return err
		}
	} else {
		capitan.Info(ctx, SignalMappingCreated, FieldPrefix.Field(prefix))
	}
	defer mapping.Close()

	ctx, span := s.tracer.StartSpan(ctx, RunSpan)
	span.SetTag(TagPrefix, prefix)
	defer span.Finish()

	if s.workers <= 1 {
		return s.loop(ctx, mapping)
	}
	return s.runWorkers(ctx, mapping)
}

// runWorkers fans s.workers copies of the loop out across goroutines
// attached to the same mapping. The first worker to return a fatal error
// cancels the rest; every worker's terminal error (including the
// cancellation each sibling observes) is joined into the result.
func (s *Scheduler) runWorkers(ctx context.Context, mapping *Mapping[Graph]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, s.workers)
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.loop(ctx, mapping); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Scheduler) loop(ctx context.Context, mapping *Mapping[Graph]) error {
	g, err := mapping.Read()
	if err != nil {
		return err
	}

	for {
		if g.IsExecuted() {
			capitan.Info(ctx, SignalGraphCompleted, FieldPrefix.Field(s.prefix))
			_ = s.hooks.Emit(ctx, SchedulerEventGraphComplete, SchedulerEvent{Prefix: s.prefix, Timestamp: s.clock.Now()})
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, claimed, err := s.claim(ctx, mapping, g)
		if err != nil {
			return err
		}
		if !claimed {
			if err := s.sleepJitter(ctx); err != nil {
				return err
			}
			g, err = mapping.Read()
			if err != nil {
				return err
			}
			continue
		}

		executing, err := s.executeNode(ctx, mapping, n)
		if err != nil {
			return err
		}
		g = executing

		g, err = s.sweep(ctx, mapping, g, n)
		if err != nil {
			return err
		}
	}
}

// claim runs §4.6's claim loop starting from snapshot g: pick any
// Executable node and attempt a CAS to Executing, retrying with whatever
// the CAS observed on loss. It returns (node, true, nil) once a claim
// succeeds, or (0, false, nil) once the snapshot it holds (the starting
// one or one observed on a lost CAS) has no Executable node.
func (s *Scheduler) claim(ctx context.Context, mapping *Mapping[Graph], g Graph) (int, bool, error) {
	ctx, span := s.tracer.StartSpan(ctx, ClaimSpan)
	defer span.Finish()

	for {
		n, ok := g.ExecutableNode()
		if !ok {
			return 0, false, nil
		}
		span.SetTag(TagNode, strconv.Itoa(n))

		claimed, err := g.Transition(n, Executing)
		if err != nil {
			var illegal *IllegalStatusTransitionError
			if errors.As(err, &illegal) {
				capitan.Warn(ctx, SignalIllegalTransition, FieldPrefix.Field(s.prefix), FieldNode.Field(n), FieldFromStatus.Field(illegal.From.String()), FieldToStatus.Field(illegal.To.String()))
			}
			return 0, false, err
		}
		observed, err := mapping.CompareAndSwap(g, claimed)
		if err != nil {
			return 0, false, err
		}
		if observed == nil {
			s.metrics.Counter(NodesClaimedTotal).Inc()
			capitan.Info(ctx, SignalNodeClaimed, FieldPrefix.Field(s.prefix), FieldNode.Field(n))
			return n, true, nil
		}
		s.metrics.Counter(ClaimRetriesTotal).Inc()
		capitan.Info(ctx, SignalClaimLost, FieldPrefix.Field(s.prefix), FieldNode.Field(n))
		_ = s.hooks.Emit(ctx, SchedulerEventClaimLost, SchedulerEvent{Prefix: s.prefix, Node: n, Timestamp: s.clock.Now()})
		g = *observed
	}
}

// executeNode runs the user computation for node n, then commits
// Executed via CAS. A CAS failure here is fatal (§4.6's retry policy):
// the commit-Executed CAS, unlike the claim CAS, is never retried.
func (s *Scheduler) executeNode(ctx context.Context, mapping *Mapping[Graph], n int) (Graph, error) {
	ctx, span := s.tracer.StartSpan(ctx, ExecSpan)
	span.SetTag(TagNode, strconv.Itoa(n))
	defer span.Finish()

	g, err := mapping.Read()
	if err != nil {
		return Graph{}, err
	}

	payload := g.Node(n).Payload
	start := s.clock.Now()
	if err := s.executor.Execute(ctx, payload); err != nil {
		return Graph{}, &ExecError{Node: n, Payload: payload, Err: err, Timestamp: start, Duration: s.clock.Now().Sub(start)}
	}

	executed, err := g.Transition(n, Executed)
	if err != nil {
		var illegal *IllegalStatusTransitionError
		if errors.As(err, &illegal) {
			capitan.Warn(ctx, SignalIllegalTransition, FieldPrefix.Field(s.prefix), FieldNode.Field(n), FieldFromStatus.Field(illegal.From.String()), FieldToStatus.Field(illegal.To.String()))
		}
		return Graph{}, err
	}
	observed, err := mapping.CompareAndSwap(g, executed)
	if err != nil {
		return Graph{}, err
	}
	if observed != nil {
		capitan.Warn(ctx, SignalForeignMutation, FieldPrefix.Field(s.prefix), FieldNode.Field(n), FieldObserved.Field(observed.Node(n).Status.String()))
		return Graph{}, &ForeignMutationError{Node: n, Observed: observed.Node(n).Status}
	}
	s.metrics.Counter(NodesExecutedTotal).Inc()
	capitan.Info(ctx, SignalNodeExecuted, FieldPrefix.Field(s.prefix), FieldNode.Field(n))
	_ = s.hooks.Emit(ctx, SchedulerEventExecuted, SchedulerEvent{Prefix: s.prefix, Node: n, Timestamp: s.clock.Now()})
	return executed, nil
}

// sweep implements §4.6 step 4: walk n's children, proposing Executable
// for any whose parents are all Executed, requeuing any whose parents are
// all at least Executing, and otherwise leaving the child for a later
// parent's sweep to pick up.
func (s *Scheduler) sweep(ctx context.Context, mapping *Mapping[Graph], g Graph, n int) (Graph, error) {
	ctx, span := s.tracer.StartSpan(ctx, SweepSpan)
	span.SetTag(TagNode, strconv.Itoa(n))
	defer span.Finish()

	queue := append([]int(nil), g.Children(n)...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		cur, err := mapping.Read()
		if err != nil {
			return Graph{}, err
		}
		g = cur

		switch {
		case g.AllParentsExecuted(c):
			proposed, err := g.Transition(c, Executable)
			if err != nil {
				// Another worker already advanced c past Executable; that's
				// a tolerated outcome per §4.6, not an error.
				continue
			}
			observed, err := mapping.CompareAndSwap(g, proposed)
			if err != nil {
				return Graph{}, err
			}
			if observed == nil {
				capitan.Info(ctx, SignalSweepProposed, FieldPrefix.Field(s.prefix), FieldChild.Field(c))
				g = proposed
			} else {
				capitan.Info(ctx, SignalSweepDropped, FieldPrefix.Field(s.prefix), FieldChild.Field(c))
				g = *observed
			}

		case g.AllParentsExecutedOrExecuting(c):
			s.metrics.Counter(SweepRequeuedTotal).Inc()
			queue = append(queue, c)

		default:
			// Some parent hasn't reached Executing yet; a later parent's
			// sweep will revisit c.
		}
	}
	return g, nil
}

func (s *Scheduler) sleepJitter(ctx context.Context) error {
	span := 0 * time.Millisecond
	if s.pollJitterMax > s.pollJitterMin {
		span = s.pollJitterMax - s.pollJitterMin
	}
	delay := s.pollJitterMin
	if span > 0 {
		delay += time.Duration(s.rng.Int63n(int64(span)))
	}
	capitan.Info(ctx, SignalSchedulerSleep, FieldPrefix.Field(s.prefix))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(delay):
		return nil
	}
}
