package shmdag

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Timeout.
const (
	TimeoutProcessedTotal = metricz.Key("timeout.processed.total")
	TimeoutSuccessesTotal = metricz.Key("timeout.successes.total")
	TimeoutTimeoutsTotal  = metricz.Key("timeout.timeouts.total")
	TimeoutDurationMs     = metricz.Key("timeout.duration.ms")

	TimeoutProcessSpan = tracez.Key("timeout.process")

	TimeoutTagDuration = tracez.Tag("timeout.duration")
	TimeoutTagSuccess  = tracez.Tag("timeout.success")
	TimeoutTagTimedOut = tracez.Tag("timeout.timed_out")
	TimeoutTagElapsed  = tracez.Tag("timeout.elapsed")

	TimeoutEventTimeout = hookz.Key("timeout.timeout")
)

// TimeoutEvent is emitted when an Execute call exceeds its configured
// duration.
type TimeoutEvent struct {
	Name      string
	Duration  time.Duration
	Elapsed   time.Duration
	Error     error
	Timestamp time.Time
}

// Timeout wraps an Executor with a hard deadline. If Execute doesn't
// return within duration, Timeout cancels its context and returns a
// timeout error; the wrapped Executor is expected to respect context
// cancellation for prompt termination.
type Timeout struct {
	executor Executor
	clock    clockz.Clock
	name     string
	duration time.Duration

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[TimeoutEvent]
}

// NewTimeout builds a Timeout decorator around executor.
func NewTimeout(name string, executor Executor, duration time.Duration) *Timeout {
	metrics := metricz.New()
	metrics.Counter(TimeoutProcessedTotal)
	metrics.Counter(TimeoutSuccessesTotal)
	metrics.Counter(TimeoutTimeoutsTotal)
	metrics.Gauge(TimeoutDurationMs)

	return &Timeout{
		executor: executor,
		name:     name,
		duration: duration,
		clock:    clockz.RealClock,
		metrics:  metrics,
		tracer:   tracez.New(),
		hooks:    hookz.New[TimeoutEvent](),
	}
}

// WithClock overrides the clock used to derive the deadline.
func (t *Timeout) WithClock(clock clockz.Clock) *Timeout {
	t.clock = clock
	return t
}

// OnTimeout registers a handler fired when Execute exceeds its duration.
func (t *Timeout) OnTimeout(handler func(context.Context, TimeoutEvent) error) error {
	_, err := t.hooks.Hook(TimeoutEventTimeout, handler)
	return err
}

// Metrics returns the metrics registry for this decorator.
func (t *Timeout) Metrics() *metricz.Registry { return t.metrics }

// Close releases the decorator's tracer and hooks.
func (t *Timeout) Close() error {
	t.tracer.Close()
	t.hooks.Close()
	return nil
}

// Execute implements Executor.
func (t *Timeout) Execute(ctx context.Context, payload string) error {
	t.metrics.Counter(TimeoutProcessedTotal).Inc()
	start := time.Now()

	ctx, span := t.tracer.StartSpan(ctx, TimeoutProcessSpan)
	span.SetTag(TimeoutTagDuration, t.duration.String())
	defer func() {
		elapsed := time.Since(start)
		t.metrics.Gauge(TimeoutDurationMs).Set(float64(elapsed.Milliseconds()))
		span.SetTag(TimeoutTagElapsed, elapsed.String())
		span.Finish()
	}()

	ctx, cancel := t.clock.WithTimeout(ctx, t.duration)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		select {
		case resultCh <- t.executor.Execute(ctx, payload):
		case <-ctx.Done():
		}
	}()

	select {
	case err := <-resultCh:
		if err != nil {
			span.SetTag(TimeoutTagSuccess, "false")
			return err
		}
		span.SetTag(TimeoutTagSuccess, "true")
		t.metrics.Counter(TimeoutSuccessesTotal).Inc()
		return nil
	case <-ctx.Done():
		span.SetTag(TimeoutTagSuccess, "false")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			span.SetTag(TimeoutTagTimedOut, "true")
			t.metrics.Counter(TimeoutTimeoutsTotal).Inc()
			elapsed := time.Since(start)
			_ = t.hooks.Emit(ctx, TimeoutEventTimeout, TimeoutEvent{
				Name: t.name, Duration: t.duration, Elapsed: elapsed, Error: ctx.Err(), Timestamp: t.clock.Now(),
			})
			capitan.Warn(ctx, SignalTimeoutTriggered,
				FieldName.Field(t.name), FieldDuration.Field(t.duration.Seconds()))
		}
		return ctx.Err()
	}
}
