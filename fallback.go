package shmdag

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Fallback.
const (
	FallbackProcessedTotal = metricz.Key("fallback.processed.total")
	FallbackSuccessesTotal = metricz.Key("fallback.successes.total")
	FallbackAllFailedTotal = metricz.Key("fallback.all_failed.total")
	FallbackAttemptsTotal  = metricz.Key("fallback.attempts.total")

	FallbackProcessSpan = tracez.Key("fallback.process")
	FallbackAttemptSpan = tracez.Key("fallback.attempt")

	FallbackTagExecutorCount = tracez.Tag("fallback.executor_count")
	FallbackTagAttemptNumber = tracez.Tag("fallback.attempt_number")
	FallbackTagSuccess       = tracez.Tag("fallback.success")

	FallbackEventActivated = hookz.Key("fallback.activated")
	FallbackEventExhausted = hookz.Key("fallback.exhausted")
	FallbackEventRecovered = hookz.Key("fallback.recovered")
)

// FallbackEvent is emitted when a fallback step is tried, when one
// recovers after an earlier one failed, and when the whole chain is
// exhausted.
type FallbackEvent struct {
	Name           string
	AttemptIndex   int
	TotalExecutors int
	Recovered      bool
	AllFailed      bool
	Duration       time.Duration
	Error          error
	Timestamp      time.Time
}

// Fallback tries a chain of Executors against the same payload in
// order, returning on the first success. Each executor is a distinct
// alternative, unlike Retry's repeated attempt of the same one.
type Fallback struct {
	name      string
	executors []Executor

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[FallbackEvent]
}

// NewFallback builds a Fallback trying executors in order. At least
// one executor must be provided.
func NewFallback(name string, executors ...Executor) *Fallback {
	if len(executors) == 0 {
		panic("NewFallback requires at least one executor")
	}
	metrics := metricz.New()
	metrics.Counter(FallbackProcessedTotal)
	metrics.Counter(FallbackSuccessesTotal)
	metrics.Counter(FallbackAllFailedTotal)
	metrics.Counter(FallbackAttemptsTotal)

	return &Fallback{
		name:      name,
		executors: append([]Executor(nil), executors...),
		metrics:   metrics,
		tracer:    tracez.New(),
		hooks:     hookz.New[FallbackEvent](),
	}
}

// OnActivated registers a handler fired when a fallback step after the
// first is tried.
func (f *Fallback) OnActivated(handler func(ctx context.Context, event FallbackEvent) error) error {
	_, err := f.hooks.Hook(FallbackEventActivated, handler)
	return err
}

// OnRecovered registers a handler fired when a non-first executor
// succeeds.
func (f *Fallback) OnRecovered(handler func(ctx context.Context, event FallbackEvent) error) error {
	_, err := f.hooks.Hook(FallbackEventRecovered, handler)
	return err
}

// OnExhausted registers a handler fired when every executor in the
// chain fails.
func (f *Fallback) OnExhausted(handler func(ctx context.Context, event FallbackEvent) error) error {
	_, err := f.hooks.Hook(FallbackEventExhausted, handler)
	return err
}

// Len returns the number of executors in the chain.
func (f *Fallback) Len() int { return len(f.executors) }

// Metrics returns the metrics registry for this decorator.
func (f *Fallback) Metrics() *metricz.Registry { return f.metrics }

// Close releases the decorator's tracer and hooks.
func (f *Fallback) Close() error {
	f.tracer.Close()
	f.hooks.Close()
	return nil
}

// Execute implements Executor.
func (f *Fallback) Execute(ctx context.Context, payload string) error {
	f.metrics.Counter(FallbackProcessedTotal).Inc()
	start := time.Now()

	ctx, span := f.tracer.StartSpan(ctx, FallbackProcessSpan)
	span.SetTag(FallbackTagExecutorCount, fmt.Sprintf("%d", len(f.executors)))
	defer span.Finish()

	var lastErr error
	for i, ex := range f.executors {
		attemptCtx, attemptSpan := f.tracer.StartSpan(ctx, FallbackAttemptSpan)
		attemptSpan.SetTag(FallbackTagAttemptNumber, fmt.Sprintf("%d", i+1))

		f.metrics.Counter(FallbackAttemptsTotal).Inc()
		attemptStart := time.Now()
		err := ex.Execute(attemptCtx, payload)
		duration := time.Since(attemptStart)

		attemptSpan.SetTag(FallbackTagSuccess, fmt.Sprintf("%t", err == nil))
		attemptSpan.Finish()

		if err == nil {
			span.SetTag(FallbackTagSuccess, "true")
			f.metrics.Counter(FallbackSuccessesTotal).Inc()
			if i > 0 {
				_ = f.hooks.Emit(ctx, FallbackEventRecovered, FallbackEvent{
					Name: f.name, AttemptIndex: i, TotalExecutors: len(f.executors),
					Recovered: true, Duration: duration, Timestamp: time.Now(),
				})
				capitan.Info(ctx, SignalFallbackAttempt,
					FieldName.Field(f.name), FieldFallbackIndex.Field(i))
			}
			return nil
		}

		lastErr = err
		if i < len(f.executors)-1 {
			_ = f.hooks.Emit(ctx, FallbackEventActivated, FallbackEvent{
				Name: f.name, AttemptIndex: i, TotalExecutors: len(f.executors),
				Duration: duration, Error: err, Timestamp: time.Now(),
			})
			capitan.Warn(ctx, SignalFallbackAttempt,
				FieldName.Field(f.name), FieldFallbackIndex.Field(i), FieldError.Field(err.Error()))
		}
	}

	span.SetTag(FallbackTagSuccess, "false")
	f.metrics.Counter(FallbackAllFailedTotal).Inc()
	_ = f.hooks.Emit(ctx, FallbackEventExhausted, FallbackEvent{
		Name: f.name, AttemptIndex: len(f.executors) - 1, TotalExecutors: len(f.executors),
		AllFailed: true, Duration: time.Since(start), Error: lastErr, Timestamp: time.Now(),
	})
	capitan.Error(ctx, SignalFallbackFailed,
		FieldName.Field(f.name), FieldError.Field(lastErr.Error()))
	return fmt.Errorf("fallback %q: all %d executors failed: %w", f.name, len(f.executors), lastErr)
}
