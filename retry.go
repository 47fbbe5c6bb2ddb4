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

// Metric keys for Retry observability.
const (
	RetryAttemptsTotal  = metricz.Key("retry.attempts.total")
	RetrySuccessesTotal = metricz.Key("retry.successes.total")
	RetryFailuresTotal  = metricz.Key("retry.failures.total")
)

// Span names for Retry.
const (
	RetryProcessSpan = tracez.Key("retry.process")
	RetryAttemptSpan = tracez.Key("retry.attempt")
)

// Span tags for Retry.
const (
	RetryTagName        = tracez.Tag("retry.name")
	RetryTagMaxAttempts = tracez.Tag("retry.max_attempts")
	RetryTagAttempt     = tracez.Tag("retry.attempt")
	RetryTagSuccess     = tracez.Tag("retry.success")
)

// Hook event keys for Retry lifecycle events.
const (
	RetryEventAttempt   = hookz.Key("retry.attempt")
	RetryEventExhausted = hookz.Key("retry.exhausted")
)

// RetryEvent is emitted through hooks on every attempt, and once more
// when all attempts are exhausted.
type RetryEvent struct {
	Name          string
	AttemptNumber int
	MaxAttempts   int
	Success       bool
	Error         error
	Duration      time.Duration
	Timestamp     time.Time
}

// Retry wraps an Executor, re-running Execute against the same payload
// up to maxAttempts times on failure. Unlike the teacher's Retry[T],
// there is no result to carry between attempts: every attempt sees the
// identical node payload, since §4.5's node.execute() has no return
// value to thread forward. Attempts run back-to-back with no delay;
// compose with Backoff when spacing is needed.
type Retry struct {
	executor    Executor
	name        string
	maxAttempts int

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[RetryEvent]
}

// NewRetry builds a Retry decorator around executor.
func NewRetry(name string, executor Executor, maxAttempts int) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	registry := metricz.New()
	registry.Counter(RetryAttemptsTotal)
	registry.Counter(RetrySuccessesTotal)
	registry.Counter(RetryFailuresTotal)

	return &Retry{
		executor:    executor,
		name:        name,
		maxAttempts: maxAttempts,
		metrics:     registry,
		tracer:      tracez.New(),
		hooks:       hookz.New[RetryEvent](),
	}
}

// OnAttempt registers a handler fired after every attempt, success or
// failure.
func (r *Retry) OnAttempt(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventAttempt, handler)
	return err
}

// OnExhausted registers a handler fired once maxAttempts have all failed.
func (r *Retry) OnExhausted(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventExhausted, handler)
	return err
}

// Metrics returns the metrics registry for this decorator.
func (r *Retry) Metrics() *metricz.Registry { return r.metrics }

// Close releases the decorator's tracer and hooks.
func (r *Retry) Close() error {
	r.tracer.Close()
	r.hooks.Close()
	return nil
}

// Execute implements Executor.
func (r *Retry) Execute(ctx context.Context, payload string) error {
	ctx, span := r.tracer.StartSpan(ctx, RetryProcessSpan)
	span.SetTag(RetryTagName, r.name)
	span.SetTag(RetryTagMaxAttempts, fmt.Sprintf("%d", r.maxAttempts))
	defer span.Finish()

	var lastErr error
	for i := 0; i < r.maxAttempts; i++ {
		attempt := i + 1
		attemptCtx, attemptSpan := r.tracer.StartSpan(ctx, RetryAttemptSpan)
		attemptSpan.SetTag(RetryTagAttempt, fmt.Sprintf("%d", attempt))

		r.metrics.Counter(RetryAttemptsTotal).Inc()
		start := time.Now()
		attemptErr := r.executor.Execute(attemptCtx, payload)
		duration := time.Since(start)

		attemptSpan.SetTag(RetryTagSuccess, fmt.Sprintf("%t", attemptErr == nil))
		attemptSpan.Finish()

		if r.hooks.ListenerCount(RetryEventAttempt) > 0 {
			_ = r.hooks.Emit(ctx, RetryEventAttempt, RetryEvent{
				Name: r.name, AttemptNumber: attempt, MaxAttempts: r.maxAttempts,
				Success: attemptErr == nil, Error: attemptErr, Duration: duration, Timestamp: time.Now(),
			})
		}
		capitan.Info(ctx, SignalRetryAttemptStart,
			FieldName.Field(r.name), FieldAttempt.Field(attempt), FieldMaxAttempts.Field(r.maxAttempts))

		if attemptErr == nil {
			r.metrics.Counter(RetrySuccessesTotal).Inc()
			span.SetTag(RetryTagSuccess, "true")
			return nil
		}

		lastErr = attemptErr
		capitan.Warn(ctx, SignalRetryAttemptFail,
			FieldName.Field(r.name), FieldAttempt.Field(attempt), FieldError.Field(attemptErr.Error()))

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	r.metrics.Counter(RetryFailuresTotal).Inc()
	span.SetTag(RetryTagSuccess, "false")
	if r.hooks.ListenerCount(RetryEventExhausted) > 0 {
		_ = r.hooks.Emit(ctx, RetryEventExhausted, RetryEvent{
			Name: r.name, AttemptNumber: r.maxAttempts, MaxAttempts: r.maxAttempts,
			Success: false, Error: lastErr, Timestamp: time.Now(),
		})
	}
	capitan.Error(ctx, SignalRetryExhausted,
		FieldName.Field(r.name), FieldMaxAttempts.Field(r.maxAttempts), FieldError.Field(lastErr.Error()))
	return fmt.Errorf("retry %q: exhausted %d attempts: %w", r.name, r.maxAttempts, lastErr)
}
