package shmdag

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Backoff.
const (
	BackoffAttemptsTotal  = metricz.Key("backoff.attempts.total")
	BackoffSuccessesTotal = metricz.Key("backoff.successes.total")
	BackoffFailuresTotal  = metricz.Key("backoff.failures.total")
	BackoffDelayTotalMS   = metricz.Key("backoff.delay.total.ms")

	BackoffProcessSpan = tracez.Key("backoff.process")
	BackoffAttemptSpan = tracez.Key("backoff.attempt")

	BackoffTagName        = tracez.Tag("backoff.name")
	BackoffTagMaxAttempts = tracez.Tag("backoff.max_attempts")
	BackoffTagAttemptNum  = tracez.Tag("backoff.attempt_num")
	BackoffTagDelay       = tracez.Tag("backoff.delay")
	BackoffTagSuccess     = tracez.Tag("backoff.success")

	BackoffEventAttempt   = hookz.Key("backoff.attempt")
	BackoffEventExhausted = hookz.Key("backoff.exhausted")
)

// BackoffEvent is emitted before a delayed retry attempt and once more
// when all attempts are exhausted.
type BackoffEvent struct {
	Name        string
	AttemptNum  int
	MaxAttempts int
	Delay       time.Duration
	TotalDelay  time.Duration
	Error       error
	Timestamp   time.Time
}

// Backoff wraps an Executor, re-running Execute against the same
// payload up to maxAttempts times, doubling the delay between attempts
// starting from baseDelay. The wait is interruptible via ctx and uses
// an injectable clockz.Clock so tests can drive it without real sleeps.
type Backoff struct {
	executor    Executor
	clock       clockz.Clock
	name        string
	baseDelay   time.Duration
	maxAttempts int

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[BackoffEvent]
}

// NewBackoff builds a Backoff decorator around executor.
func NewBackoff(name string, executor Executor, maxAttempts int, baseDelay time.Duration) *Backoff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	metrics := metricz.New()
	metrics.Counter(BackoffAttemptsTotal)
	metrics.Counter(BackoffSuccessesTotal)
	metrics.Counter(BackoffFailuresTotal)
	metrics.Counter(BackoffDelayTotalMS)

	return &Backoff{
		executor:    executor,
		name:        name,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		clock:       clockz.RealClock,
		metrics:     metrics,
		tracer:      tracez.New(),
		hooks:       hookz.New[BackoffEvent](),
	}
}

// WithClock overrides the clock used for the inter-attempt sleep.
func (b *Backoff) WithClock(clock clockz.Clock) *Backoff {
	b.clock = clock
	return b
}

// OnAttempt registers a handler fired before each delayed retry attempt.
func (b *Backoff) OnAttempt(handler func(context.Context, BackoffEvent) error) error {
	_, err := b.hooks.Hook(BackoffEventAttempt, handler)
	return err
}

// OnExhausted registers a handler fired once all attempts have failed.
func (b *Backoff) OnExhausted(handler func(context.Context, BackoffEvent) error) error {
	_, err := b.hooks.Hook(BackoffEventExhausted, handler)
	return err
}

// Metrics returns the metrics registry for this decorator.
func (b *Backoff) Metrics() *metricz.Registry { return b.metrics }

// Close releases the decorator's tracer and hooks.
func (b *Backoff) Close() error {
	b.tracer.Close()
	b.hooks.Close()
	return nil
}

// Execute implements Executor.
func (b *Backoff) Execute(ctx context.Context, payload string) error {
	ctx, span := b.tracer.StartSpan(ctx, BackoffProcessSpan)
	span.SetTag(BackoffTagName, b.name)
	span.SetTag(BackoffTagMaxAttempts, fmt.Sprintf("%d", b.maxAttempts))
	defer span.Finish()

	var lastErr error
	delay := b.baseDelay
	totalDelay := time.Duration(0)

	for i := 0; i < b.maxAttempts; i++ {
		attempt := i + 1
		attemptCtx, attemptSpan := b.tracer.StartSpan(ctx, BackoffAttemptSpan)
		attemptSpan.SetTag(BackoffTagAttemptNum, fmt.Sprintf("%d", attempt))

		b.metrics.Counter(BackoffAttemptsTotal).Inc()
		if i > 0 {
			_ = b.hooks.Emit(ctx, BackoffEventAttempt, BackoffEvent{
				Name: b.name, AttemptNum: attempt, MaxAttempts: b.maxAttempts,
				Delay: delay, TotalDelay: totalDelay, Timestamp: b.clock.Now(),
			})
			capitan.Info(ctx, SignalBackoffWaiting,
				FieldName.Field(b.name), FieldAttempt.Field(attempt), FieldDelay.Field(delay.Seconds()))
		}

		attemptErr := b.executor.Execute(attemptCtx, payload)
		attemptSpan.SetTag(BackoffTagSuccess, fmt.Sprintf("%t", attemptErr == nil))
		attemptSpan.Finish()

		if attemptErr == nil {
			span.SetTag(BackoffTagSuccess, "true")
			b.metrics.Counter(BackoffSuccessesTotal).Inc()
			b.metrics.Counter(BackoffDelayTotalMS).Add(float64(totalDelay.Milliseconds()))
			return nil
		}
		lastErr = attemptErr

		if i < b.maxAttempts-1 {
			select {
			case <-b.clock.After(delay):
				totalDelay += delay
				delay *= 2
			case <-ctx.Done():
				span.SetTag(BackoffTagSuccess, "false")
				b.metrics.Counter(BackoffDelayTotalMS).Add(float64(totalDelay.Milliseconds()))
				return fmt.Errorf("backoff %q: %w", b.name, ctx.Err())
			}
		}
	}

	span.SetTag(BackoffTagSuccess, "false")
	b.metrics.Counter(BackoffFailuresTotal).Inc()
	b.metrics.Counter(BackoffDelayTotalMS).Add(float64(totalDelay.Milliseconds()))
	_ = b.hooks.Emit(ctx, BackoffEventExhausted, BackoffEvent{
		Name: b.name, AttemptNum: b.maxAttempts, MaxAttempts: b.maxAttempts,
		TotalDelay: totalDelay, Error: lastErr, Timestamp: b.clock.Now(),
	})
	capitan.Error(ctx, SignalBackoffWaiting,
		FieldName.Field(b.name), FieldMaxAttempts.Field(b.maxAttempts), FieldError.Field(lastErr.Error()))
	return fmt.Errorf("backoff %q: exhausted %d attempts: %w", b.name, b.maxAttempts, lastErr)
}
