package shmdag

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Rate limiter modes.
const (
	modeWait = "wait"
	modeDrop = "drop"
)

// RateLimiter is a standalone gate, not a decorator: it does not wrap
// another Executor. Execute blocks (mode "wait") or fails immediately
// (mode "drop") until a token is available, then returns nil, allowing
// a Sequence to place it ahead of the step it's meant to throttle.
// Token accounting uses a classic token-bucket: tokens refill at rate
// per second up to burst, and Execute consumes one per call.
//
// RateLimiter is stateful — construct one per throttled resource and
// share it; a fresh RateLimiter per call never limits anything.
type RateLimiter struct {
	name string
	mode string
	rate float64

	mu         sync.Mutex
	clock      clockz.Clock
	tokens     float64
	burst      int
	lastRefill time.Time
}

// NewRateLimiter builds a RateLimiter with the given sustained rate
// (tokens per second) and burst capacity. Starts in "wait" mode.
func NewRateLimiter(name string, ratePerSecond float64, burst int) *RateLimiter {
	now := clockz.RealClock.Now()
	return &RateLimiter{
		name:       name,
		rate:       ratePerSecond,
		burst:      burst,
		tokens:     float64(burst),
		lastRefill: now,
		mode:       modeWait,
		clock:      clockz.RealClock,
	}
}

// WithClock overrides the clock used for refill accounting and waits.
func (r *RateLimiter) WithClock(clock clockz.Clock) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	r.lastRefill = clock.Now()
	return r
}

// SetMode sets the limiter to "wait" or "drop"; an invalid mode is
// ignored.
func (r *RateLimiter) SetMode(mode string) *RateLimiter {
	if mode != modeWait && mode != modeDrop {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return r
}

// AvailableTokens returns the current token count after refilling.
func (r *RateLimiter) AvailableTokens() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refillTokens()
	return r.tokens
}

func (r *RateLimiter) refillTokens() {
	now := r.clock.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now

	if math.IsInf(r.rate, 1) {
		r.tokens = float64(r.burst)
		return
	}
	r.tokens = math.Min(float64(r.burst), r.tokens+elapsed*r.rate)
}

func (r *RateLimiter) canTakeToken() bool {
	r.refillTokens()
	if r.tokens >= 1.0 {
		r.tokens -= 1.0
		return true
	}
	return false
}

func (r *RateLimiter) calculateWaitTime() time.Duration {
	if r.rate == 0 {
		return time.Duration(math.MaxInt64)
	}
	if math.IsInf(r.rate, 1) {
		return 0
	}
	needed := 1.0 - r.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / r.rate * float64(time.Second))
}

// Execute implements Executor; payload is unused, since RateLimiter is
// a gate rather than a step that acts on it.
func (r *RateLimiter) Execute(ctx context.Context, _ string) error {
	for {
		r.mu.Lock()
		mode := r.mode
		if r.canTakeToken() {
			capitan.Info(ctx, SignalRateLimiterAllowed,
				FieldName.Field(r.name), FieldTokens.Field(r.tokens), FieldRate.Field(r.rate), FieldBurst.Field(r.burst))
			r.mu.Unlock()
			return nil
		}

		switch mode {
		case modeWait:
			waitTime := r.calculateWaitTime()
			capitan.Warn(ctx, SignalRateLimiterThrottled,
				FieldName.Field(r.name), FieldWaitTime.Field(waitTime.Seconds()), FieldTokens.Field(r.tokens), FieldRate.Field(r.rate))
			r.mu.Unlock()

			if waitTime == time.Duration(math.MaxInt64) {
				<-ctx.Done()
				return fmt.Errorf("ratelimiter %q: %w", r.name, ctx.Err())
			}

			select {
			case <-r.clock.After(waitTime):
			case <-ctx.Done():
				return fmt.Errorf("ratelimiter %q: %w", r.name, ctx.Err())
			}

		case modeDrop:
			capitan.Error(ctx, SignalRateLimiterDropped,
				FieldName.Field(r.name), FieldTokens.Field(r.tokens), FieldRate.Field(r.rate), FieldBurst.Field(r.burst), FieldMode.Field(mode))
			r.mu.Unlock()
			return fmt.Errorf("ratelimiter %q: rate limit exceeded", r.name)

		default:
			r.mu.Unlock()
			return fmt.Errorf("ratelimiter %q: invalid mode %q", r.name, mode)
		}
	}
}
