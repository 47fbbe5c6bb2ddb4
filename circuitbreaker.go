package shmdag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Circuit states.
const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half-open"
)

// CircuitBreaker wraps an Executor with the standard closed/open/half-open
// state machine: after failureThreshold consecutive failures the circuit
// opens and Execute fails fast without calling the wrapped Executor; after
// resetTimeout it moves to half-open and lets successThreshold successes
// close it again, while any half-open failure reopens it.
//
// CircuitBreaker is stateful across calls — construct one per distinct
// executor and reuse it; a fresh CircuitBreaker per call never opens.
type CircuitBreaker struct {
	executor Executor
	clock    clockz.Clock
	name     string

	mu               sync.Mutex
	state            string
	lastFailTime     time.Time
	generation       int
	failureThreshold int
	successThreshold int
	failures         int
	successes        int
	resetTimeout     time.Duration
}

// NewCircuitBreaker builds a CircuitBreaker around executor.
func NewCircuitBreaker(name string, executor Executor, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		executor:         executor,
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: 1,
		resetTimeout:     resetTimeout,
		state:            stateClosed,
		clock:            clockz.RealClock,
	}
}

// WithClock overrides the clock used for the reset-timeout check.
func (cb *CircuitBreaker) WithClock(clock clockz.Clock) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.clock = clock
	return cb
}

// SetSuccessThreshold updates the successes needed to close from
// half-open.
func (cb *CircuitBreaker) SetSuccessThreshold(n int) *CircuitBreaker {
	if n < 1 {
		n = 1
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.successThreshold = n
	return cb
}

// State returns the current circuit state, resolving an open circuit
// past its reset timeout to half-open.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateOpen && cb.clock.Since(cb.lastFailTime) > cb.resetTimeout {
		return stateHalfOpen
	}
	return cb.state
}

// Reset manually forces the circuit back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = stateClosed
	cb.failures = 0
	cb.successes = 0
	cb.generation++
}

// Execute implements Executor.
func (cb *CircuitBreaker) Execute(ctx context.Context, payload string) error {
	cb.mu.Lock()

	if cb.state == stateOpen && cb.clock.Since(cb.lastFailTime) > cb.resetTimeout {
		cb.state = stateHalfOpen
		cb.failures = 0
		cb.successes = 0
		cb.generation++
		capitan.Warn(ctx, SignalCircuitBreakerHalf,
			FieldName.Field(cb.name), FieldState.Field(cb.state), FieldGeneration.Field(cb.generation))
	}

	state := cb.state
	generation := cb.generation

	if state == stateOpen {
		capitan.Error(ctx, SignalCircuitBreakerReject,
			FieldName.Field(cb.name), FieldState.Field(state), FieldGeneration.Field(generation))
		cb.mu.Unlock()
		return fmt.Errorf("circuit breaker %q is open", cb.name)
	}
	cb.mu.Unlock()

	err := cb.executor.Execute(ctx, payload)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.generation != generation {
		return err
	}

	if err != nil {
		cb.onFailure(ctx)
		return err
	}
	cb.onSuccess(ctx)
	return nil
}

func (cb *CircuitBreaker) onSuccess(ctx context.Context) {
	switch cb.state {
	case stateClosed:
		cb.failures = 0
	case stateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = stateClosed
			cb.failures = 0
			cb.successes = 0
			capitan.Info(ctx, SignalCircuitBreakerClosed,
				FieldName.Field(cb.name), FieldState.Field(cb.state), FieldSuccessThreshold.Field(cb.successThreshold))
		}
	}
}

func (cb *CircuitBreaker) onFailure(ctx context.Context) {
	cb.lastFailTime = cb.clock.Now()
	switch cb.state {
	case stateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = stateOpen
			capitan.Error(ctx, SignalCircuitBreakerOpened,
				FieldName.Field(cb.name), FieldState.Field(cb.state), FieldFailures.Field(cb.failures),
				FieldFailureThreshold.Field(cb.failureThreshold))
		}
	case stateHalfOpen:
		cb.state = stateOpen
		cb.failures = 0
		cb.successes = 0
		capitan.Error(ctx, SignalCircuitBreakerOpened,
			FieldName.Field(cb.name), FieldState.Field(cb.state), FieldFailureThreshold.Field(cb.failureThreshold))
	}
}
