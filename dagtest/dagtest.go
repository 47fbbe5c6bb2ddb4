// Package dagtest provides test utilities for shmdag-based schedulers: a
// configurable mock Executor and a re-export of clockz.FakeClock, which a
// test passes to Run through WithClock and advances itself so scheduler
// backoff needs no real sleeps.
package dagtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// MockExecutor is a configurable Executor for testing node execution
// policies and the scheduler loop without real side effects.
type MockExecutor struct {
	mu        sync.Mutex
	callCount int64
	lastCtx   context.Context //nolint:containedctx // test helper records the context it was called with
	lastPayload string
	returnErr func(payload string) error
	delay     time.Duration
	panicMsg  string
}

// NewMockExecutor creates a MockExecutor that succeeds by default.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{returnErr: func(string) error { return nil }}
}

// WithReturn configures the mock to always return err.
func (m *MockExecutor) WithReturn(err error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnErr = func(string) error { return err }
	return m
}

// WithFunc configures the mock's error as a function of the payload it
// was called with, for tests that need per-node behavior.
func (m *MockExecutor) WithFunc(fn func(payload string) error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnErr = fn
	return m
}

// WithDelay configures the mock to sleep before returning, honoring
// context cancellation.
func (m *MockExecutor) WithDelay(d time.Duration) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic configures the mock to panic with msg instead of returning.
func (m *MockExecutor) WithPanic(msg string) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// Execute implements shmdag.Executor.
func (m *MockExecutor) Execute(ctx context.Context, payload string) error {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	m.lastCtx = ctx
	m.lastPayload = payload
	delay := m.delay
	returnErr := m.returnErr
	panicMsg := m.panicMsg
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return returnErr(payload)
}

// CallCount returns the number of times Execute has been called.
func (m *MockExecutor) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// LastPayload returns the payload from the most recent call.
func (m *MockExecutor) LastPayload() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPayload
}

// FakeClock is a convenience alias so callers don't need a direct
// clockz import just to drive the scheduler's jittered backoff in tests.
type FakeClock = clockz.FakeClock

// NewFakeClock returns a fake clock suitable for WithClock on a
// Scheduler or any of the node execution policy decorators.
func NewFakeClock() *FakeClock {
	return clockz.NewFakeClock()
}
