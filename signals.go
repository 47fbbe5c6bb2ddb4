package shmdag

import "github.com/zoobzio/capitan"

// Signal constants for scheduler events. Signals follow the pattern
// <area>.<event>, mirroring the connector-event naming this package's
// node execution policy engine (sequence.go, retry.go, ...) already uses.
const (
	SignalNodeClaimed      capitan.Signal = "scheduler.node-claimed"
	SignalClaimLost        capitan.Signal = "scheduler.claim-lost"
	SignalNodeExecuted     capitan.Signal = "scheduler.node-executed"
	SignalForeignMutation  capitan.Signal = "scheduler.foreign-mutation"
	SignalSweepProposed    capitan.Signal = "scheduler.sweep-proposed"
	SignalSweepDropped     capitan.Signal = "scheduler.sweep-dropped"
	SignalSchedulerSleep   capitan.Signal = "scheduler.sleep"
	SignalGraphCompleted   capitan.Signal = "scheduler.graph-completed"
	SignalMappingCreated   capitan.Signal = "mapping.created"
	SignalMappingOpened    capitan.Signal = "mapping.opened"
	SignalWriteLockAcquired  capitan.Signal = "rwlock.write-lock-acquired"
	SignalWriteLockReleased  capitan.Signal = "rwlock.write-lock-released"
	SignalIllegalTransition  capitan.Signal = "scheduler.illegal-transition"

	// Node execution policy engine signals — one Executor decorator per
	// source file, same naming convention as the scheduler signals above.
	SignalSequenceCompleted     capitan.Signal = "sequence.completed"
	SignalRetryAttemptStart     capitan.Signal = "retry.attempt-start"
	SignalRetryAttemptFail      capitan.Signal = "retry.attempt-fail"
	SignalRetryExhausted        capitan.Signal = "retry.exhausted"
	SignalBackoffWaiting        capitan.Signal = "backoff.waiting"
	SignalTimeoutTriggered      capitan.Signal = "timeout.triggered"
	SignalCircuitBreakerOpened  capitan.Signal = "circuitbreaker.opened"
	SignalCircuitBreakerClosed  capitan.Signal = "circuitbreaker.closed"
	SignalCircuitBreakerHalf    capitan.Signal = "circuitbreaker.half-open"
	SignalCircuitBreakerReject  capitan.Signal = "circuitbreaker.rejected"
	SignalFallbackAttempt       capitan.Signal = "fallback.attempt"
	SignalFallbackFailed        capitan.Signal = "fallback.failed"
	SignalRateLimiterAllowed    capitan.Signal = "ratelimiter.allowed"
	SignalRateLimiterThrottled  capitan.Signal = "ratelimiter.throttled"
	SignalRateLimiterDropped    capitan.Signal = "ratelimiter.dropped"
	SignalHandleErrorHandled    capitan.Signal = "handle.error-handled"
	SignalWorkerPoolSaturated   capitan.Signal = "workerpool.saturated"
	SignalWorkerPoolAcquired    capitan.Signal = "workerpool.acquired"
	SignalWorkerPoolReleased    capitan.Signal = "workerpool.released"
)

// Field keys used by scheduler signals, following the same primitive-typed
// capitan key convention as the node execution policy engine's own field
// keys.
var (
	FieldPrefix     = capitan.NewStringKey("prefix")
	FieldNode       = capitan.NewIntKey("node")
	FieldChild      = capitan.NewIntKey("child")
	FieldFromStatus = capitan.NewStringKey("from_status")
	FieldToStatus   = capitan.NewStringKey("to_status")
	FieldTimestamp  = capitan.NewFloat64Key("timestamp")
	FieldObserved   = capitan.NewStringKey("observed_status")

	// Node execution policy engine field keys.
	FieldName             = capitan.NewStringKey("name")
	FieldError            = capitan.NewStringKey("error")
	FieldAttempt          = capitan.NewIntKey("attempt")
	FieldMaxAttempts      = capitan.NewIntKey("max_attempts")
	FieldDelay            = capitan.NewFloat64Key("delay")
	FieldDuration         = capitan.NewFloat64Key("duration")
	FieldProcessorCount   = capitan.NewIntKey("processor_count")
	FieldState            = capitan.NewStringKey("state")
	FieldFailures         = capitan.NewIntKey("failures")
	FieldSuccesses        = capitan.NewIntKey("successes")
	FieldFailureThreshold = capitan.NewIntKey("failure_threshold")
	FieldSuccessThreshold = capitan.NewIntKey("success_threshold")
	FieldGeneration       = capitan.NewIntKey("generation")
	FieldRate             = capitan.NewFloat64Key("rate")
	FieldBurst            = capitan.NewIntKey("burst")
	FieldMode             = capitan.NewStringKey("mode")
	FieldWorkerCount      = capitan.NewIntKey("worker_count")
	FieldActiveWorkers    = capitan.NewIntKey("active_workers")
	FieldFallbackIndex    = capitan.NewIntKey("fallback_index")
	FieldTokens           = capitan.NewFloat64Key("tokens")
	FieldWaitTime         = capitan.NewFloat64Key("wait_time")
)
