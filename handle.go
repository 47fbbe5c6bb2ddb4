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

// Observability constants for Handle.
const (
	HandleProcessedTotal = metricz.Key("handle.processed.total")
	HandleErrorsTotal    = metricz.Key("handle.errors.total")
	HandleHandlerErrors  = metricz.Key("handle.handler.errors.total")

	HandleProcessSpan = tracez.Key("handle.process")
	HandleErrorSpan   = tracez.Key("handle.error")

	HandleTagHasError     = tracez.Tag("handle.has_error")
	HandleTagHandlerError = tracez.Tag("handle.handler_error")

	HandleEventError        = hookz.Key("handle.error")
	HandleEventHandled      = hookz.Key("handle.handled")
	HandleEventHandlerError = hookz.Key("handle.handler_error")
)

// HandleEvent is emitted when the wrapped executor fails, when the
// error handler runs successfully, and when the error handler itself
// fails.
type HandleEvent struct {
	Name         string
	Error        error
	HandlerError error
	Payload      string
	Duration     time.Duration
	Timestamp    time.Time
}

// ErrorHandler observes an Executor failure; its own error is recorded
// but never replaces the original failure.
type ErrorHandler func(ctx context.Context, payload string, cause error) error

// Handle wraps an Executor with a side-channel for observing its
// failures — logging, cleanup, notification — without changing the
// failure itself: Execute always returns the original error, even when
// the handler also errors.
type Handle struct {
	executor     Executor
	errorHandler ErrorHandler
	name         string

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[HandleEvent]
}

// NewHandle builds a Handle decorator around executor, routing its
// failures through errorHandler.
func NewHandle(name string, executor Executor, errorHandler ErrorHandler) *Handle {
	metrics := metricz.New()
	metrics.Counter(HandleProcessedTotal)
	metrics.Counter(HandleErrorsTotal)
	metrics.Counter(HandleHandlerErrors)

	return &Handle{
		name:         name,
		executor:     executor,
		errorHandler: errorHandler,
		metrics:      metrics,
		tracer:       tracez.New(),
		hooks:        hookz.New[HandleEvent](),
	}
}

// OnError registers a handler fired when the wrapped executor fails,
// before errorHandler runs.
func (h *Handle) OnError(handler func(context.Context, HandleEvent) error) error {
	_, err := h.hooks.Hook(HandleEventError, handler)
	return err
}

// OnHandled registers a handler fired after errorHandler runs without
// itself erroring.
func (h *Handle) OnHandled(handler func(context.Context, HandleEvent) error) error {
	_, err := h.hooks.Hook(HandleEventHandled, handler)
	return err
}

// OnHandlerError registers a handler fired when errorHandler itself
// fails.
func (h *Handle) OnHandlerError(handler func(context.Context, HandleEvent) error) error {
	_, err := h.hooks.Hook(HandleEventHandlerError, handler)
	return err
}

// Metrics returns the metrics registry for this decorator.
func (h *Handle) Metrics() *metricz.Registry { return h.metrics }

// Close releases the decorator's tracer and hooks.
func (h *Handle) Close() error {
	h.tracer.Close()
	h.hooks.Close()
	return nil
}

// Execute implements Executor.
func (h *Handle) Execute(ctx context.Context, payload string) (err error) {
	h.metrics.Counter(HandleProcessedTotal).Inc()

	ctx, span := h.tracer.StartSpan(ctx, HandleProcessSpan)
	defer func() {
		span.SetTag(HandleTagHasError, fmt.Sprintf("%t", err != nil))
		span.Finish()
	}()

	err = h.executor.Execute(ctx, payload)
	if err == nil {
		return nil
	}

	h.metrics.Counter(HandleErrorsTotal).Inc()
	_ = h.hooks.Emit(ctx, HandleEventError, HandleEvent{
		Name: h.name, Error: err, Payload: payload, Timestamp: time.Now(),
	})
	capitan.Warn(ctx, SignalHandleErrorHandled, FieldName.Field(h.name), FieldError.Field(err.Error()))

	errorCtx, errorSpan := h.tracer.StartSpan(ctx, HandleErrorSpan)
	handlerStart := time.Now()
	handlerErr := h.errorHandler(errorCtx, payload, err)
	handlerDuration := time.Since(handlerStart)

	if handlerErr != nil {
		h.metrics.Counter(HandleHandlerErrors).Inc()
		errorSpan.SetTag(HandleTagHandlerError, handlerErr.Error())
		_ = h.hooks.Emit(ctx, HandleEventHandlerError, HandleEvent{
			Name: h.name, Error: err, HandlerError: handlerErr, Payload: payload,
			Duration: handlerDuration, Timestamp: time.Now(),
		})
	} else {
		_ = h.hooks.Emit(ctx, HandleEventHandled, HandleEvent{
			Name: h.name, Error: err, Payload: payload, Duration: handlerDuration, Timestamp: time.Now(),
		})
	}
	errorSpan.Finish()

	return err
}
