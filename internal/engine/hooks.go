package engine

import (
	"context"
	"time"

	loggingpkg "github.com/sockwire/sockwire/internal/engine/logging"
	"github.com/sockwire/sockwire/internal/engine/types"
)

// InvocationContext provides information about a dispatched event to hooks.
type InvocationContext struct {
	// InvocationID uniquely identifies this dispatch.
	InvocationID string
	// Event is the event name being handled.
	Event types.Event
	// Namespace is the namespace the event arrived on.
	Namespace string
	// SocketID identifies the originating connection.
	SocketID types.SocketID
	// HandlerName is the registered name of the handler.
	HandlerName string
	// Context is the context associated with the invocation.
	Context context.Context
	// StartedAt is when the invocation began.
	StartedAt time.Time
	// Duration is how long the invocation took (only set in OnDone and OnError).
	Duration time.Duration
}

// InvocationHooks defines callbacks invoked around every dispatch.
// All hooks are optional - nil hooks are simply not called.
type InvocationHooks struct {
	// OnStart is called before the middleware chain runs.
	OnStart func(ctx InvocationContext)

	// OnDone is called after the invocation completes without error.
	// Duration will be set to how long the invocation took.
	OnDone func(ctx InvocationContext)

	// OnError is called when the invocation returns an error.
	// Duration will be set to how long the invocation took before failing.
	OnError func(ctx InvocationContext, err error)
}

// Merge combines two InvocationHooks, creating a new InvocationHooks
// that calls both. The hooks from 'other' are called after the hooks
// from 'h'.
func (h InvocationHooks) Merge(other InvocationHooks) InvocationHooks {
	return InvocationHooks{
		OnStart: chainHooks(h.OnStart, other.OnStart),
		OnDone:  chainHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainHooks(a, b func(InvocationContext)) func(InvocationContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx InvocationContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(InvocationContext, error)) func(InvocationContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx InvocationContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// LoggingHooks returns pre-built hooks that log invocation lifecycle events.
func LoggingHooks(logger loggingpkg.ServiceLogger) InvocationHooks {
	return InvocationHooks{
		OnStart: func(ctx InvocationContext) {
			logger.Debug("Invocation started", loggingpkg.LogFields{
				"invocation_id": ctx.InvocationID,
				"event":         ctx.Event,
				"namespace":     ctx.Namespace,
				"sid":           ctx.SocketID,
				"handler":       ctx.HandlerName,
			})
		},
		OnDone: func(ctx InvocationContext) {
			logger.Debug("Invocation completed", loggingpkg.LogFields{
				"invocation_id": ctx.InvocationID,
				"event":         ctx.Event,
				"namespace":     ctx.Namespace,
				"handler":       ctx.HandlerName,
				"duration_ms":   ctx.Duration.Milliseconds(),
			})
		},
		OnError: func(ctx InvocationContext, err error) {
			logger.Error("Invocation failed", err, loggingpkg.LogFields{
				"invocation_id": ctx.InvocationID,
				"event":         ctx.Event,
				"namespace":     ctx.Namespace,
				"handler":       ctx.HandlerName,
				"duration_ms":   ctx.Duration.Milliseconds(),
			})
		},
	}
}

// AlertingHooks returns pre-built hooks that call alertFunc on errors.
func AlertingHooks(alertFunc func(ctx InvocationContext, err error)) InvocationHooks {
	return InvocationHooks{
		OnError: alertFunc,
	}
}
