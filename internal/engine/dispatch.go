package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	"github.com/sockwire/sockwire/internal/engine/ids"
	"github.com/sockwire/sockwire/internal/engine/inject"
	loggingpkg "github.com/sockwire/sockwire/internal/engine/logging"
	"github.com/sockwire/sockwire/internal/engine/types"
)

// Request describes one inbound event to dispatch.
type Request struct {
	// Event is the event name, e.g. "connect", "chat_message".
	Event string
	// SocketID identifies the originating connection.
	SocketID string
	// Namespace the event arrived on. Empty means the engine default.
	Namespace string
	// Data is the decoded payload. Multi-argument emits arrive as []any.
	Data any
	// Environ carries the connection environment, available to every
	// event on the connection.
	Environ types.Environ
	// Auth is the handshake payload. Only meaningful on connect.
	Auth any
	// Reason is the disconnect reason. Only meaningful on disconnect.
	Reason string
}

// invocationState tracks how far a dispatch has progressed. Used in
// trace attributes and failure logs.
type invocationState int

const (
	stateCreated invocationState = iota
	stateBuiltinsSet
	stateBeforeMiddleware
	stateDependenciesResolved
	stateValidated
	stateHandlerRunning
	stateAfterMiddleware
	stateTornDown
)

func (s invocationState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateBuiltinsSet:
		return "builtins_set"
	case stateBeforeMiddleware:
		return "before_middleware"
	case stateDependenciesResolved:
		return "dependencies_resolved"
	case stateValidated:
		return "validated"
	case stateHandlerRunning:
		return "handler_running"
	case stateAfterMiddleware:
		return "after_middleware"
	case stateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Dispatch routes an inbound event to its registered handler and
// returns the handler's acknowledgement value. Events without a
// registered handler are ignored. In parallel mode the invocation runs
// on a pool worker; Dispatch still blocks until it finishes.
func (e *Engine) Dispatch(ctx context.Context, req Request) (any, error) {
	e.sealOnce.Do(e.registry.Seal)

	if req.Namespace == "" {
		req.Namespace = e.defaultNamespace()
	}

	handler, ok := e.Handler(req.Event, req.Namespace)
	if !ok {
		e.Logger.Debug("No handler for event", loggingpkg.LogFields{
			"event":     req.Event,
			"namespace": req.Namespace,
		})
		return nil, nil
	}

	if e.pool == nil {
		return e.handle(ctx, req, handler)
	}

	type result struct {
		resp any
		err  error
	}
	done := make(chan result, 1)
	submitted := e.pool.submit(func() {
		resp, err := e.handle(ctx, req, handler)
		done <- result{resp: resp, err: err}
	})
	if !submitted {
		return nil, errspkg.ErrInvocationCancelled
	}
	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) handle(ctx context.Context, req Request, handler *Handler) (resp any, err error) {
	invocationID := ids.NewInvocationID()
	startedAt := time.Now()
	state := stateCreated

	builtins := inject.Builtins{
		SocketID:  req.SocketID,
		Event:     req.Event,
		Namespace: req.Namespace,
		Data:      req.Data,
		Environ:   req.Environ,
		Server:    e.server,
		Auth:      req.Auth,
		HasAuth:   req.Event == types.EventConnect,
		Reason:    req.Reason,
		HasReason: req.Event == types.EventDisconnect,
	}
	injCtx := inject.NewContext(ctx, builtins, e.parallel())
	resolver := &inject.Resolver{Ctx: injCtx, Registry: e.registry}

	ctx, span := e.tracer.Start(ctx, "sockwire.dispatch", trace.WithAttributes(
		attribute.String("sockwire.event", req.Event),
		attribute.String("sockwire.namespace", req.Namespace),
		attribute.String("sockwire.socket_id", req.SocketID),
		attribute.String("sockwire.invocation_id", invocationID),
	))

	defer func() {
		teardownErr := injCtx.Teardown()
		state = stateTornDown
		if teardownErr != nil {
			e.Logger.Error("Invocation teardown failed", teardownErr, loggingpkg.LogFields{
				"invocation_id": invocationID,
				"event":         req.Event,
			})
			if err == nil {
				err = teardownErr
				resp = nil
			}
		}

		duration := time.Since(startedAt)
		handler.stats.record(duration, err != nil)
		e.recordMetrics(req, duration, err)

		span.SetAttributes(attribute.String("sockwire.state", state.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		hookCtx := InvocationContext{
			InvocationID: invocationID,
			Event:        types.Event(req.Event),
			Namespace:    req.Namespace,
			SocketID:     types.SocketID(req.SocketID),
			HandlerName:  handler.event,
			Context:      ctx,
			StartedAt:    startedAt,
			Duration:     duration,
		}
		if err != nil {
			if e.hooks.OnError != nil {
				e.hooks.OnError(hookCtx, err)
			}
		} else if e.hooks.OnDone != nil {
			e.hooks.OnDone(hookCtx)
		}
	}()

	state = stateBuiltinsSet

	if e.hooks.OnStart != nil {
		e.hooks.OnStart(InvocationContext{
			InvocationID: invocationID,
			Event:        types.Event(req.Event),
			Namespace:    req.Namespace,
			SocketID:     types.SocketID(req.SocketID),
			HandlerName:  handler.event,
			Context:      ctx,
			StartedAt:    startedAt,
		})
	}

	state = stateBeforeMiddleware
	resp, err = e.chain.Run(req.Event, req.SocketID, req.Namespace, req.Data, func(data any) (any, error) {
		injCtx.SetData(data)

		args, resolveErr := handler.descriptor.ResolveArgs(resolver)
		if resolveErr != nil {
			return nil, resolveErr
		}
		state = stateDependenciesResolved

		if handler.descriptor.HasModel() {
			payload := data
			if parts, ok := data.([]any); ok {
				if len(parts) > 1 {
					return nil, &errspkg.ValidationError{
						Schema: handler.descriptor.ModelType().String(),
						Cause:  errspkg.ErrMultiArgumentPayload,
					}
				}
				if len(parts) == 1 {
					payload = parts[0]
				}
			}
			model, validateErr := e.validator.Validate(handler.descriptor.ModelType(), payload)
			if validateErr != nil {
				return nil, validateErr
			}
			if setErr := handler.descriptor.SetModel(args, model); setErr != nil {
				return nil, setErr
			}
		}
		state = stateValidated

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		state = stateHandlerRunning
		return handler.descriptor.Invoke(args)
	})
	state = stateAfterMiddleware

	if err != nil {
		var abort *errspkg.Abort
		if errors.As(err, &abort) && abort.Response != nil {
			return abort.Response, nil
		}
	}
	return resp, err
}

func (e *Engine) recordMetrics(req Request, duration time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.invocations.WithLabelValues(req.Event, req.Namespace, status).Inc()
	e.metrics.duration.WithLabelValues(req.Event, req.Namespace).Observe(duration.Seconds())
}
