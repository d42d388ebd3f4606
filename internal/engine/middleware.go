package engine

import (
	"fmt"
	"sync"
	"time"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	loggingpkg "github.com/sockwire/sockwire/internal/engine/logging"
)

// Next invokes the rest of the middleware chain plus the handler with
// the given payload.
type Next func(data any) (any, error)

// Unit is one middleware registration: a filter plus hook slots.
// Either Before/After or Wrap should be set; Wrap receives the rest of
// the chain and has full control, including not calling it at all.
// OnError may convert an error raised by an inner stage into a
// response.
type Unit struct {
	Name string

	// Events restricts the unit to the listed event names. Empty
	// means all events.
	Events []string
	// Namespace restricts the unit to one namespace. Empty means all.
	Namespace string
	// Global makes the unit ignore the namespace filter.
	Global bool

	Before  func(event, sid string, data any) (any, error)
	After   func(event, sid string, resp any) (any, error)
	Wrap    func(event, sid string, data any, next Next) (any, error)
	OnError func(event, sid string, data any, err error) (any, error)
}

// applies reports whether the unit participates in the chain for the
// given event and namespace.
func (u *Unit) applies(event, namespace string) bool {
	if len(u.Events) > 0 {
		found := false
		for _, e := range u.Events {
			if e == event {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if u.Global {
		return true
	}
	return u.Namespace == "" || u.Namespace == namespace
}

func (u *Unit) hasHook() bool {
	return u.Before != nil || u.After != nil || u.Wrap != nil || u.OnError != nil
}

// Chain is the ordered middleware registry. Registration order is
// significant and fixed: before-hooks run in registration order,
// after-hooks in reverse.
type Chain struct {
	mu    sync.RWMutex
	units []*Unit
}

// NewChain returns an empty middleware chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a unit to the chain.
func (c *Chain) Add(u *Unit) error {
	if u == nil || !u.hasHook() {
		return errspkg.ErrMiddlewareNoHooks
	}
	c.mu.Lock()
	c.units = append(c.units, u)
	c.mu.Unlock()
	return nil
}

// Remove deletes a unit from the chain. Removing an unknown unit is a
// no-op.
func (c *Chain) Remove(u *Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, unit := range c.units {
		if unit == u {
			c.units = append(c.units[:i], c.units[i+1:]...)
			return
		}
	}
}

// List returns the registered units in order.
func (c *Chain) List() []*Unit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Unit, len(c.units))
	copy(out, c.units)
	return out
}

// Run executes the applicable units around invoke, onion style:
// before-hooks outer-to-inner in registration order, then invoke, then
// after-hooks inner-to-outer. An error raised by any stage unwinds
// through the enclosing units' OnError hooks, innermost first; a hook
// that returns a response stops propagation, and the remaining outer
// after-hooks run on that response.
func (c *Chain) Run(event, sid, namespace string, data any, invoke Next) (any, error) {
	c.mu.RLock()
	applicable := make([]*Unit, 0, len(c.units))
	for _, u := range c.units {
		if u.applies(event, namespace) {
			applicable = append(applicable, u)
		}
	}
	c.mu.RUnlock()

	var run func(i int, data any) (any, error)
	run = func(i int, data any) (any, error) {
		if i == len(applicable) {
			return invoke(data)
		}
		u := applicable[i]

		if u.Wrap != nil {
			resp, err := u.Wrap(event, sid, data, func(d any) (any, error) {
				return run(i+1, d)
			})
			if err != nil && u.OnError != nil {
				return u.OnError(event, sid, data, err)
			}
			return resp, err
		}

		if u.Before != nil {
			next, err := u.Before(event, sid, data)
			if err != nil {
				// This unit's own before-stage did not complete, so
				// its hooks are skipped; enclosing units unwind.
				return nil, err
			}
			data = next
		}

		resp, err := run(i+1, data)
		if err != nil {
			if u.OnError == nil {
				return nil, err
			}
			converted, cerr := u.OnError(event, sid, data, err)
			if cerr != nil {
				return nil, cerr
			}
			resp = converted
		}

		if u.After != nil {
			next, aerr := u.After(event, sid, resp)
			if aerr != nil {
				return nil, aerr
			}
			resp = next
		}
		return resp, nil
	}

	return run(0, data)
}

// DefaultMiddlewares returns the standard chain installed by the
// engine constructor: panic recovery outermost, then request logging.
func DefaultMiddlewares(logger loggingpkg.ServiceLogger) []*Unit {
	return []*Unit{
		RecovererMiddleware(),
		LoggingMiddleware(logger),
	}
}

// RecovererMiddleware converts handler panics into errors so the chain
// and the dispatcher see a normal failure.
func RecovererMiddleware() *Unit {
	return &Unit{
		Name: "recoverer",
		Wrap: func(event, sid string, data any, next Next) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("sockwire: panic in handler for %q: %v", event, r)
				}
			}()
			return next(data)
		},
	}
}

// LoggingMiddleware logs every invocation with its payload and
// response at debug level.
func LoggingMiddleware(logger loggingpkg.ServiceLogger) *Unit {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return &Unit{
		Name: "logging",
		Before: func(event, sid string, data any) (any, error) {
			logger.Debug("Processing event", loggingpkg.LogFields{
				"event": event,
				"sid":   sid,
				"data":  data,
			})
			return data, nil
		},
		After: func(event, sid string, resp any) (any, error) {
			logger.Debug("Event processed", loggingpkg.LogFields{
				"event":    event,
				"sid":      sid,
				"response": resp,
			})
			return resp, nil
		},
	}
}

// AuthMiddleware aborts the invocation before the handler runs when
// the checker rejects it.
func AuthMiddleware(check func(event, sid string, data any) bool) *Unit {
	return &Unit{
		Name: "auth",
		Before: func(event, sid string, data any) (any, error) {
			if !check(event, sid, data) {
				return nil, &errspkg.Abort{Reason: "unauthorized"}
			}
			return data, nil
		},
	}
}

// RateLimitMiddleware aborts invocations from a connection that sent
// more than max events within the sliding window.
func RateLimitMiddleware(max int, window time.Duration) *Unit {
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	var mu sync.Mutex
	seen := make(map[string][]time.Time)

	return &Unit{
		Name: "rate_limit",
		Before: func(event, sid string, data any) (any, error) {
			now := time.Now()
			cutoff := now.Add(-window)

			mu.Lock()
			recent := seen[sid][:0]
			for _, t := range seen[sid] {
				if t.After(cutoff) {
					recent = append(recent, t)
				}
			}
			recent = append(recent, now)
			seen[sid] = recent
			count := len(recent)
			mu.Unlock()

			if count > max {
				return nil, &errspkg.Abort{Reason: "rate limit exceeded"}
			}
			return data, nil
		},
	}
}
