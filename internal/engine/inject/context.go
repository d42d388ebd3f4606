package inject

import (
	"context"
	"errors"
)

// Builtins holds the values the engine sets before resolution begins.
// Auth and Reason carry availability flags because their absence has
// event-specific failure semantics.
type Builtins struct {
	SocketID  string
	Event     string
	Namespace string
	Data      any
	Environ   map[string]any
	Server    any

	Auth    any
	HasAuth bool

	Reason    string
	HasReason bool
}

// Context is the per-invocation scoped state: built-ins, the resolved
// provider cache, the set of providers currently being resolved, and
// the list of pending scoped-resource releases. A Context is
// exclusively owned by the invocation that created it and must never
// be shared across invocations.
type Context struct {
	std      context.Context
	builtins Builtins
	parallel bool

	cache     map[uintptr]any
	resolving map[uintptr]bool
	stack     []string

	releases []release
	tornDown bool
}

type release struct {
	name string
	fn   func() error
}

// NewContext creates the scoped state for one invocation. std carries
// cancellation; parallel selects the execution model the invocation
// runs under.
func NewContext(std context.Context, builtins Builtins, parallel bool) *Context {
	if std == nil {
		std = context.Background()
	}
	return &Context{
		std:       std,
		builtins:  builtins,
		parallel:  parallel,
		cache:     make(map[uintptr]any),
		resolving: make(map[uintptr]bool),
	}
}

// Std returns the stdlib context carrying cancellation for this
// invocation.
func (c *Context) Std() context.Context { return c.std }

// Builtins returns the engine-populated values for this invocation.
func (c *Context) Builtins() Builtins { return c.builtins }

// Parallel reports whether the invocation runs under the parallel
// execution model, where suspending providers are rejected.
func (c *Context) Parallel() bool { return c.parallel }

// SetData replaces the raw payload, typically after a middleware
// before-hook transformed it.
func (c *Context) SetData(data any) { c.builtins.Data = data }

// addRelease schedules a scoped-resource release to run at teardown.
func (c *Context) addRelease(name string, fn func() error) {
	c.releases = append(c.releases, release{name: name, fn: fn})
}

// Teardown discards the cache and built-ins and runs all pending
// releases in reverse acquisition order. It runs on every exit path
// and is idempotent.
func (c *Context) Teardown() error {
	if c.tornDown {
		return nil
	}
	c.tornDown = true

	var errs []error
	for i := len(c.releases) - 1; i >= 0; i-- {
		if err := c.releases[i].fn(); err != nil {
			errs = append(errs, err)
		}
	}

	c.releases = nil
	c.cache = nil
	c.resolving = nil
	c.builtins = Builtins{}

	return errors.Join(errs...)
}
