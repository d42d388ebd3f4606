package engine

import (
	"sync"
	"time"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	"github.com/sockwire/sockwire/internal/engine/inject"
	loggingpkg "github.com/sockwire/sockwire/internal/engine/logging"
	"github.com/sockwire/sockwire/internal/engine/types"
)

// HandlerOption customizes a handler registration.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	name string
	deps []*inject.Declaration
}

// WithDeps binds explicit dependency declarations to the handler's
// trailing parameters, in parameter order. Parameters not covered by a
// declaration fall back to the type-keyed provider registry.
func WithDeps(decls ...*inject.Declaration) HandlerOption {
	return func(c *handlerConfig) {
		c.deps = append(c.deps, decls...)
	}
}

// WithName overrides the handler name used in logs, hooks, and stats.
// Defaults to the event name.
func WithName(name string) HandlerOption {
	return func(c *handlerConfig) {
		c.name = name
	}
}

// Handler is a registered event handler together with its runtime
// statistics.
type Handler struct {
	event      string
	namespace  string
	descriptor *inject.Descriptor
	stats      HandlerStats
}

// Event returns the event name the handler is registered for.
func (h *Handler) Event() string { return h.event }

// Namespace returns the namespace the handler is registered on.
func (h *Handler) Namespace() string { return h.namespace }

// Stats returns a snapshot of the handler's statistics.
func (h *Handler) Stats() HandlerStatsSnapshot { return h.stats.snapshot() }

// HandlerStats tracks per-handler invocation counters. Safe for
// concurrent use.
type HandlerStats struct {
	mu              sync.Mutex
	processed       uint64
	failed          uint64
	totalDuration   time.Duration
	lastProcessedAt time.Time
}

// HandlerStatsSnapshot is a point-in-time copy of HandlerStats.
type HandlerStatsSnapshot struct {
	Processed       uint64
	Failed          uint64
	TotalDuration   time.Duration
	LastProcessedAt time.Time
}

func (s *HandlerStats) record(duration time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	if failed {
		s.failed++
	}
	s.totalDuration += duration
	s.lastProcessedAt = time.Now()
}

func (s *HandlerStats) snapshot() HandlerStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HandlerStatsSnapshot{
		Processed:       s.processed,
		Failed:          s.failed,
		TotalDuration:   s.totalDuration,
		LastProcessedAt: s.lastProcessedAt,
	}
}

// On registers a handler for the given event on the engine's default
// namespace. The handler's parameters are classified at registration
// time, so signature problems surface here instead of at dispatch.
func (e *Engine) On(event string, handler any, opts ...HandlerOption) error {
	return e.register(event, e.defaultNamespace(), handler, opts...)
}

// OnNamespace registers a handler for the given event on an explicit
// namespace.
func (e *Engine) OnNamespace(event, namespace string, handler any, opts ...HandlerOption) error {
	return e.register(event, namespace, handler, opts...)
}

// OnConnect registers the connection handler.
func (e *Engine) OnConnect(handler any, opts ...HandlerOption) error {
	return e.On(types.EventConnect, handler, opts...)
}

// OnDisconnect registers the disconnection handler.
func (e *Engine) OnDisconnect(handler any, opts ...HandlerOption) error {
	return e.On(types.EventDisconnect, handler, opts...)
}

func (e *Engine) register(event, namespace string, handler any, opts ...HandlerOption) error {
	if event == "" {
		return errspkg.ErrEventNameRequired
	}
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if namespace == "" {
		namespace = types.RootNamespace
	}

	cfg := handlerConfig{name: event}
	for _, opt := range opts {
		opt(&cfg)
	}

	descriptor, err := inject.NewDescriptor(handler, event, cfg.deps, e.registry)
	if err != nil {
		return err
	}

	key := handlerKey{namespace: namespace, event: event}

	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	if _, exists := e.handlers[key]; exists {
		return errspkg.ErrDuplicateHandler
	}
	e.handlers[key] = &Handler{
		event:      event,
		namespace:  namespace,
		descriptor: descriptor,
	}

	e.Logger.Debug("Registered handler", loggingpkg.LogFields{
		"event":     event,
		"namespace": namespace,
		"handler":   cfg.name,
	})
	return nil
}

// Handler returns the handler registered for the event on the given
// namespace, if any.
func (e *Engine) Handler(event, namespace string) (*Handler, bool) {
	if namespace == "" {
		namespace = e.defaultNamespace()
	}
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	h, ok := e.handlers[handlerKey{namespace: namespace, event: event}]
	return h, ok
}

// Handlers returns all registered handlers.
func (e *Engine) Handlers() []*Handler {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	out := make([]*Handler, 0, len(e.handlers))
	for _, h := range e.handlers {
		out = append(out, h)
	}
	return out
}

func (e *Engine) defaultNamespace() string {
	if e.Conf.Namespace != "" {
		return e.Conf.Namespace
	}
	return types.RootNamespace
}

// Router collects handler registrations so packages can declare their
// events independently of the engine instance that eventually mounts
// them.
type Router struct {
	namespace string
	entries   []routerEntry
}

type routerEntry struct {
	event   string
	handler any
	opts    []HandlerOption
}

// NewRouter creates a Router. An empty namespace means the engine's
// default namespace at mount time.
func NewRouter(namespace string) *Router {
	return &Router{namespace: namespace}
}

// On queues a handler registration for the given event.
func (r *Router) On(event string, handler any, opts ...HandlerOption) *Router {
	r.entries = append(r.entries, routerEntry{event: event, handler: handler, opts: opts})
	return r
}

// OnConnect queues the connection handler.
func (r *Router) OnConnect(handler any, opts ...HandlerOption) *Router {
	return r.On(types.EventConnect, handler, opts...)
}

// OnDisconnect queues the disconnection handler.
func (r *Router) OnDisconnect(handler any, opts ...HandlerOption) *Router {
	return r.On(types.EventDisconnect, handler, opts...)
}

// AddRouter mounts every registration collected by the router onto the
// engine. The first failing registration aborts the mount.
func (e *Engine) AddRouter(r *Router) error {
	namespace := r.namespace
	if namespace == "" {
		namespace = e.defaultNamespace()
	}
	for _, entry := range r.entries {
		if err := e.register(entry.event, namespace, entry.handler, entry.opts...); err != nil {
			return err
		}
	}
	return nil
}
