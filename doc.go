// Package sockwire is an event dispatch core for socket-style servers:
// each inbound event gets its own request-scoped dependency injection
// context and runs through an onion-layered middleware chain before the
// registered handler executes. Handlers declare what they need as plain
// function parameters; the engine inspects the signature once at
// registration and resolves built-ins, providers, and a validated
// payload model on every dispatch.
//
// An Engine is created from a Config, handlers are registered with On,
// OnConnect, and OnDisconnect (or collected on a Router and mounted
// with AddRouter), and events enter through Dispatch. Providers are
// registered by name or by result type on the engine's Registry and
// may declare sub-dependencies, which the resolver walks depth-first
// with per-invocation caching, cycle detection, and reverse-order
// release of scoped resources at teardown.
//
// # Execution Modes
//
// Cooperative mode runs each invocation on the caller's goroutine and
// allows suspending (context-taking) providers and handlers. Parallel
// mode fans invocations out across a worker pool and rejects suspending
// providers with a SyncAsyncMismatchError at resolution time.
//
// # Middleware
//
// Middleware units carry optional Before, After, Wrap, and OnError
// hooks and can be scoped to specific events, a namespace, or run
// globally. The default chain installs panic recovery and structured
// logging; AuthMiddleware and RateLimitMiddleware are available for
// common gate-keeping. A Before hook returning an Abort stops the
// chain before the handler runs.
//
// # Cross-Instance Managers
//
// The manager package forwards events between server instances over a
// broker. Four backends ship out of the box:
//   - channel: In-memory Go channels for testing
//   - kafka: High-throughput streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - nats: High-performance messaging
//
// # Invocation Hooks
//
// InvocationHooks provide OnStart, OnDone, and OnError callbacks for
// custom logging, metrics collection, and alerting around handler
// execution. Per-handler counters are available via Handler.Stats, and
// the engine exports Prometheus metrics and OpenTelemetry spans when
// Config.MetricsEnabled is set.
package sockwire
