package engine

import (
	"reflect"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/sockwire/sockwire/internal/engine/config"
	"github.com/sockwire/sockwire/internal/engine/inject"
	loggingpkg "github.com/sockwire/sockwire/internal/engine/logging"
	"github.com/sockwire/sockwire/internal/engine/validate"
)

// PayloadValidator is the boundary with the external validation
// library: given a schema type and a raw payload it returns a value
// assignable to the schema, or a failure that aborts the invocation
// before the handler runs.
type PayloadValidator interface {
	Validate(schema reflect.Type, payload any) (any, error)
}

// Dependencies holds the optional collaborators the Engine can use.
// Leave fields nil for the defaults.
type Dependencies struct {
	// Validator handles validated-model parameters. Defaults to the
	// sonic + struct tag validator.
	Validator PayloadValidator

	// Registry is the process-wide provider registry. Defaults to a
	// fresh one, reachable via Engine.Registry.
	Registry *inject.Registry

	// Middlewares are appended after the default chain.
	Middlewares []*Unit
	// DisableDefaultMiddlewares skips the default chain when true.
	DisableDefaultMiddlewares bool

	// ServerHandle is the opaque value injected for types.Server
	// parameters, typically the protocol server driving this engine.
	ServerHandle any

	// Hooks are invoked around every dispatch.
	Hooks InvocationHooks

	// MetricsRegisterer receives the engine metrics when
	// Config.MetricsEnabled is set. Defaults to the global
	// prometheus registerer.
	MetricsRegisterer prometheus.Registerer
}

// Engine orchestrates one invocation per inbound event: it builds the
// injection context, resolves the handler's declared inputs, runs the
// middleware chain around the handler, and tears the context down on
// every exit path.
type Engine struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	validator PayloadValidator
	registry  *inject.Registry
	chain     *Chain
	server    any
	hooks     InvocationHooks

	handlers   map[handlerKey]*Handler
	handlersMu sync.RWMutex

	pool     *pool
	sealOnce sync.Once

	metrics *engineMetrics
	tracer  trace.Tracer
}

type handlerKey struct {
	namespace string
	event     string
}

// New constructs an Engine for the supplied configuration, panicking
// on invalid input. Register providers, middleware, and handlers on
// the returned Engine before dispatching.
func New(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) *Engine {
	e, err := TryNew(conf, log, deps)
	if err != nil {
		panic(err)
	}
	return e
}

// TryNew is New with an error return instead of a panic.
func TryNew(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Engine, error) {
	if conf == nil {
		conf = &configpkg.Config{}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = loggingpkg.Nop()
	}

	log.Info("Creating event engine", loggingpkg.LogFields{
		"mode":   mode(conf),
		"config": conf,
	})

	e := &Engine{
		Conf:      conf,
		Logger:    log,
		validator: deps.Validator,
		registry:  deps.Registry,
		chain:     NewChain(),
		server:    deps.ServerHandle,
		hooks:     deps.Hooks,
		handlers:  make(map[handlerKey]*Handler),
		tracer:    otel.Tracer("sockwire-engine"),
	}

	if e.validator == nil {
		e.validator = validate.New()
	}
	if e.registry == nil {
		e.registry = inject.NewRegistry()
	}
	if conf.Mode == configpkg.ModeParallel {
		e.pool = newPool(conf.Workers)
	}
	if conf.MetricsEnabled {
		registerer := deps.MetricsRegisterer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		e.metrics = newEngineMetrics(metricsNamespace(conf), registerer)
	}

	registrations := make([]*Unit, 0, 2+len(deps.Middlewares))
	if !deps.DisableDefaultMiddlewares {
		registrations = append(registrations, DefaultMiddlewares(log)...)
	}
	registrations = append(registrations, deps.Middlewares...)
	for _, unit := range registrations {
		if err := e.chain.Add(unit); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Registry exposes the provider registry for configuration-time
// additions. It becomes read-only once dispatch begins.
func (e *Engine) Registry() *inject.Registry { return e.registry }

// Middleware exposes the middleware chain for configuration-time
// additions and removals.
func (e *Engine) Middleware() *Chain { return e.chain }

// UseMiddleware appends a unit to the chain.
func (e *Engine) UseMiddleware(u *Unit) error { return e.chain.Add(u) }

// SetServerHandle sets the opaque value injected for types.Server
// parameters. Call before dispatch begins.
func (e *Engine) SetServerHandle(server any) { e.server = server }

// Close stops the worker pool, if any. In-flight invocations finish
// first.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.stop()
	}
}

func (e *Engine) parallel() bool {
	return e.Conf.Mode == configpkg.ModeParallel
}

func mode(conf *configpkg.Config) configpkg.Mode {
	if conf.Mode == "" {
		return configpkg.ModeCooperative
	}
	return conf.Mode
}

func metricsNamespace(conf *configpkg.Config) string {
	if conf.MetricsNamespace != "" {
		return conf.MetricsNamespace
	}
	return "sockwire"
}

type engineMetrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newEngineMetrics(namespace string, registerer prometheus.Registerer) *engineMetrics {
	m := &engineMetrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Handler invocations grouped by event, namespace, and outcome.",
		}, []string{"event", "namespace", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Handler invocation duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event", "namespace"}),
	}
	registerer.MustRegister(m.invocations, m.duration)
	return m
}
