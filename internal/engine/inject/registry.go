package inject

import (
	"reflect"
	"sync"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
)

// Registry is the process-wide provider registry. Providers are added
// at configuration time, before dispatch begins; the engine seals the
// registry on its first dispatch, after which it is read-only.
type Registry struct {
	mu     sync.RWMutex
	sealed bool
	named  map[string]*Declaration
	typed  map[reflect.Type]*Declaration
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		named: make(map[string]*Declaration),
		typed: make(map[reflect.Type]*Declaration),
	}
}

// Register adds a provider under a global name, resolvable through
// Named declarations.
func (r *Registry) Register(name string, provider any, opts ...Option) error {
	if name == "" {
		return errspkg.ErrNameRequired
	}
	p, err := newProvider(provider)
	if err != nil {
		return err
	}
	d := &Declaration{provider: p, useCache: true}
	for _, opt := range opts {
		opt(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errspkg.ErrRegistrySealed
	}
	if _, exists := r.named[name]; exists {
		return errspkg.ErrDuplicateProvider
	}
	r.named[name] = d
	return nil
}

// Provide adds a provider keyed by the type it produces. Handler and
// provider parameters of that exact type resolve through it without an
// explicit declaration.
func (r *Registry) Provide(provider any, opts ...Option) error {
	p, err := newProvider(provider)
	if err != nil {
		return err
	}
	d := &Declaration{provider: p, useCache: true}
	for _, opt := range opts {
		opt(d)
	}
	produced := p.fn.Type().Out(0)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errspkg.ErrRegistrySealed
	}
	if _, exists := r.typed[produced]; exists {
		return errspkg.ErrDuplicateProvider
	}
	r.typed[produced] = d
	return nil
}

// Named looks up a name-registered declaration.
func (r *Registry) Named(name string) (*Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.named[name]
	return d, ok
}

// ForType looks up a type-registered declaration.
func (r *Registry) ForType(t reflect.Type) (*Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.typed[t]
	return d, ok
}

// Seal marks the registry read-only. Called by the engine when
// dispatch begins; further registrations fail with ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
