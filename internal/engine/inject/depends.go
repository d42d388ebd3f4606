// Package inject implements the per-invocation dependency resolution
// engine: dependency declarations, the provider graph, the injection
// context, and the handler descriptor.
package inject

// Declaration binds a parameter to a provider plus a caching policy.
// A declaration either references a provider directly or names one in
// the process-wide registry. Immutable once created.
type Declaration struct {
	provider *Provider
	name     string
	useCache bool
}

// Option customises a Declaration.
type Option func(*Declaration)

// NoCache makes the provider run on every request instead of at most
// once per invocation.
func NoCache() Option {
	return func(d *Declaration) { d.useCache = false }
}

// WithArgs binds explicit declarations to the provider's own
// dependency parameters, in parameter order. Parameters without an
// explicit declaration fall back to the registry's type-keyed
// providers.
func WithArgs(decls ...*Declaration) Option {
	return func(d *Declaration) {
		if d.provider != nil {
			d.provider.args = decls
		}
	}
}

// Depends declares a dependency on the given provider function. The
// provider signature is inspected once, here; an unsupported signature
// is a programming error and panics.
func Depends(fn any, opts ...Option) *Declaration {
	provider, err := newProvider(fn)
	if err != nil {
		panic(err)
	}
	d := &Declaration{provider: provider, useCache: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Named declares a dependency on a provider registered under the given
// name. The lookup happens at resolution time; a missing registration
// fails the invocation with UnresolvedDependencyError.
func Named(name string, opts ...Option) *Declaration {
	d := &Declaration{name: name, useCache: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the registry name for name-referencing declarations,
// or "" for direct ones.
func (d *Declaration) Name() string { return d.name }

// UseCache reports whether resolved values may be reused within one
// invocation.
func (d *Declaration) UseCache() bool { return d.useCache }
