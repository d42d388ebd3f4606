package inject

import (
	"fmt"
	"reflect"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	"github.com/sockwire/sockwire/internal/engine/types"
)

// Resolver walks the dependency graph for one invocation. It owns no
// state of its own; everything request-scoped lives in the Context and
// everything shared lives in the (read-only) Registry.
type Resolver struct {
	Ctx      *Context
	Registry *Registry
}

// Resolve produces the value for a declaration, honoring caching and
// cycle detection. Resolution is depth-first: the provider's own
// dependency parameters are resolved with the same algorithm before
// the provider runs.
func (r *Resolver) Resolve(d *Declaration) (any, error) {
	if d.name != "" {
		if r.Registry == nil {
			return nil, &errspkg.UnresolvedDependencyError{Name: d.name}
		}
		target, ok := r.Registry.Named(d.name)
		if !ok {
			return nil, &errspkg.UnresolvedDependencyError{Name: d.name}
		}
		return r.resolveProvider(target.provider, d.useCache && target.useCache)
	}
	return r.resolveProvider(d.provider, d.useCache)
}

func (r *Resolver) resolveProvider(p *Provider, useCache bool) (any, error) {
	c := r.Ctx
	key := p.key()

	if useCache {
		if v, ok := c.cache[key]; ok {
			return v, nil
		}
	}

	// Cycle detection runs unconditionally, before the provider is
	// invoked, even for uncached declarations.
	if c.resolving[key] {
		return nil, &errspkg.CyclicDependencyError{Chain: cycleChain(c.stack, p.name)}
	}

	if p.suspending && c.parallel {
		return nil, &errspkg.SyncAsyncMismatchError{Provider: p.name}
	}
	if err := c.std.Err(); err != nil {
		return nil, err
	}

	c.resolving[key] = true
	c.stack = append(c.stack, p.name)
	defer func() {
		delete(c.resolving, key)
		c.stack = c.stack[:len(c.stack)-1]
	}()

	args, err := r.providerArgs(p)
	if err != nil {
		return nil, err
	}

	value, releaseFn, err := callProvider(p, args)
	if err != nil {
		return nil, fmt.Errorf("sockwire: provider %s: %w", p.name, err)
	}
	if releaseFn != nil {
		c.addRelease(p.name, releaseFn)
	}
	if useCache {
		c.cache[key] = value
	}
	return value, nil
}

func (r *Resolver) providerArgs(p *Provider) ([]reflect.Value, error) {
	args := make([]reflect.Value, 0, len(p.params))
	depIndex := 0

	for _, param := range p.params {
		switch param.kind {
		case providerParamContext:
			args = append(args, reflect.ValueOf(r.Ctx.std))

		case providerParamBuiltin:
			v, err := builtinValue(param.builtin, param.typ, r.Ctx.builtins)
			if err != nil {
				return nil, err
			}
			args = append(args, v)

		case providerParamDep:
			decl, err := r.declarationFor(p, param.typ, depIndex)
			depIndex++
			if err != nil {
				return nil, err
			}
			resolved, err := r.Resolve(decl)
			if err != nil {
				return nil, err
			}
			v, err := assignTo(param.typ, resolved)
			if err != nil {
				return nil, fmt.Errorf("sockwire: provider %s: %w", p.name, err)
			}
			args = append(args, v)
		}
	}
	return args, nil
}

// declarationFor picks the declaration for a provider's dependency
// parameter: explicit WithArgs declarations bind in order, then the
// registry's type-keyed providers.
func (r *Resolver) declarationFor(p *Provider, t reflect.Type, depIndex int) (*Declaration, error) {
	if depIndex < len(p.args) && p.args[depIndex] != nil {
		return p.args[depIndex], nil
	}
	if r.Registry != nil {
		if d, ok := r.Registry.ForType(t); ok {
			return d, nil
		}
	}
	return nil, &errspkg.UnresolvedDependencyError{Name: t.String()}
}

func callProvider(p *Provider, args []reflect.Value) (any, func() error, error) {
	out := p.fn.Call(args)

	if p.hasErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return nil, nil, errv.Interface().(error)
		}
	}

	var releaseFn func() error
	if p.hasRelease {
		if rel := out[1]; !rel.IsNil() {
			releaseFn = wrapRelease(rel)
		}
	}

	return out[0].Interface(), releaseFn, nil
}

func wrapRelease(v reflect.Value) func() error {
	if fn, ok := v.Interface().(func() error); ok {
		return fn
	}
	fn := v.Interface().(func())
	return func() error {
		fn()
		return nil
	}
}

// builtinValue materialises an engine-populated value for a parameter,
// enforcing the availability rules for Auth and Reason.
func builtinValue(kind builtinKind, t reflect.Type, b Builtins) (reflect.Value, error) {
	switch kind {
	case builtinSocketID:
		return reflect.ValueOf(types.SocketID(b.SocketID)), nil
	case builtinEvent:
		return reflect.ValueOf(types.Event(b.Event)), nil
	case builtinReason:
		if !b.HasReason {
			return reflect.Value{}, &errspkg.ReasonNotAvailableError{Event: b.Event}
		}
		return reflect.ValueOf(types.Reason(b.Reason)), nil
	case builtinEnviron:
		return reflect.ValueOf(types.Environ(b.Environ)), nil
	case builtinAuth:
		if !b.HasAuth {
			return reflect.Value{}, &errspkg.AuthNotAvailableError{Event: b.Event}
		}
		return valueOrZero(t, b.Auth), nil
	case builtinData:
		return valueOrZero(t, b.Data), nil
	case builtinServer:
		return valueOrZero(t, b.Server), nil
	}
	return reflect.Value{}, fmt.Errorf("sockwire: unknown builtin kind %d", kind)
}

func valueOrZero(t reflect.Type, v any) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return reflect.Zero(t)
}

func assignTo(t reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("resolved %T, want %s", v, t)
}

func cycleChain(stack []string, name string) []string {
	for i, entry := range stack {
		if entry == name {
			chain := make([]string, 0, len(stack)-i+1)
			chain = append(chain, stack[i:]...)
			return append(chain, name)
		}
	}
	chain := make([]string, 0, len(stack)+1)
	chain = append(chain, stack...)
	return append(chain, name)
}
