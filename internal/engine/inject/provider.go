package inject

import (
	"context"
	"reflect"
	"runtime"
	"strings"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	"github.com/sockwire/sockwire/internal/engine/types"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()

	socketIDType = reflect.TypeOf(types.SocketID(""))
	eventType    = reflect.TypeOf(types.Event(""))
	reasonType   = reflect.TypeOf(types.Reason(""))
	environType  = reflect.TypeOf(types.Environ(nil))
	authType     = reflect.TypeOf((*types.Auth)(nil)).Elem()
	dataType     = reflect.TypeOf((*types.Data)(nil)).Elem()
	serverType   = reflect.TypeOf((*types.Server)(nil)).Elem()
)

// providerParamKind classifies one parameter of a provider function.
type providerParamKind int

const (
	providerParamContext providerParamKind = iota
	providerParamBuiltin
	providerParamDep
)

type providerParam struct {
	kind    providerParamKind
	builtin builtinKind
	typ     reflect.Type
}

// Provider is a callable producing a value, possibly depending on
// other providers. The signature is inspected once; resolution then
// follows the precomputed plan.
//
// Supported signatures, with deps standing for any number of built-in
// or dependency parameters and ctx being optional (suspending
// providers only):
//
//	func(ctx, deps...) T
//	func(ctx, deps...) (T, error)
//	func(ctx, deps...) (T, release)
//	func(ctx, deps...) (T, release, error)
//
// where release is func() or func() error and is run at context
// teardown in reverse acquisition order.
type Provider struct {
	fn         reflect.Value
	name       string
	suspending bool
	params     []providerParam
	args       []*Declaration

	hasRelease bool
	hasErr     bool
}

func newProvider(fn any) (*Provider, error) {
	if fn == nil {
		return nil, errspkg.ErrProviderNotFunc
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || t.IsVariadic() {
		return nil, errspkg.ErrProviderNotFunc
	}

	p := &Provider{fn: v, name: funcName(v)}

	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		switch {
		case in == contextType:
			if i != 0 {
				return nil, errspkg.ErrProviderNotFunc
			}
			p.suspending = true
			p.params = append(p.params, providerParam{kind: providerParamContext, typ: in})
		default:
			if kind, ok := builtinKindOf(in); ok {
				p.params = append(p.params, providerParam{kind: providerParamBuiltin, builtin: kind, typ: in})
			} else {
				p.params = append(p.params, providerParam{kind: providerParamDep, typ: in})
			}
		}
	}

	switch t.NumOut() {
	case 1:
	case 2:
		switch {
		case t.Out(1) == errorType:
			p.hasErr = true
		case isReleaseFunc(t.Out(1)):
			p.hasRelease = true
		default:
			return nil, errspkg.ErrProviderBadRelease
		}
	case 3:
		if !isReleaseFunc(t.Out(1)) {
			return nil, errspkg.ErrProviderBadRelease
		}
		if t.Out(2) != errorType {
			return nil, errspkg.ErrProviderNotFunc
		}
		p.hasRelease = true
		p.hasErr = true
	default:
		return nil, errspkg.ErrProviderNoResult
	}

	return p, nil
}

// key identifies the provider for caching and cycle detection. Two
// declarations wrapping the same function share one key, so a cached
// value is reused no matter how many parameters requested it.
func (p *Provider) key() uintptr { return p.fn.Pointer() }

// Name returns a human-readable provider name for diagnostics.
func (p *Provider) Name() string { return p.name }

// Suspending reports whether the provider takes a context.Context and
// may therefore suspend. Suspending providers are rejected under the
// parallel execution model.
func (p *Provider) Suspending() bool { return p.suspending }

func isReleaseFunc(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.IsVariadic() {
		return false
	}
	switch t.NumOut() {
	case 0:
		return true
	case 1:
		return t.Out(0) == errorType
	default:
		return false
	}
}

func funcName(v reflect.Value) string {
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return v.Type().String()
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// builtinKind enumerates the engine-populated values a parameter can
// request without a provider.
type builtinKind int

const (
	builtinSocketID builtinKind = iota
	builtinEvent
	builtinReason
	builtinEnviron
	builtinAuth
	builtinData
	builtinServer
)

func builtinKindOf(t reflect.Type) (builtinKind, bool) {
	switch t {
	case socketIDType:
		return builtinSocketID, true
	case eventType:
		return builtinEvent, true
	case reasonType:
		return builtinReason, true
	case environType:
		return builtinEnviron, true
	case authType:
		return builtinAuth, true
	case dataType:
		return builtinData, true
	case serverType:
		return builtinServer, true
	}
	return 0, false
}
