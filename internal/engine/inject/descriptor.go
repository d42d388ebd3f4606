package inject

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	"github.com/sockwire/sockwire/internal/engine/types"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// ParamKind is the static classification of one handler parameter.
type ParamKind int

const (
	// ParamContext is a leading context.Context parameter; it marks
	// the handler as suspending.
	ParamContext ParamKind = iota
	// ParamBuiltin is an engine-populated value (socket id, event
	// name, payload, environ, auth, reason, server handle).
	ParamBuiltin
	// ParamDependency is bound to a Declaration and resolved through
	// the provider graph.
	ParamDependency
	// ParamModel is a structured schema populated from the payload by
	// the external validator.
	ParamModel
	// ParamPlain has no special handling; it receives the raw payload
	// when assignable and the zero value otherwise.
	ParamPlain
)

type descriptorParam struct {
	kind    ParamKind
	builtin builtinKind
	typ     reflect.Type
	decl    *Declaration
}

// Descriptor is the static introspection of a handler: one tagged
// variant per parameter, derived once at registration and reused for
// every invocation.
type Descriptor struct {
	fn         reflect.Value
	name       string
	suspending bool
	params     []descriptorParam

	modelIndex int
	modelType  reflect.Type

	outValue bool
	outErr   bool
}

// NewDescriptor inspects a handler registered for the given event.
// Explicit declarations bind to non-builtin parameters in order;
// remaining parameters fall back to the registry's type-keyed
// providers, then to schema or plain classification.
func NewDescriptor(fn any, event string, decls []*Declaration, registry *Registry) (*Descriptor, error) {
	if fn == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || t.IsVariadic() {
		return nil, errspkg.ErrHandlerNotFunc
	}

	d := &Descriptor{fn: v, name: funcName(v), modelIndex: -1}
	lifecycle := event == types.EventConnect || event == types.EventDisconnect
	declQueue := decls

	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)

		if in == contextType {
			if i != 0 {
				return nil, errspkg.ErrHandlerNotFunc
			}
			d.suspending = true
			d.params = append(d.params, descriptorParam{kind: ParamContext, typ: in})
			continue
		}

		if kind, ok := builtinKindOf(in); ok {
			d.params = append(d.params, descriptorParam{kind: ParamBuiltin, builtin: kind, typ: in})
			continue
		}

		if len(declQueue) > 0 {
			d.params = append(d.params, descriptorParam{kind: ParamDependency, typ: in, decl: declQueue[0]})
			declQueue = declQueue[1:]
			continue
		}

		if registry != nil {
			if decl, ok := registry.ForType(in); ok {
				d.params = append(d.params, descriptorParam{kind: ParamDependency, typ: in, decl: decl})
				continue
			}
		}

		if isSchemaType(in) && d.modelIndex < 0 {
			d.modelIndex = len(d.params)
			d.modelType = in
			d.params = append(d.params, descriptorParam{kind: ParamModel, typ: in})
			continue
		}

		if isSchemaType(in) && !lifecycle {
			return nil, errspkg.ErrTooManyModelParams
		}

		d.params = append(d.params, descriptorParam{kind: ParamPlain, typ: in})
	}

	if len(declQueue) > 0 {
		return nil, fmt.Errorf("sockwire: handler %s: %d unbound dependency declarations", d.name, len(declQueue))
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			d.outErr = true
		} else {
			d.outValue = true
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, errspkg.ErrHandlerNotFunc
		}
		d.outValue = true
		d.outErr = true
	default:
		return nil, errspkg.ErrHandlerNotFunc
	}

	return d, nil
}

// Name returns the handler function name for diagnostics.
func (d *Descriptor) Name() string { return d.name }

// Suspending reports whether the handler takes a context.Context.
func (d *Descriptor) Suspending() bool { return d.suspending }

// HasModel reports whether a parameter requires payload validation.
func (d *Descriptor) HasModel() bool { return d.modelIndex >= 0 }

// ModelType returns the schema target type, or nil.
func (d *Descriptor) ModelType() reflect.Type { return d.modelType }

// ResolveArgs materialises every argument except the model slot, which
// the engine fills after the external validator accepted the payload.
func (d *Descriptor) ResolveArgs(r *Resolver) ([]reflect.Value, error) {
	if d.suspending && r.Ctx.parallel {
		return nil, &errspkg.SyncAsyncMismatchError{Provider: d.name}
	}

	args := make([]reflect.Value, len(d.params))
	for i, param := range d.params {
		switch param.kind {
		case ParamContext:
			args[i] = reflect.ValueOf(r.Ctx.std)

		case ParamBuiltin:
			v, err := builtinValue(param.builtin, param.typ, r.Ctx.builtins)
			if err != nil {
				return nil, err
			}
			args[i] = v

		case ParamDependency:
			resolved, err := r.Resolve(param.decl)
			if err != nil {
				return nil, err
			}
			v, err := assignTo(param.typ, resolved)
			if err != nil {
				return nil, fmt.Errorf("sockwire: handler %s: %w", d.name, err)
			}
			args[i] = v

		case ParamModel:
			// Filled by SetModel after validation.
			args[i] = reflect.Zero(param.typ)

		case ParamPlain:
			args[i] = valueOrZero(param.typ, r.Ctx.builtins.Data)
		}
	}
	return args, nil
}

// SetModel stores the validated payload into the model slot.
func (d *Descriptor) SetModel(args []reflect.Value, v any) error {
	if d.modelIndex < 0 {
		return nil
	}
	value, err := assignTo(d.modelType, v)
	if err != nil {
		return &errspkg.ValidationError{Schema: d.modelType.String(), Cause: err}
	}
	args[d.modelIndex] = value
	return nil
}

// Invoke calls the handler with fully resolved arguments and unpacks
// its results into (response, error).
func (d *Descriptor) Invoke(args []reflect.Value) (any, error) {
	out := d.fn.Call(args)

	var resp any
	var err error
	idx := 0
	if d.outValue {
		resp = out[idx].Interface()
		idx++
	}
	if d.outErr {
		if errv := out[idx]; !errv.IsNil() {
			err = errv.Interface().(error)
		}
	}
	return resp, err
}

// isSchemaType reports whether the type is a structured schema: a
// protobuf message or a struct (optionally behind one pointer).
func isSchemaType(t reflect.Type) bool {
	if t.Implements(protoMessageType) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
