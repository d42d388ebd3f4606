// Package validate provides the default payload validator: JSON
// payloads are decoded into the declared schema with sonic and checked
// with go-playground struct tags; protobuf schemas go through
// protojson.
package validate

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	"github.com/sockwire/sockwire/internal/engine/jsoncodec"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// SchemaValidator is the default implementation of the engine's
// payload validation boundary.
type SchemaValidator struct {
	validate *validator.Validate
}

// New returns a SchemaValidator with struct tag validation enabled.
func New() *SchemaValidator {
	return &SchemaValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate decodes the payload into a new instance of the schema type
// and checks it. The returned value is assignable to the schema type.
// Failures come back as *errors.ValidationError; the handler must not
// run when an error is returned.
func (v *SchemaValidator) Validate(schema reflect.Type, payload any) (any, error) {
	if schema == nil {
		return nil, fmt.Errorf("sockwire: schema type is required")
	}
	if schema.Implements(protoMessageType) {
		return v.validateProto(schema, payload)
	}
	return v.validateStruct(schema, payload)
}

func (v *SchemaValidator) validateProto(schema reflect.Type, payload any) (any, error) {
	if schema.Kind() != reflect.Pointer {
		return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: fmt.Errorf("proto schema must be a pointer type")}
	}
	raw, err := rawJSON(payload)
	if err != nil {
		return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: err}
	}

	msg := reflect.New(schema.Elem()).Interface().(proto.Message)
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: err}
	}
	return msg, nil
}

func (v *SchemaValidator) validateStruct(schema reflect.Type, payload any) (any, error) {
	target := schema
	ptr := schema.Kind() == reflect.Pointer
	if ptr {
		target = schema.Elem()
	}

	var value any
	switch raw := payload.(type) {
	case nil:
		return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: fmt.Errorf("no payload available")}
	case []byte:
		out := reflect.New(target)
		if err := jsoncodec.Unmarshal(raw, out.Interface()); err != nil {
			return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: err}
		}
		value = out.Interface()
	case string:
		out := reflect.New(target)
		if err := jsoncodec.Unmarshal([]byte(raw), out.Interface()); err != nil {
			return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: err}
		}
		value = out.Interface()
	default:
		decoded, err := jsoncodec.Remarshal(payload, target)
		if err != nil {
			return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: err}
		}
		boxed := reflect.New(target)
		boxed.Elem().Set(reflect.ValueOf(decoded))
		value = boxed.Interface()
	}

	if target.Kind() == reflect.Struct {
		if err := v.validate.Struct(value); err != nil {
			return nil, &errspkg.ValidationError{Schema: schema.String(), Cause: err}
		}
	}

	if ptr {
		return value, nil
	}
	return reflect.ValueOf(value).Elem().Interface(), nil
}

func rawJSON(payload any) ([]byte, error) {
	switch raw := payload.(type) {
	case nil:
		return nil, fmt.Errorf("no payload available")
	case []byte:
		return raw, nil
	case string:
		return []byte(raw), nil
	default:
		return jsoncodec.Marshal(payload)
	}
}
