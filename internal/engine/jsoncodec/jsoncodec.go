// Package jsoncodec centralises JSON handling so the engine and the
// managers agree on one codec.
package jsoncodec

import (
	"io"
	"reflect"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return defaultConfig.NewDecoder(r).Decode(v)
}

// Remarshal converts an already-decoded payload (maps, slices,
// strings) into a new value of the given type. The validator uses this
// to turn a generic payload into a concrete schema instance.
func Remarshal(payload any, target reflect.Type) (any, error) {
	raw, err := Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := reflect.New(target)
	if err := Unmarshal(raw, out.Interface()); err != nil {
		return nil, err
	}
	return out.Elem().Interface(), nil
}
