package tcpsub

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Codec translates a frame payload into a typed value and back.
// Applications may supply their own implementation through CustomCodecOption.
type Codec interface {
	// Name identifies the codec in logs and configuration.
	Name() string
	// Marshal encodes v into a payload.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes data into the value pointed to by v.
	Unmarshal(data []byte, v any) error
}

// TypeChecker is implemented by codecs that can tell, before any bytes are
// read, whether a type can be decoded at all.
type TypeChecker interface {
	CheckType(t reflect.Type) error
}

// Built-in codecs.
var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
	YAML Codec = yamlCodec{}
	TOML Codec = tomlCodec{}
)

// CodecByName returns the built-in codec registered under name.
func CodecByName(name string) (Codec, error) {
	for _, c := range []Codec{JSON, CBOR, YAML, TOML} {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, errors.Errorf("unknown codec %q", name)
}

// checkType verifies t against the codec, falling back to the rules shared by
// all reflection-based codecs.
func checkType(c Codec, t reflect.Type) error {
	if tc, ok := c.(TypeChecker); ok {
		return tc.CheckType(t)
	}
	return checkReflectType(t)
}

func checkReflectType(t reflect.Type) error {
	t = indirect(t)
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer,
		reflect.Complex64, reflect.Complex128, reflect.Invalid:
		return errors.Errorf("%s kind %s", t, t.Kind())
	case reflect.Interface:
		if t.NumMethod() > 0 {
			return errors.Errorf("%s is a non-empty interface", t)
		}
	}
	return nil
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct{}

func (cborCodec) Name() string                       { return "cbor" }
func (cborCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

type yamlCodec struct{}

func (yamlCodec) Name() string                       { return "yaml" }
func (yamlCodec) Marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

func (tomlCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (tomlCodec) Unmarshal(data []byte, v any) error {
	_, err := toml.Decode(string(data), v)
	return err
}

// CheckType accepts only tables: structs and string-keyed maps.
func (tomlCodec) CheckType(t reflect.Type) error {
	t = indirect(t)
	switch {
	case t.Kind() == reflect.Struct:
		return nil
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		return nil
	}
	return errors.Errorf("toml documents decode only into structs or string-keyed maps, not %s", t)
}
