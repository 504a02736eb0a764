package tcpsub

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"json", "cbor", "yaml", "toml"} {
		codec, err := CodecByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, codec.Name())
	}

	_, err := CodecByName("xml")
	assert.Error(t, err)
}

func TestCheckReflectType(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		ok   bool
	}{
		{"struct", reflect.TypeOf((*sensorReading)(nil)).Elem(), true},
		{"pointer to struct", reflect.TypeOf((**sensorReading)(nil)).Elem(), true},
		{"map", reflect.TypeOf((*map[string]int)(nil)).Elem(), true},
		{"slice", reflect.TypeOf((*[]byte)(nil)).Elem(), true},
		{"string", reflect.TypeOf((*string)(nil)).Elem(), true},
		{"empty interface", reflect.TypeOf((*any)(nil)).Elem(), true},
		{"chan", reflect.TypeOf((*chan int)(nil)).Elem(), false},
		{"pointer to chan", reflect.TypeOf((**chan int)(nil)).Elem(), false},
		{"func", reflect.TypeOf((*func() error)(nil)).Elem(), false},
		{"complex", reflect.TypeOf((*complex128)(nil)).Elem(), false},
		{"unsafe pointer", reflect.TypeOf((*unsafe.Pointer)(nil)).Elem(), false},
		{"non-empty interface", reflect.TypeOf((*error)(nil)).Elem(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkReflectType(tt.typ)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTOMLCheckType(t *testing.T) {
	checker, ok := TOML.(TypeChecker)
	require.True(t, ok, "toml codec should check types")

	assert.NoError(t, checker.CheckType(reflect.TypeOf((*sensorReading)(nil)).Elem()))
	assert.NoError(t, checker.CheckType(reflect.TypeOf((**sensorReading)(nil)).Elem()))
	assert.NoError(t, checker.CheckType(reflect.TypeOf((*map[string]any)(nil)).Elem()))
	assert.Error(t, checker.CheckType(reflect.TypeOf((*string)(nil)).Elem()))
	assert.Error(t, checker.CheckType(reflect.TypeOf((*any)(nil)).Elem()))
}

// stringCodec is a custom codec that decodes only into strings.
type stringCodec struct{}

func (stringCodec) Name() string                  { return "string" }
func (stringCodec) Marshal(v any) ([]byte, error) { return []byte(v.(string)), nil }
func (stringCodec) Unmarshal(data []byte, v any) error {
	*(v.(*string)) = string(data)
	return nil
}
func (stringCodec) CheckType(t reflect.Type) error {
	if t.Kind() != reflect.String {
		return errors.Errorf("string codec cannot decode into %s", t)
	}
	return nil
}

func TestCheckType_CustomCodec(t *testing.T) {
	assert.NoError(t, checkType(stringCodec{}, reflect.TypeOf((*string)(nil)).Elem()))
	assert.Error(t, checkType(stringCodec{}, reflect.TypeOf((*int)(nil)).Elem()))

	// Codecs without a checker get the shared reflection rules.
	assert.NoError(t, checkType(JSON, reflect.TypeOf((*int)(nil)).Elem()))
	assert.Error(t, checkType(JSON, reflect.TypeOf((*chan int)(nil)).Elem()))
}

func TestReadDecoded_CustomCodec(t *testing.T) {
	r, peer := newTestReader(t, CustomCodecOption(stringCodec{}))

	require.NoError(t, WriteFrame(peer, []byte("plain")))

	_, err := ReadDecoded[int](r)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	got, err := ReadDecoded[string](r)
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}
