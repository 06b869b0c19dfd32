package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/goccy/go-json"
)

// ErrTrailingData is returned by DecodeStrict when the payload holds more
// than one JSON value.
var ErrTrailingData = errors.New("codec: trailing data after JSON value")

// Encode serializes a record (or any Value) to the wire format. Whole
// floats are written with a fraction so they decode as floats again.
func Encode(v any) ([]byte, error) {
	tree, err := FromNative(v)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return b, nil
}

// Decode parses a wire payload into a value tree. Malformed or empty input
// yields Null; callers probe the shape of the result instead of handling a
// decode error.
func Decode(data []byte) Value {
	v, err := DecodeStrict(data)
	if err != nil {
		return Null{}
	}
	return v
}

// DecodeStrict is Decode with the parse error reported.
func DecodeStrict(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null{}, fmt.Errorf("codec: decode: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Null{}, ErrTrailingData
	}
	return FromNative(raw)
}

// FromNative converts plain Go values (as produced by encoding/json style
// decoding, or as held in a caller's record) into a value tree.
func FromNative(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case int:
		return Number(fmt.Sprint(t)), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Number(fmt.Sprint(t)), nil
	case float32:
		return floatNumber(float64(t))
	case float64:
		return floatNumber(t)
	case []any:
		arr := make(Array, len(t))
		for i, e := range t {
			ev, err := FromNative(e)
			if err != nil {
				return nil, err
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(t))
		for k, e := range t {
			ev, err := FromNative(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	}
	// Number literals from other decoders.
	if n, ok := v.(numberLiteral); ok {
		return Number(n.String()), nil
	}
	// Named map and slice types (records, nested records) go through reflection.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		obj := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev, err := FromNative(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", iter.Key().String(), err)
			}
			obj[iter.Key().String()] = ev
		}
		return obj, nil
	case reflect.Slice, reflect.Array:
		arr := make(Array, rv.Len())
		for i := range arr {
			ev, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			arr[i] = ev
		}
		return arr, nil
	}
	return nil, fmt.Errorf("codec: unsupported type %T", v)
}

type numberLiteral interface {
	Float64() (float64, error)
	Int64() (int64, error)
	String() string
}

func floatNumber(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("codec: %v is not representable in JSON", f)
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	n := Number(b)
	if n.IsInteger() {
		// Keep float-ness visible so Native returns a float64 again.
		n += ".0"
	}
	return n, nil
}

// Native converts a value tree back into plain Go values: objects become
// map[string]any, arrays []any, integer literals int64 (uint64 above the
// int64 range) and other numbers float64. Integers outside both ranges stay
// Number so their digits survive.
func Native(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case String:
		return string(t)
	case Number:
		if t.IsInteger() {
			if i, err := t.Int64(); err == nil {
				return i
			}
			if u, err := t.Uint64(); err == nil {
				return u
			}
			return t
		}
		f, _ := t.Float64()
		return f
	case Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Native(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Native(e)
		}
		return out
	}
	return nil
}
