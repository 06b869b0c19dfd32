// Package codec converts records to the JSON wire format and decodes server
// responses into a generic value tree.
//
// Responses differ in shape per endpoint (a document, a listing, an error
// document), so decoding never targets a fixed struct. Callers use the typed
// accessors on Object and Array instead.
package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is one node of a decoded JSON document. The set of implementations
// is closed: Null, Bool, Number, String, Array and Object.
type Value interface {
	Kind() Kind
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number keeps the literal text of a JSON number so integers and floats
// survive a round trip without precision loss.
type Number string

// String is a JSON string.
type String string

// Array is a JSON array.
type Array []Value

// Object is a JSON object.
type Object map[string]Value

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON writes the number literal unchanged.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	if _, err := strconv.ParseFloat(string(n), 64); err != nil {
		return nil, fmt.Errorf("invalid number literal %q", string(n))
	}
	return []byte(n), nil
}

// IsInteger reports whether the literal has no fraction or exponent.
func (n Number) IsInteger() bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// Int64 parses the literal as an integer.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Uint64 parses the literal as an unsigned integer.
func (n Number) Uint64() (uint64, error) {
	return strconv.ParseUint(string(n), 10, 64)
}

// Float64 parses the literal as a float.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// AsObject returns v as an Object when it is one.
func AsObject(v Value) (Object, bool) {
	o, ok := v.(Object)
	return o, ok
}

// AsArray returns v as an Array when it is one.
func AsArray(v Value) (Array, bool) {
	a, ok := v.(Array)
	return a, ok
}

// IsNull reports whether v is absent or the null literal.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Get returns the value stored under key, or Null when the key is absent.
func (o Object) Get(key string) Value {
	if v, ok := o[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// Has reports whether key is present, even when its value is null.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Str returns the string stored under key.
func (o Object) Str(key string) (string, bool) {
	s, ok := o[key].(String)
	return string(s), ok
}

// Bool returns the boolean stored under key.
func (o Object) Bool(key string) (bool, bool) {
	b, ok := o[key].(Bool)
	return bool(b), ok
}

// Number returns the number stored under key.
func (o Object) Number(key string) (Number, bool) {
	n, ok := o[key].(Number)
	return n, ok
}

// Array returns the array stored under key.
func (o Object) Array(key string) (Array, bool) {
	a, ok := o[key].(Array)
	return a, ok
}

// Object returns the nested object stored under key.
func (o Object) Object(key string) (Object, bool) {
	n, ok := o[key].(Object)
	return n, ok
}

// Strings returns the elements of a when every one of them is a string.
func (a Array) Strings() ([]string, bool) {
	out := make([]string, 0, len(a))
	for _, v := range a {
		s, ok := v.(String)
		if !ok {
			return nil, false
		}
		out = append(out, string(s))
	}
	return out, true
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = clone(v)
	}
	return out
}

// Clone returns a deep copy of a.
func (a Array) Clone() Array {
	if a == nil {
		return nil
	}
	out := make(Array, len(a))
	for i, v := range a {
		out[i] = clone(v)
	}
	return out
}

func clone(v Value) Value {
	switch t := v.(type) {
	case Object:
		return t.Clone()
	case Array:
		return t.Clone()
	}
	return v
}
