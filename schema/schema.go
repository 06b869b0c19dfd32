// Package schema validates documents against a JSON Schema subset. The
// emulator uses it to reject writes to databases that declare a schema,
// the way a CouchDB validation function answers with `forbidden`.
package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/stevemurr/docsource/codec"
)

// Schema is a decoded JSON Schema document.
type Schema = codec.Object

// ValidationError locates the first violation in a document.
type ValidationError struct {
	Path string
	Msg  string
}

func (e *ValidationError) Error() string {
	return e.Path + ": " + e.Msg
}

func violation(path, format string, args ...any) error {
	return &ValidationError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Load reads a schema from a JSON file.
func Load(path string) (Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := codec.DecodeStrict(raw)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	s, ok := codec.AsObject(v)
	if !ok {
		return nil, fmt.Errorf("schema %s: expected object, got %s", path, v.Kind())
	}
	return s, nil
}

// Validate checks doc against s. A nil schema accepts everything.
//
// Supported keywords:
//   - type (string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties
//   - items
//   - minimum, maximum, exclusiveMinimum, exclusiveMaximum
//   - minLength, maxLength, minItems, maxItems
//   - enum
func Validate(s Schema, doc codec.Value) error {
	if s == nil {
		return nil
	}
	return validateValue(s, doc, "$")
}

func validateValue(s Schema, value codec.Value, path string) error {
	if value == nil {
		value = codec.Null{}
	}
	if t, ok := s.Str("type"); ok {
		if err := checkType(t, value, path); err != nil {
			return err
		}
	}
	if allowed, ok := s.Array("enum"); ok {
		if err := checkEnum(allowed, value, path); err != nil {
			return err
		}
	}

	switch v := value.(type) {
	case codec.Object:
		return validateObject(s, v, path)
	case codec.Array:
		return validateArray(s, v, path)
	case codec.String:
		return validateString(s, string(v), path)
	case codec.Number:
		f, err := v.Float64()
		if err != nil {
			return violation(path, "invalid number %s", string(v))
		}
		return validateNumber(s, f, path)
	}
	return nil
}

func checkType(expected string, value codec.Value, path string) error {
	actual := jsonType(value)
	switch {
	case actual == expected:
		return nil
	case expected == "number" && actual == "integer":
		return nil
	case expected == "integer" && actual == "number":
		// 5.0 is still an integer
		if f, err := value.(codec.Number).Float64(); err == nil && f == float64(int64(f)) {
			return nil
		}
	}
	return violation(path, "expected type %q, got %q", expected, actual)
}

func jsonType(v codec.Value) string {
	switch t := v.(type) {
	case codec.Object:
		return "object"
	case codec.Array:
		return "array"
	case codec.String:
		return "string"
	case codec.Bool:
		return "boolean"
	case codec.Number:
		if t.IsInteger() {
			return "integer"
		}
		return "number"
	}
	return "null"
}

func checkEnum(allowed codec.Array, value codec.Value, path string) error {
	for _, a := range allowed {
		if equal(a, value) {
			return nil
		}
	}
	raw, _ := codec.Encode(allowed)
	return violation(path, "value not in enum %s", raw)
}

// equal compares two values structurally; numbers compare by value.
func equal(a, b codec.Value) bool {
	if a == nil {
		a = codec.Null{}
	}
	if b == nil {
		b = codec.Null{}
	}
	switch x := a.(type) {
	case codec.Number:
		y, ok := b.(codec.Number)
		if !ok {
			return false
		}
		fx, errX := x.Float64()
		fy, errY := y.Float64()
		return errX == nil && errY == nil && fx == fy
	case codec.Array:
		y, ok := b.(codec.Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case codec.Object:
		y, ok := b.(codec.Object)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return a == b
}

func validateObject(s Schema, obj codec.Object, path string) error {
	if required, ok := s.Array("required"); ok {
		for _, r := range required {
			field, ok := r.(codec.String)
			if !ok {
				continue
			}
			if !obj.Has(string(field)) {
				return violation(path, "missing required field %q", string(field))
			}
		}
	}

	props, _ := s.Object("properties")
	for _, field := range sortedKeys(props) {
		val, exists := obj[field]
		if !exists {
			continue
		}
		ps, ok := codec.AsObject(props[field])
		if !ok {
			continue
		}
		if err := validateValue(ps, val, path+"."+field); err != nil {
			return err
		}
	}

	if allowed, ok := s.Bool("additionalProperties"); ok && !allowed {
		var extra []string
		for _, field := range sortedKeys(obj) {
			if !props.Has(field) {
				extra = append(extra, field)
			}
		}
		if len(extra) > 0 {
			return violation(path, "additional properties not allowed: %s", strings.Join(extra, ", "))
		}
	}
	return nil
}

func sortedKeys(o codec.Object) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateArray(s Schema, arr codec.Array, path string) error {
	if v, ok := limit(s, "minItems"); ok && float64(len(arr)) < v {
		return violation(path, "array length %d is less than minItems %v", len(arr), v)
	}
	if v, ok := limit(s, "maxItems"); ok && float64(len(arr)) > v {
		return violation(path, "array length %d is greater than maxItems %v", len(arr), v)
	}
	if itemSchema, ok := s.Object("items"); ok {
		for i, elem := range arr {
			if err := validateValue(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateString(s Schema, str string, path string) error {
	n := utf8.RuneCountInString(str)
	if v, ok := limit(s, "minLength"); ok && float64(n) < v {
		return violation(path, "string length %d is less than minLength %v", n, v)
	}
	if v, ok := limit(s, "maxLength"); ok && float64(n) > v {
		return violation(path, "string length %d is greater than maxLength %v", n, v)
	}
	return nil
}

func validateNumber(s Schema, n float64, path string) error {
	if v, ok := limit(s, "minimum"); ok && n < v {
		return violation(path, "%v is less than minimum %v", n, v)
	}
	if v, ok := limit(s, "maximum"); ok && n > v {
		return violation(path, "%v is greater than maximum %v", n, v)
	}
	if v, ok := limit(s, "exclusiveMinimum"); ok && n <= v {
		return violation(path, "%v is not greater than exclusiveMinimum %v", n, v)
	}
	if v, ok := limit(s, "exclusiveMaximum"); ok && n >= v {
		return violation(path, "%v is not less than exclusiveMaximum %v", n, v)
	}
	return nil
}

func limit(s Schema, keyword string) (float64, bool) {
	n, ok := s.Number(keyword)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}
