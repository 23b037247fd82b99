// Package json implements a small, lenient JSON value parser. It accepts a
// superset of RFC 8259 because the OAuth core must tolerate the way some
// real Authorization Servers (and this library's own persisted
// configuration) format JSON: unquoted object keys, comments, a leading
// '+' on numbers, and case-insensitive literals. See Value and Parse.
package json

import "fmt"

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
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
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged JSON value tree node.
//
// Objects preserve insertion order via Keys alongside the Obj map; Parse
// rejects duplicate keys outright, so Keys and the map are always in
// bijection.
type Value struct {
	kind Kind

	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	keys []string
	obj  map[string]Value
}

// Kind reports the variant held.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v holds the JSON null literal.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean value and whether v is KindBool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer value and whether v is KindInt.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the floating value. It also succeeds (with a lossless
// conversion) for KindInt, since "a number" is often what callers want
// regardless of how it was written on the wire.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// String returns the string value and whether v is KindString.
func (v Value) String() (string, bool) { return v.s, v.kind == KindString }

// Array returns the element slice and whether v is KindArray.
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Keys returns the object's keys in insertion order, or nil if not an object.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.keys
}

// Field looks up a key on an object value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	val, ok := v.obj[key]
	return val, ok
}

// GoString renders a debug representation (not the wire format).
func (v Value) GoString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindObject:
		return fmt.Sprintf("%v", v.keys)
	default:
		return "<invalid>"
	}
}
