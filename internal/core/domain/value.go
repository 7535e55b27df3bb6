package domain

import (
	"bytes"
	"encoding/json"
	"strconv"

	"go.trai.ch/zerr"
)

// ValueKind discriminates the variants of Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindList
)

// String returns the lowercase kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// ErrUnsupportedValue is returned when a JSON document contains a shape the
// union does not model (currently: objects).
var ErrUnsupportedValue = zerr.New("unsupported value shape")

// Value is a tagged union over the JSON scalars and lists that appear in
// staged-change payloads: null, bool, int, double, string or a list of
// Values. It replaces "any JSON value" decoding with an explicit sum type.
// The zero Value is null.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	d    float64
	s    string
	list []Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue wraps an int64.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// DoubleValue wraps a float64.
func DoubleValue(d float64) Value { return Value{kind: KindDouble, d: d} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ListValue wraps a slice of Values.
func ListValue(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// Bool returns the bool variant; ok is false for any other kind.
func (v Value) Bool() (b bool, ok bool) { return v.b, v.kind == KindBool }

// Int returns the int variant; ok is false for any other kind.
func (v Value) Int() (i int64, ok bool) { return v.i, v.kind == KindInt }

// Double returns the double variant; ok is false for any other kind.
func (v Value) Double() (d float64, ok bool) { return v.d, v.kind == KindDouble }

// String returns the string variant; ok is false for any other kind.
func (v Value) String() (s string, ok bool) { return v.s, v.kind == KindString }

// List returns the list variant; ok is false for any other kind.
func (v Value) List() (vs []Value, ok bool) { return v.list, v.kind == KindList }

// Equal reports deep equality of two Values, including kind. An int and a
// double holding the same number are not equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindDouble:
		return v.d == o.d
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON emits the natural JSON form of the variant.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindDouble:
		return json.Marshal(v.d)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return nil, zerr.With(ErrUnsupportedValue, "kind", v.kind.String())
	}
}

// UnmarshalJSON decodes a JSON scalar or array into the union. Numbers
// without a fractional part become ints, everything else a double. Objects
// are rejected rather than silently flattened.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return zerr.Wrap(ErrUnsupportedValue, "empty value")
	}
	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return zerr.Wrap(err, "decoding bool value")
		}
		*v = BoolValue(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return zerr.Wrap(err, "decoding string value")
		}
		*v = StringValue(s)
		return nil
	case '[':
		var list []Value
		if err := json.Unmarshal(data, &list); err != nil {
			return zerr.Wrap(err, "decoding list value")
		}
		if list == nil {
			list = []Value{}
		}
		*v = Value{kind: KindList, list: list}
		return nil
	case '{':
		return zerr.With(ErrUnsupportedValue, "shape", "object")
	default:
		if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			*v = IntValue(i)
			return nil
		}
		d, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return zerr.Wrap(err, "decoding numeric value")
		}
		*v = DoubleValue(d)
		return nil
	}
}
