package value

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Value is the tagged union every schema dictionary and leaf value is
// expressed in. The zero Value is Undefined. Values are treated as
// immutable: slices and maps returned by accessors must not be modified.
type Value struct {
	typ  Type
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	data []byte
	arr  []Value
	dict map[string]Value
}

func Undefined() Value { return Value{} }

func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

func Int(i int64) Value { return Value{typ: TypeInteger, i: i} }

func Float(f float64) Value { return Value{typ: TypeFloat, f: f} }

func String(s string) Value { return Value{typ: TypeString, s: s} }

func Date(t time.Time) Value { return Value{typ: TypeDate, t: t} }

func Data(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{typ: TypeData, data: b}
}

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{typ: TypeArray, arr: items}
}

func Dictionary(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{typ: TypeDictionary, dict: m}
}

// Strings builds an array of string values.
func Strings(items ...string) Value {
	out := make([]Value, 0, len(items))
	for _, s := range items {
		out = append(out, String(s))
	}
	return Array(out...)
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsUndefined() bool { return v.typ == TypeUndefined }

func (v Value) AsBool() (bool, bool) { return v.b, v.typ == TypeBool }

func (v Value) AsInt() (int64, bool) { return v.i, v.typ == TypeInteger }

func (v Value) AsFloat() (float64, bool) { return v.f, v.typ == TypeFloat }

func (v Value) AsString() (string, bool) { return v.s, v.typ == TypeString }

func (v Value) AsDate() (time.Time, bool) { return v.t, v.typ == TypeDate }

func (v Value) AsData() ([]byte, bool) { return v.data, v.typ == TypeData }

func (v Value) AsArray() ([]Value, bool) { return v.arr, v.typ == TypeArray }

func (v Value) AsDictionary() (map[string]Value, bool) { return v.dict, v.typ == TypeDictionary }

// AsStrings returns the string elements of an array value, or false when
// the value is not an array of strings.
func (v Value) AsStrings() ([]string, bool) {
	if v.typ != TypeArray {
		return nil, false
	}
	out := make([]string, 0, len(v.arr))
	for _, item := range v.arr {
		s, ok := item.AsString()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// AsDictionaries returns the elements of an array of dictionaries.
func (v Value) AsDictionaries() ([]map[string]Value, bool) {
	if v.typ != TypeArray {
		return nil, false
	}
	out := make([]map[string]Value, 0, len(v.arr))
	for _, item := range v.arr {
		d, ok := item.AsDictionary()
		if !ok {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}

// Get looks up key in a dictionary value.
func (v Value) Get(key string) (Value, bool) {
	if v.typ != TypeDictionary {
		return Value{}, false
	}
	item, ok := v.dict[key]
	return item, ok
}

// Len is the element count of arrays and dictionaries, the byte length of
// data and strings, and zero otherwise.
func (v Value) Len() int {
	switch v.typ {
	case TypeArray:
		return len(v.arr)
	case TypeDictionary:
		return len(v.dict)
	case TypeData:
		return len(v.data)
	case TypeString:
		return len(v.s)
	}
	return 0
}

// Keys returns the sorted keys of a dictionary value.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.dict))
	for k := range v.dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(v.s)
	case TypeDate:
		return v.t.UTC().Format(time.RFC3339)
	case TypeData:
		return fmt.Sprintf("<%d bytes>", len(v.data))
	case TypeArray:
		parts := make([]string, 0, len(v.arr))
		for _, item := range v.arr {
			parts = append(parts, item.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeDictionary:
		parts := make([]string, 0, len(v.dict))
		for _, k := range v.Keys() {
			parts = append(parts, strconv.Quote(k)+": "+v.dict[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "undefined"
}

// Equal reports deep structural equality. Int and Float never compare equal.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeUndefined:
		return true
	case TypeBool:
		return a.b == b.b
	case TypeInteger:
		return a.i == b.i
	case TypeFloat:
		return a.f == b.f
	case TypeString:
		return a.s == b.s
	case TypeDate:
		return a.t.Equal(b.t)
	case TypeData:
		return bytes.Equal(a.data, b.data)
	case TypeArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case TypeDictionary:
		if len(a.dict) != len(b.dict) {
			return false
		}
		for k, av := range a.dict {
			bv, ok := b.dict[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Index returns the position of v in items, or -1.
func Index(items []Value, v Value) int {
	for i, item := range items {
		if Equal(item, v) {
			return i
		}
	}
	return -1
}

// Contains reports whether items holds a value equal to v.
func Contains(items []Value, v Value) bool {
	return Index(items, v) >= 0
}
