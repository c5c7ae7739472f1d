package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is implemented by decoder number types (encoding/json.Number and
// its drop-in replacements) so integer literals stay integers.
type Number interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// FromNative converts decoder output into a Value. Unsupported Go types map
// to Undefined.
func FromNative(x any) Value {
	switch t := x.(type) {
	case nil:
		return Undefined()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return uintValue(uint64(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return uintValue(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case Number:
		return numberValue(t)
	case string:
		return String(t)
	case time.Time:
		return Date(t)
	case []byte:
		return Data(append([]byte(nil), t...))
	case []any:
		out := make([]Value, 0, len(t))
		for _, item := range t {
			out = append(out, FromNative(item))
		}
		return Array(out...)
	case []string:
		return Strings(t...)
	case []map[string]any:
		out := make([]Value, 0, len(t))
		for _, item := range t {
			out = append(out, FromNative(item))
		}
		return Array(out...)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			out[k] = FromNative(item)
		}
		return Dictionary(out)
	case map[string]string:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			out[k] = String(item)
		}
		return Dictionary(out)
	case map[any]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = FromNative(item)
		}
		return Dictionary(out)
	}
	return Undefined()
}

func uintValue(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

func numberValue(n Number) Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i)
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return Undefined()
}

// ToNative converts v back into plain Go values: bool, int64, float64,
// string, time.Time, []byte, []any and map[string]any.
func (v Value) ToNative() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeInteger:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	case TypeDate:
		return v.t
	case TypeData:
		return append([]byte(nil), v.data...)
	case TypeArray:
		out := make([]any, 0, len(v.arr))
		for _, item := range v.arr {
			out = append(out, item.ToNative())
		}
		return out
	case TypeDictionary:
		out := make(map[string]any, len(v.dict))
		for k, item := range v.dict {
			out[k] = item.ToNative()
		}
		return out
	}
	return nil
}
