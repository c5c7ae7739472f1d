package processor

import (
	"bytes"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"profilepayloads/internal/codec"
	"profilepayloads/internal/value"
)

var defaultTable = Table{
	{value.TypeInteger, value.TypeBool}: func(v value.Value) (value.Value, bool) {
		i, _ := v.AsInt()
		return value.Bool(i != 0), true
	},
	{value.TypeInteger, value.TypeFloat}: func(v value.Value) (value.Value, bool) {
		i, _ := v.AsInt()
		return value.Float(float64(i)), true
	},
	{value.TypeInteger, value.TypeString}: func(v value.Value) (value.Value, bool) {
		i, _ := v.AsInt()
		return value.String(strconv.FormatInt(i, 10)), true
	},
	{value.TypeInteger, value.TypeDate}: func(v value.Value) (value.Value, bool) {
		i, _ := v.AsInt()
		return value.Date(time.Unix(i, 0)), true
	},
	{value.TypeBool, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
		if b, _ := v.AsBool(); b {
			return value.Int(1), true
		}
		return value.Int(0), true
	},
	{value.TypeBool, value.TypeString}: func(v value.Value) (value.Value, bool) {
		b, _ := v.AsBool()
		return value.String(strconv.FormatBool(b)), true
	},
	{value.TypeFloat, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
		f, _ := v.AsFloat()
		return value.Int(int64(f)), true
	},
	{value.TypeFloat, value.TypeString}: func(v value.Value) (value.Value, bool) {
		f, _ := v.AsFloat()
		return value.String(strconv.FormatFloat(f, 'g', -1, 64)), true
	},
	{value.TypeString, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
		s, _ := v.AsString()
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return value.Undefined(), false
		}
		return value.Int(i), true
	},
	{value.TypeString, value.TypeFloat}: func(v value.Value) (value.Value, bool) {
		s, _ := v.AsString()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return value.Undefined(), false
		}
		return value.Float(f), true
	},
	{value.TypeString, value.TypeBool}: func(v value.Value) (value.Value, bool) {
		s, _ := v.AsString()
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return value.Undefined(), false
		}
		return value.Bool(b), true
	},
	{value.TypeString, value.TypeArray}: func(v value.Value) (value.Value, bool) {
		return value.Array(v), true
	},
	{value.TypeString, value.TypeData}: func(v value.Value) (value.Value, bool) {
		s, _ := v.AsString()
		return value.Data([]byte(s)), true
	},
	{value.TypeData, value.TypeString}: func(v value.Value) (value.Value, bool) {
		b, _ := v.AsData()
		if !utf8.Valid(b) {
			return value.Undefined(), false
		}
		return value.String(string(b)), true
	},
	{value.TypeData, value.TypeDictionary}: func(v value.Value) (value.Value, bool) {
		b, _ := v.AsData()
		// archives are binary property lists
		if !bytes.HasPrefix(b, []byte("bplist")) {
			return value.Undefined(), false
		}
		return decodePlistDictionary(b)
	},
	{value.TypeDictionary, value.TypeData}: func(v value.Value) (value.Value, bool) {
		blob, err := codec.EncodeBinaryPlist(v)
		if err != nil {
			return value.Undefined(), false
		}
		return value.Data(blob), true
	},
	{value.TypeDictionary, value.TypeArray}: func(v value.Value) (value.Value, bool) {
		dict, _ := v.AsDictionary()
		out := make([]value.Value, 0, len(dict)*2)
		for _, k := range v.Keys() {
			out = append(out, value.String(k), dict[k])
		}
		return value.Array(out...), true
	},
	{value.TypeArray, value.TypeString}: func(v value.Value) (value.Value, bool) {
		items, _ := v.AsArray()
		var parts []string
		for _, item := range items {
			if s, ok := item.AsString(); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return value.Undefined(), false
		}
		return value.String(strings.Join(parts, ",")), true
	},
	{value.TypeArray, value.TypeDictionary}: func(v value.Value) (value.Value, bool) {
		items, _ := v.AsArray()
		key := ""
		if len(items) > 0 {
			key, _ = items[0].AsString()
		}
		val := value.String("")
		if len(items) > 1 {
			val = items[1]
		}
		return value.Dictionary(map[string]value.Value{key: val}), true
	},
	{value.TypeDate, value.TypeInteger}: func(v value.Value) (value.Value, bool) {
		t, _ := v.AsDate()
		return value.Int(t.Unix()), true
	},
}

func convertDefault(v value.Value, in, out value.Type) (value.Value, bool) {
	if in == out && in != value.TypeUndefined {
		return v, true
	}
	if fn, ok := defaultTable[Pair{In: in, Out: out}]; ok {
		return fn(v)
	}
	return value.Undefined(), false
}

func decodePlistDictionary(b []byte) (value.Value, bool) {
	v, err := codec.DecodeDictionary(b, codec.FormatPlist)
	if err != nil {
		return value.Undefined(), false
	}
	return v, true
}
