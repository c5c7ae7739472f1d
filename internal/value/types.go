package value

import (
	"strings"
	"time"

	"profilepayloads/internal/logging"
)

// Type is the closed set of storage types a schema node can declare.
type Type int

const (
	TypeUndefined Type = iota
	TypeArray
	TypeBool
	TypeDate
	TypeData
	TypeDictionary
	TypeFloat
	TypeInteger
	TypeString
)

// AllTypes lists every defined type, Undefined included.
var AllTypes = []Type{TypeUndefined, TypeArray, TypeBool, TypeDate, TypeData, TypeDictionary, TypeFloat, TypeInteger, TypeString}

var typeNames = map[Type]string{
	TypeUndefined:  "Unknown",
	TypeArray:      "Array",
	TypeBool:       "Boolean",
	TypeDate:       "Date",
	TypeData:       "Data",
	TypeDictionary: "Dictionary",
	TypeFloat:      "Float",
	TypeInteger:    "Integer",
	TypeString:     "String",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return typeNames[TypeUndefined]
}

// ParseType maps a pfm_type name to a Type. Matching is case-insensitive,
// "Real" is accepted for Float and unknown names map to Undefined.
func ParseType(name string) Type {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "array":
		return TypeArray
	case "boolean", "bool":
		return TypeBool
	case "date":
		return TypeDate
	case "data":
		return TypeData
	case "dictionary", "dict":
		return TypeDictionary
	case "float", "real":
		return TypeFloat
	case "integer", "int":
		return TypeInteger
	case "string":
		return TypeString
	}
	return TypeUndefined
}

// TypeOf infers the type of v from its tag alone.
func TypeOf(v Value) Type {
	switch v.typ {
	case TypeArray, TypeBool, TypeDate, TypeData, TypeDictionary, TypeFloat, TypeInteger, TypeString:
		return v.typ
	default:
		return TypeUndefined
	}
}

// TypeOfExpecting returns expected when v carries that tag. An Undefined
// expectation falls back to TypeOf; any other mismatch yields Undefined.
func TypeOfExpecting(v Value, expected Type) Type {
	if expected == TypeUndefined {
		return TypeOf(v)
	}
	if v.typ == expected {
		return expected
	}
	logging.Log.WithFields(map[string]any{"expected": expected.String(), "actual": v.typ.String()}).Debug("value type mismatch")
	return TypeUndefined
}

// EmptyValue is the zero value placeholder of t. Dates default to now.
func EmptyValue(t Type) Value {
	switch t {
	case TypeArray:
		return Array()
	case TypeBool:
		return Bool(false)
	case TypeData:
		return Data(nil)
	case TypeDate:
		return Date(time.Now())
	case TypeDictionary:
		return Dictionary(nil)
	case TypeFloat:
		return Float(0)
	case TypeInteger:
		return Int(0)
	case TypeString:
		return String("")
	}
	return Undefined()
}

// IsEmpty reports emptiness of v read as t. Containers, strings and data are
// empty when they have no elements, and never empty when the tag does not
// match t. Scalars (bool, date, integer, float) are "empty" only when their
// tag does not match t. An Undefined t is replaced by the type of v.
func IsEmpty(v Value, t Type) bool {
	if t == TypeUndefined {
		if t = TypeOf(v); t == TypeUndefined {
			return false
		}
	}
	switch t {
	case TypeBool, TypeDate, TypeFloat, TypeInteger:
		return v.typ != t
	}
	if v.typ != t {
		return false
	}
	switch t {
	case TypeArray:
		return len(v.arr) == 0
	case TypeData:
		return len(v.data) == 0
	case TypeDictionary:
		return len(v.dict) == 0
	case TypeString:
		return v.s == ""
	}
	return false
}
