package processor

import (
	"github.com/sirupsen/logrus"

	"profilepayloads/internal/logging"
	"profilepayloads/internal/value"
)

// DefaultName identifies the type-agnostic processor.
const DefaultName = "default"

// Pair is one (input, output) conversion direction.
type Pair struct {
	In  value.Type
	Out value.Type
}

// ConvertFunc converts a value already known to carry the pair's input tag.
// A false result means "no conversion"; it is not an error.
type ConvertFunc func(v value.Value) (value.Value, bool)

// Table is a sparse conversion table keyed by direction.
type Table map[Pair]ConvertFunc

// Processor converts a value between two types.
type Processor interface {
	Name() string
	Convert(v value.Value, in, out value.Type) (value.Value, bool)
}

// Field is the part of a schema node the pipeline reads.
type Field struct {
	KeyPath   string
	Type      value.Type
	InputType value.Type
	Processor string
	RangeList []value.Value
}

// strategy overlays a table on the default conversions. Pairs present in
// the table replace the default pair entirely.
type strategy struct {
	name  string
	table Table
}

// New builds a named processor from its overriding pairs.
func New(name string, table Table) Processor {
	return &strategy{name: name, table: table}
}

func (s *strategy) Name() string { return s.name }

func (s *strategy) Convert(v value.Value, in, out value.Type) (value.Value, bool) {
	if fn, ok := s.table[Pair{In: in, Out: out}]; ok {
		return fn(v)
	}
	return convertDefault(v, in, out)
}

// Default returns the type-agnostic processor.
func Default() Processor {
	return &strategy{name: DefaultName}
}

// Process runs one conversion through p. The value's tag must match in,
// unless in is Undefined. A node whose input type is Bool and whose range
// list has exactly two entries maps booleans onto those entries. Only the
// default processor re-dispatches an Undefined input on the value's own type.
func Process(p Processor, f Field, v value.Value, in, out value.Type) (value.Value, bool) {
	log := logging.Log.WithFields(logrus.Fields{"processor": p.Name(), "key_path": f.KeyPath})
	if in != value.TypeUndefined && value.TypeOfExpecting(v, in) != in {
		log.WithFields(logrus.Fields{"value": v.String(), "expected": in.String()}).Debug("value is not of the expected type")
		return value.Undefined(), false
	}

	if f.InputType == value.TypeBool && len(f.RangeList) == 2 {
		if in == value.TypeBool {
			b, _ := v.AsBool()
			if b {
				return f.RangeList[1], true
			}
			return f.RangeList[0], true
		}
		switch value.Index(f.RangeList, v) {
		case 0:
			return value.Bool(false), true
		case 1:
			return value.Bool(true), true
		}
		return value.Undefined(), false
	}

	if in == value.TypeUndefined {
		natural := value.TypeOf(v)
		if p.Name() != DefaultName || natural == value.TypeUndefined {
			log.Debug("unhandled input type: Unknown")
			return value.Undefined(), false
		}
		return Process(p, f, v, natural, out)
	}

	out2, ok := p.Convert(v, in, out)
	if !ok {
		log.WithFields(logrus.Fields{"in": in.String(), "out": out.String()}).Debug("no conversion")
	}
	return out2, ok
}
