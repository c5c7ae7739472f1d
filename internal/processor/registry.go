package processor

import (
	"sort"
	"time"

	"profilepayloads/internal/logging"
	"profilepayloads/internal/value"
)

// Registry resolves processor names for schema nodes. Hosts build one and
// share it; there is no package-level instance.
type Registry struct {
	processors map[string]Processor
	fallback   Processor
}

type options struct {
	requirements RequirementConverter
	now          func() time.Time
	loc          *time.Location
}

type Option func(*options)

func WithRequirementConverter(conv RequirementConverter) Option {
	return func(o *options) { o.requirements = conv }
}

// WithClock pins the clock and location used by time2minutes.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(o *options) {
		o.now = now
		o.loc = loc
	}
}

// NewRegistry returns a registry holding every built-in strategy.
func NewRegistry(opts ...Option) *Registry {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Registry{processors: map[string]Processor{}, fallback: Default()}
	for _, p := range builtins(o.requirements, o.now, o.loc) {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a named processor.
func (r *Registry) Register(p Processor) {
	r.processors[p.Name()] = p
}

func (r *Registry) Lookup(name string) (Processor, bool) {
	p, ok := r.processors[name]
	return p, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select picks the processor for f in direction in->out. The second result
// is false when the value should pass through untouched.
func (r *Registry) Select(f Field, in, out value.Type) (Processor, bool) {
	if f.Processor != "" {
		if p, ok := r.processors[f.Processor]; ok {
			return p, true
		}
		logging.Log.WithField("processor", f.Processor).Debug("unknown value processor, using default")
		return r.fallback, true
	}
	if in != out && f.Type != value.TypeArray {
		return r.fallback, true
	}
	return nil, false
}

// Process converts v for f and falls back to v when nothing converts it.
func (r *Registry) Process(f Field, v value.Value, in, out value.Type) value.Value {
	if v.IsUndefined() {
		return v
	}
	p, ok := r.Select(f, in, out)
	if !ok {
		return v
	}
	if processed, ok := Process(p, f, v, in, out); ok {
		return processed
	}
	logging.Log.WithFields(map[string]any{"processor": p.Name(), "key_path": f.KeyPath}).Debug("processing returned no value")
	return v
}

// ToInput converts a stored value into the node's input type.
func (r *Registry) ToInput(f Field, v value.Value) value.Value {
	return r.Process(f, v, f.Type, f.InputType)
}

// ToSaved converts an input value into the node's storage type.
func (r *Registry) ToSaved(f Field, v value.Value) value.Value {
	return r.Process(f, v, f.InputType, f.Type)
}
