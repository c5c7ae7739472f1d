package schema

import (
	"sync"

	"profilepayloads/internal/value"
)

// TargetRef addresses a subkey in any payload.
type TargetRef struct {
	KeyPath          string `json:"key_path"`
	DomainIdentifier string `json:"domain_identifier"`
}

// Condition is one pfm_conditionals entry. Evaluation belongs to the
// consumer; this only parses and registers the rule.
type Condition struct {
	Targets     []*TargetCondition
	Require     Require
	IgnoredKeys map[string]value.Value
	Raw         map[string]value.Value
}

// Exclude is one pfm_exclude entry.
type Exclude struct {
	Targets     []*TargetCondition
	IgnoredKeys map[string]value.Value
	Raw         map[string]value.Value
}

// TargetCondition is one pfm_target_conditions entry.
type TargetCondition struct {
	Target       TargetRef
	TargetDomain string

	Platforms       Platforms
	NotPlatforms    Platforms
	Distribution    Distribution
	HasPlatforms    bool
	HasNotPlatforms bool
	HasDistribution bool

	ContainsAny    []value.Value
	NotContainsAny []value.Value
	RangeList      []value.Value
	NotRangeList   []value.Value
	IsEmpty        *bool
	IsPresent      *bool

	IgnoredKeys map[string]value.Value
	Raw         map[string]value.Value

	owner *Subkey

	mu       sync.Mutex
	resolved bool
	target   *Subkey
}

func newCondition(owner *Subkey, rule map[string]value.Value) *Condition {
	targets, ok := targetConditions(owner, rule)
	if !ok {
		owner.log().Debug("conditional has no target conditions, skipping")
		return nil
	}
	c := &Condition{Targets: targets, Require: RequireNever, IgnoredKeys: map[string]value.Value{}, Raw: rule}
	for key, v := range rule {
		switch key {
		case KeyTargetConditions:
			continue
		case KeyRequire, KeyRequired:
			if r, ok := ParseRequire(v); ok {
				if r != RequireNever {
					c.Require = r
				}
				continue
			}
		}
		c.IgnoredKeys[key] = v
	}
	return c
}

func newExclude(owner *Subkey, rule map[string]value.Value) *Exclude {
	targets, ok := targetConditions(owner, rule)
	if !ok {
		owner.log().Debug("exclude has no target conditions, skipping")
		return nil
	}
	e := &Exclude{Targets: targets, IgnoredKeys: map[string]value.Value{}, Raw: rule}
	for key, v := range rule {
		if key != KeyTargetConditions {
			e.IgnoredKeys[key] = v
		}
	}
	return e
}

func targetConditions(owner *Subkey, rule map[string]value.Value) ([]*TargetCondition, bool) {
	dicts, ok := rule[KeyTargetConditions].AsDictionaries()
	if !ok {
		return nil, false
	}
	var out []*TargetCondition
	for _, dict := range dicts {
		if tc := newTargetCondition(owner, dict); tc != nil {
			out = append(out, tc)
		}
	}
	return out, true
}

func newTargetCondition(owner *Subkey, dict map[string]value.Value) *TargetCondition {
	tc := &TargetCondition{
		Target:       TargetRef{KeyPath: owner.KeyPath, DomainIdentifier: owner.DomainIdentifier},
		TargetDomain: owner.Domain,
		IgnoredKeys:  map[string]value.Value{},
		Raw:          dict,
		owner:        owner,
	}
	target, hasTarget := dict[KeyTarget].AsString()
	if hasTarget {
		tc.Target.KeyPath = target
	}
	if domain, ok := dict[KeyDomain].AsString(); ok {
		tc.TargetDomain = domain
		tc.Target.DomainIdentifier = domain
	}
	tc.Platforms, tc.HasPlatforms = ParsePlatforms(dict[KeyPlatforms])
	tc.NotPlatforms, tc.HasNotPlatforms = ParsePlatforms(dict[KeyNotPlatforms])
	if names, ok := dict[KeyDistribution].AsStrings(); ok {
		tc.Distribution, tc.HasDistribution = ParseDistribution(value.Strings(names...))
	}
	if !hasTarget && !tc.HasPlatforms && !tc.HasNotPlatforms && !tc.HasDistribution {
		owner.log().Debug("target condition has no target, platforms or distribution, skipping")
		return nil
	}

	for key, v := range dict {
		switch key {
		case KeyTarget, KeyDomain:
			if _, ok := v.AsString(); ok {
				continue
			}
		case KeyPlatforms, KeyNotPlatforms, KeyDistribution:
			if _, ok := v.AsStrings(); ok {
				continue
			}
		case KeyContainsAny:
			if items, ok := v.AsArray(); ok {
				tc.ContainsAny = items
				continue
			}
		case KeyNotContainsAny:
			if items, ok := v.AsArray(); ok {
				tc.NotContainsAny = items
				continue
			}
		case KeyRangeList:
			if items, ok := v.AsArray(); ok {
				tc.RangeList = items
				continue
			}
		case KeyNotRangeList:
			if items, ok := v.AsArray(); ok {
				tc.NotRangeList = items
				continue
			}
		case KeyValueEmpty:
			if b, ok := v.AsBool(); ok {
				tc.IsEmpty = &b
				continue
			}
		case KeyPresent:
			if b, ok := v.AsBool(); ok {
				tc.IsPresent = &b
				continue
			}
		}
		tc.IgnoredKeys[key] = v
	}
	return tc
}

// Owner is the subkey that declared the condition.
func (tc *TargetCondition) Owner() *Subkey { return tc.owner }

// TargetSubkey resolves the referenced subkey on first use and caches the
// result. A condition targeting its own owner resolves without the store.
func (tc *TargetCondition) TargetSubkey(store *Store) *Subkey {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.resolved {
		return tc.target
	}
	if tc.owner != nil && tc.owner.KeyPath == tc.Target.KeyPath && tc.owner.DomainIdentifier == tc.Target.DomainIdentifier {
		tc.target = tc.owner
		tc.resolved = true
		return tc.target
	}
	if store == nil || tc.owner == nil {
		return nil
	}
	if s, ok := store.Subkey(tc.Target.KeyPath, tc.Target.DomainIdentifier, tc.owner.Kind); ok {
		tc.target = s
		tc.resolved = true
	}
	return tc.target
}

// TargetConditions returns every target condition declared in the tree.
func (p *Payload) TargetConditions() []*TargetCondition {
	var out []*TargetCondition
	for _, s := range p.AllSubkeys() {
		for _, c := range s.Conditionals {
			out = append(out, c.Targets...)
		}
		for _, e := range s.Excludes {
			out = append(out, e.Targets...)
		}
	}
	return out
}
