package schema

import (
	"sync"

	"profilepayloads/internal/logging"
)

// Store holds the loaded payloads of every kind. Hosts create one and pass
// it to the operations that need cross-payload lookups.
type Store struct {
	mu       sync.RWMutex
	payloads map[string]map[string]*Payload
	targets  map[Family][]TargetRef
	seen     map[Family]map[TargetRef]bool
}

func NewStore() *Store {
	return &Store{
		payloads: map[string]map[string]*Payload{},
		targets:  map[Family][]TargetRef{},
		seen:     map[Family]map[TargetRef]bool{},
	}
}

// Add inserts p, replacing a payload with the same identity, and registers
// the targets of its conditions. It reports whether a payload was replaced.
func (s *Store) Add(p *Payload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDomain, ok := s.payloads[p.Kind.Key()]
	if !ok {
		byDomain = map[string]*Payload{}
		s.payloads[p.Kind.Key()] = byDomain
	}
	_, replaced := byDomain[p.DomainIdentifier]
	byDomain[p.DomainIdentifier] = p

	family := p.Kind.Family()
	if family == FamilyNone {
		return replaced
	}
	for _, tc := range p.Effective().TargetConditions() {
		s.registerLocked(family, tc.Target)
	}
	return replaced
}

func (s *Store) registerLocked(family Family, ref TargetRef) {
	seen, ok := s.seen[family]
	if !ok {
		seen = map[TargetRef]bool{}
		s.seen[family] = seen
	}
	if seen[ref] {
		return
	}
	seen[ref] = true
	s.targets[family] = append(s.targets[family], ref)
}

// Remove drops the payload with the given identity.
func (s *Store) Remove(domainIdentifier string, kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDomain := s.payloads[kind.Key()]
	if _, ok := byDomain[domainIdentifier]; !ok {
		return false
	}
	delete(byDomain, domainIdentifier)
	return true
}

func (s *Store) Payload(domainIdentifier string, kind Kind) (*Payload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payloads[kind.Key()][domainIdentifier]
	return p, ok
}

// Payloads returns the payloads of kind, sorted by domain identifier.
func (s *Store) Payloads(kind Kind) []*Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Payload, 0, len(s.payloads[kind.Key()]))
	for _, p := range s.payloads[kind.Key()] {
		out = append(out, p)
	}
	SortPayloads(out)
	return out
}

// All returns every payload, sorted.
func (s *Store) All() []*Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Payload
	for _, byDomain := range s.payloads {
		for _, p := range byDomain {
			out = append(out, p)
		}
	}
	SortPayloads(out)
	return out
}

// Find returns the payloads of any kind matching a domain or domain
// identifier.
func (s *Store) Find(domain string) []*Payload {
	var out []*Payload
	for _, p := range s.All() {
		if p.DomainIdentifier == domain || p.Domain == domain {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byDomain := range s.payloads {
		n += len(byDomain)
	}
	return n
}

// Subkey looks up keyPath in the payload with domainIdentifier, searching
// the kinds of the same family as kind.
func (s *Store) Subkey(keyPath, domainIdentifier string, kind Kind) (*Subkey, bool) {
	candidates := []Kind{kind}
	for _, k := range append(Kinds(), LocalPreference()) {
		if k.Family() == kind.Family() && !k.Same(kind) {
			candidates = append(candidates, k)
		}
	}
	for _, k := range candidates {
		p, ok := s.Payload(domainIdentifier, k)
		if !ok {
			continue
		}
		if sub, ok := p.Effective().Subkey(keyPath); ok {
			return sub, true
		}
	}
	return nil, false
}

// ConditionalTargets lists the subkeys referenced by conditions in family,
// in registration order.
func (s *Store) ConditionalTargets(family Family) []TargetRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TargetRef, len(s.targets[family]))
	copy(out, s.targets[family])
	return out
}

// MarkConditionalTargets flags every registered target that resolves to a
// loaded subkey and returns how many were flagged.
func (s *Store) MarkConditionalTargets() int {
	marked := 0
	for _, family := range []Family{FamilyManifests, FamilyManagedPreferences} {
		kind := AppleManifest()
		if family == FamilyManagedPreferences {
			kind = ManagedPreference(FolderApplications)
		}
		for _, ref := range s.ConditionalTargets(family) {
			sub, ok := s.Subkey(ref.KeyPath, ref.DomainIdentifier, kind)
			if !ok {
				logging.Log.WithFields(map[string]any{"domain": ref.DomainIdentifier, "key_path": ref.KeyPath}).Debug("conditional target not found")
				continue
			}
			if !sub.IsConditionalTarget {
				sub.IsConditionalTarget = true
				marked++
			}
		}
	}
	return marked
}
