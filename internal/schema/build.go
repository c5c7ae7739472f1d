package schema

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"profilepayloads/internal/logging"
	"profilepayloads/internal/value"
)

// ErrInvalidPayload reports a manifest that cannot produce a payload.
var ErrInvalidPayload = errors.New("PFM_SCHEMA_PARSE: invalid payload")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// Parse builds a payload tree from a manifest dictionary. Subkeys that fail
// to parse are skipped; a root that fails returns ErrInvalidPayload.
func Parse(manifest map[string]value.Value, kind Kind, hash string) (*Payload, error) {
	p, err := parseRoot(manifest, kind, hash)
	if err != nil {
		return nil, err
	}
	p.Tree = newTree(p)
	b := builder{payload: p}
	if items, ok := manifest[KeySubkeys]; ok {
		dicts, ok := items.AsDictionaries()
		if !ok {
			return nil, invalid("%s: %s is not an array of dictionaries", p.DomainIdentifier, KeySubkeys)
		}
		for _, dict := range dicts {
			b.subkey(nil, dict)
		}
	}
	if p.Tree.Len() == 0 {
		return nil, invalid("%s: no valid subkeys", p.DomainIdentifier)
	}
	required := PayloadSubkeys
	if p.Domain == DomainConfiguration {
		required = ProfileSubkeys
	}
	for _, key := range required {
		b.ensureShared(key)
	}
	content := p.PayloadContentSubkeys()
	if len(content) == 1 {
		content[0].IsSinglePayloadContent = true
	}
	return p, nil
}

func parseRoot(manifest map[string]value.Value, kind Kind, hash string) (*Payload, error) {
	p := &Payload{Kind: kind, Hash: hash, Manifest: manifest}

	domain, ok := manifest[KeyDomain].AsString()
	if !ok || domain == "" {
		return nil, invalid("missing %s", KeyDomain)
	}
	p.Domain = domain
	p.DomainIdentifier = domain
	if sub, ok := manifest[KeySubdomain].AsString(); ok && sub != "" {
		p.Subdomain = sub
		p.DomainIdentifier = domain + "-" + sub
	}

	if p.Title, ok = manifest[KeyTitle].AsString(); !ok {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyTitle)
	}
	if p.Description, ok = manifest[KeyDescription].AsString(); !ok {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyDescription)
	}
	formatVersion, ok := manifest[KeyFormatVersion].AsInt()
	if !ok {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyFormatVersion)
	}
	p.FormatVersion = int(formatVersion)
	version, ok := manifest[KeyVersion].AsInt()
	if !ok {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyVersion)
	}
	p.Version = int(version)
	if p.Unique, ok = manifest[KeyUnique].AsBool(); !ok {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyUnique)
	}
	if p.LastModified, ok = dateOf(manifest[KeyLastModified]); !ok {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyLastModified)
	}

	apple := kind.Tag == KindAppleManifest
	if platforms, ok := ParsePlatforms(manifest[KeyPlatforms]); ok && apple {
		p.Platforms = platforms
	} else if apple {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyPlatforms)
	} else {
		p.Platforms = PlatformMacOS
	}
	if targets, ok := ParseTargets(manifest[KeyTargets]); ok {
		p.Targets = targets
	} else if apple {
		return nil, invalid("%s: missing %s", p.DomainIdentifier, KeyTargets)
	} else {
		p.Targets = TargetUser | TargetSystem
	}

	p.Distribution = DistributionAll
	p.Interaction = InteractionUndefined
	if apple {
		if d, ok := ParseDistribution(manifest[KeyDistribution]); ok {
			p.Distribution = d
		}
		p.Supervised, _ = manifest[KeySupervised].AsBool()
		p.UserApproved, _ = manifest[KeyUserApproved].AsBool()
		if s, ok := manifest[KeyInteraction].AsString(); ok {
			p.Interaction = ParseInteraction(s)
		}
	}

	for _, key := range []string{KeyMacOSMin, KeyMacOSMax, KeyIOSMin, KeyIOSMax, KeyTVOSMin, KeyTVOSMax} {
		if s, ok := manifest[key].AsString(); ok {
			setVersionKey(&p.Availability, key, s)
		}
	}
	if s, ok := manifest[KeyDocumentationURL].AsString(); ok {
		if _, err := url.Parse(s); err == nil {
			p.DocumentationURL = s
		}
	}
	p.Note, _ = manifest[KeyNote].AsString()
	if vars, ok := substitutionVariables(manifest[KeySubstitutionVariables]); ok {
		p.SubstitutionVariables = vars
	}
	return p, nil
}

// dateOf accepts a date or an RFC 3339 string, since JSON and YAML
// manifests have no date type.
func dateOf(v value.Value) (time.Time, bool) {
	if t, ok := v.AsDate(); ok {
		return t, true
	}
	if s, ok := v.AsString(); ok {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type builder struct {
	payload *Payload
}

// subkey parses dict below parent and appends it and its children to the
// tree. It returns nil when the node is invalid.
func (b builder) subkey(parent *Subkey, dict map[string]value.Value) *Subkey {
	p := b.payload
	entry := logging.Log.WithField("domain", p.DomainIdentifier)
	if parent != nil {
		entry = entry.WithField("parent", parent.KeyPath)
	}

	typeName, ok := dict[KeyType].AsString()
	if !ok {
		entry.Debug("subkey has no type, skipping")
		return nil
	}
	typ := value.ParseType(typeName)
	if typ == value.TypeUndefined {
		entry.WithField("type", typeName).Debug("subkey has an unknown type, skipping")
		return nil
	}

	s := &Subkey{
		ParentID:         NoNode,
		RootID:           NoNode,
		Kind:             p.Kind,
		Domain:           p.Domain,
		DomainIdentifier: p.DomainIdentifier,
		Type:             typ,
		Require:          RequireNever,
		Hidden:           HiddenNo,
		DateStyle:        DateStyleDateAndTime,
		IgnoredKeys:      map[string]value.Value{},
	}

	if name, ok := dict[KeyName].AsString(); ok {
		s.Key = name
	} else if parent != nil && parent.Type == value.TypeArray {
		s.Key = parent.Key + "Item"
	} else {
		entry.Debug("subkey has no name, skipping")
		return nil
	}

	if parent != nil {
		s.ParentID = parent.ID
		s.RootID = parent.RootID
		s.KeyPath = parent.KeyPath + keyPathSeparator + s.Key
		if parent.InputType == value.TypeArray || parent.Type == value.TypeArray {
			s.ValueKeyPath = parent.ValueKeyPath + keyPathSeparator + "0"
		} else {
			s.ValueKeyPath = parent.ValueKeyPath + keyPathSeparator + s.Key
		}
	} else {
		s.KeyPath = s.Key
		s.ValueKeyPath = s.Key
	}

	s.InputType = s.Type
	if name, ok := dict[KeyTypeInput].AsString(); ok {
		if t := value.ParseType(name); t != value.TypeUndefined {
			s.InputType = t
		}
	}

	platforms, hasPlatforms := ParsePlatforms(dict[KeyPlatforms])
	notPlatforms, hasNotPlatforms := ParsePlatforms(dict[KeyNotPlatforms])
	switch {
	case hasPlatforms:
		s.Platforms = platforms
	case hasNotPlatforms:
		s.Platforms = p.Platforms &^ notPlatforms
	default:
		s.Platforms = p.Platforms
	}
	if h, ok := dict[KeyHidden].AsString(); ok {
		s.Hidden = ParseHidden(h)
	}

	handled := map[string]bool{
		KeyType: true, KeyName: true, KeyTypeInput: true, KeyPlatforms: true,
		KeyNotPlatforms: true, KeyHidden: true, KeySubkeys: true,
		KeyConditionals: true, KeyExclude: true, KeyRangeListTitles: true,
	}
	for _, key := range sortedKeys(dict) {
		if handled[key] {
			continue
		}
		if !s.setAttribute(key, dict[key]) {
			if subkeyVocabulary[key] {
				s.log().WithField("key", key).Debug("manifest key has an unexpected value type")
			}
			s.IgnoredKeys[key] = dict[key]
		}
	}

	if s.Type == value.TypeInteger && s.RangeList == nil {
		lo, okLo := s.RangeMin.AsInt()
		hi, okHi := s.RangeMax.AsInt()
		// The span is taken in uint64 so distant bounds cannot wrap.
		if okLo && okHi && lo <= hi {
			if span := uint64(hi) - uint64(lo); span < RangeListConvertMax {
				for n := uint64(0); n <= span; n++ {
					s.RangeList = append(s.RangeList, value.Int(lo+int64(n)))
				}
			}
		}
	}
	if titles, ok := dict[KeyRangeListTitles].AsStrings(); ok {
		if s.RangeList == nil || len(s.RangeList) == len(titles) {
			s.RangeListTitles = titles
		} else {
			s.log().Debug("range list titles do not match the range list")
			s.IgnoredKeys[KeyRangeListTitles] = dict[KeyRangeListTitles]
		}
	}

	p.Tree.add(s)
	s.IsParentArrayOfDictionaries = parentArrayOfDictionaries(s.Ancestors())

	if items, ok := dict[KeyConditionals]; ok {
		if rules, ok := items.AsDictionaries(); ok {
			for _, rule := range rules {
				if c := newCondition(s, rule); c != nil {
					s.Conditionals = append(s.Conditionals, c)
				}
			}
		} else {
			s.IgnoredKeys[KeyConditionals] = items
		}
	}
	if items, ok := dict[KeyExclude]; ok {
		if rules, ok := items.AsDictionaries(); ok {
			for _, rule := range rules {
				if e := newExclude(s, rule); e != nil {
					s.Excludes = append(s.Excludes, e)
				}
			}
		} else {
			s.IgnoredKeys[KeyExclude] = items
		}
	}

	if items, ok := dict[KeySubkeys]; ok {
		children, ok := items.AsDictionaries()
		if !ok {
			s.log().Debug("subkeys is not an array of dictionaries")
			s.IgnoredKeys[KeySubkeys] = items
		}
		for _, child := range children {
			b.subkey(s, child)
		}
	}
	switch s.Type {
	case value.TypeDictionary, value.TypeArray, value.TypeInteger:
		s.IsSingleContainer = len(s.ChildIDs) == 1
	}
	return s
}

// ensureShared appends the template for key when no root subkey has it.
func (b builder) ensureShared(key string) {
	for _, s := range b.payload.Subkeys() {
		if s.Key == key {
			return
		}
	}
	template, ok := sharedSubkeyTemplate(key, b.payload.Domain)
	if !ok {
		return
	}
	b.subkey(nil, template)
}

// parentArrayOfDictionaries is true when the ancestors include both an
// array and a dictionary and the innermost array is shown as a list.
func parentArrayOfDictionaries(ancestors []*Subkey) bool {
	var hasArray, hasDict bool
	var lastArray *Subkey
	for _, a := range ancestors {
		switch a.Type {
		case value.TypeArray:
			hasArray = true
			lastArray = a
		case value.TypeDictionary:
			hasDict = true
		}
	}
	if !hasArray || !hasDict {
		return false
	}
	limit, ok := lastArray.RangeMax.AsInt()
	return !(ok && limit == 1)
}

func sortedKeys(dict map[string]value.Value) []string {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
