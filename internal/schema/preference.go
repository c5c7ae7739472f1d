package schema

import (
	"strings"
	"time"

	"profilepayloads/internal/codec"
	"profilepayloads/internal/fsutil"
	"profilepayloads/internal/value"
)

// PreferenceKeysIgnored and PreferenceKeyPrefixesIgnored name window and
// panel state that synthesized manifests hide.
var (
	PreferenceKeysIgnored = []string{
		"NSNavLastRootDirectory",
		"NSNavPanelExpandedSizeForOpenMode",
		"NSNavPanelExpandedSizeForSaveMode",
	}
	PreferenceKeyPrefixesIgnored = []string{
		"NSSplitView Subview Frames",
		"NSTableView Columns",
		"NSTableView Hidden",
		"NSTableView Sort",
		"NSTableView Supports",
		"NSToolbar Configuration",
		"NSWindow Frame",
	}
)

// PreferenceOptions describes the application owning a preference domain.
type PreferenceOptions struct {
	// Title defaults to the domain.
	Title      string
	AppVersion string
	Now        func() time.Time
}

// SynthesizeLocalPreference builds a payload from the decoded contents of a
// preference file.
func SynthesizeLocalPreference(domain string, prefs map[string]value.Value, opts PreferenceOptions) (*Payload, error) {
	manifest := LocalPreferenceManifest(domain, prefs, opts)
	hash := "1"
	if blob, err := codec.Encode(value.Dictionary(prefs), codec.FormatJSON); err == nil {
		hash = fsutil.MD5Hex(blob)
	}
	p, err := Parse(manifest, LocalPreference(), hash)
	if err != nil {
		return nil, err
	}
	p.AppVersion = opts.AppVersion
	return p, nil
}

// LocalPreferenceManifest returns the manifest dictionary describing prefs.
func LocalPreferenceManifest(domain string, prefs map[string]value.Value, opts PreferenceOptions) map[string]value.Value {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	title := opts.Title
	if title == "" {
		title = domain
	}
	var subkeys []value.Value
	for _, t := range requiredSubkeyTemplates(domain) {
		subkeys = append(subkeys, value.Dictionary(t))
	}
	for _, entry := range preferenceSubkeys(prefs) {
		subkeys = append(subkeys, value.Dictionary(entry))
	}
	return map[string]value.Value{
		KeyDomain:        value.String(domain),
		KeyTitle:         value.String(title),
		KeyDescription:   value.String("Configures " + title + " settings"),
		KeyFormatVersion: value.Int(1),
		KeyVersion:       value.Int(1),
		KeyUnique:        value.Bool(false),
		KeyLastModified:  value.Date(now()),
		KeyPlatforms:     value.Strings(PlatformMacOS.Names()...),
		KeyTargets:       value.Strings(TargetsAll.Names()...),
		KeyDistribution:  value.Strings(DistributionAll.Names()...),
		KeySupervised:    value.Bool(false),
		KeyUserApproved:  value.Bool(false),
		KeyInteraction:   value.String(string(InteractionUndefined)),
		KeySubkeys:       value.Array(subkeys...),
	}
}

func ignoredPreferenceKey(key string) bool {
	for _, k := range PreferenceKeysIgnored {
		if k == key {
			return true
		}
	}
	for _, prefix := range PreferenceKeyPrefixesIgnored {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func preferenceSubkeys(prefs map[string]value.Value) []map[string]value.Value {
	out := make([]map[string]value.Value, 0, len(prefs))
	for _, key := range sortedKeys(prefs) {
		v := prefs[key]
		out = append(out, preferenceEntry(key, v, value.TypeOf(v)))
	}
	return out
}

// preferenceEntry describes one preference key. v may be undefined for
// synthetic item nodes.
func preferenceEntry(key string, v value.Value, t value.Type) map[string]value.Value {
	entry := map[string]value.Value{
		KeyName: value.String(key),
		KeyType: value.String(t.String()),
	}
	if !v.IsUndefined() {
		entry[KeyDefault] = v
	}
	if ignoredPreferenceKey(key) {
		entry[KeyHidden] = value.String(string(HiddenAll))
	}
	switch t {
	case value.TypeArray:
		if items, ok := v.AsArray(); ok {
			if sub := arrayItemEntries(items, key); len(sub) > 0 {
				entry[KeySubkeys] = dictionaries(sub)
			}
		}
	case value.TypeDictionary:
		if dict, ok := v.AsDictionary(); ok {
			if sub := dictionaryEntries(dict); len(sub) > 0 {
				entry[KeySubkeys] = dictionaries(sub)
			}
		}
	}
	return entry
}

// arrayItemEntries describes the elements of an array by its first element.
// Nested containers collect the union of their children by name.
func arrayItemEntries(items []value.Value, parentKey string) []map[string]value.Value {
	if len(items) == 0 {
		return nil
	}
	itemKey := parentKey + "Item"
	t := value.TypeOf(items[0])
	if t == value.TypeUndefined {
		return nil
	}
	item := preferenceEntry(itemKey, value.Undefined(), t)
	var children []map[string]value.Value
	switch t {
	case value.TypeArray:
		for _, v := range items {
			inner, ok := v.AsArray()
			if !ok {
				continue
			}
			children = appendNew(children, arrayItemEntries(inner, itemKey))
		}
	case value.TypeDictionary:
		for _, v := range items {
			dict, ok := v.AsDictionary()
			if !ok {
				continue
			}
			children = appendNew(children, preferenceSubkeys(dict))
		}
	}
	if len(children) > 0 {
		item[KeySubkeys] = dictionaries(children)
	}
	return []map[string]value.Value{item}
}

// appendNew appends entries whose pfm_name is not already present.
func appendNew(existing, entries []map[string]value.Value) []map[string]value.Value {
	for _, e := range entries {
		name, ok := e[KeyName].AsString()
		if !ok {
			continue
		}
		dup := false
		for _, have := range existing {
			if n, _ := have[KeyName].AsString(); n == name {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, e)
		}
	}
	return existing
}

// structuralKeys are present on every synthesized entry and are left out of
// the dynamic dictionary comparison.
var structuralKeys = map[string]bool{KeyName: true, KeyType: true, KeyDefault: true}

// dictionaryEntries describes a dictionary's entries, or the {{key}} and
// {{value}} pair when the dictionary looks dynamic.
func dictionaryEntries(dict map[string]value.Value) []map[string]value.Value {
	entries := preferenceSubkeys(dict)
	if !IsDynamicDictionary(entries) {
		return entries
	}
	first := entries[0]
	valueType := value.ParseType(mustString(first[KeyType]))
	keyEntry := preferenceEntry(PlaceholderKey, value.Undefined(), value.TypeString)
	keyEntry[KeyTitle] = value.String("Key")
	valueEntry := preferenceEntry(PlaceholderValue, value.Undefined(), valueType)
	valueEntry[KeyTitle] = value.String("Value")
	if sub, ok := first[KeySubkeys]; ok {
		valueEntry[KeySubkeys] = sub
	}
	return []map[string]value.Value{keyEntry, valueEntry}
}

// IsDynamicDictionary reports whether synthesized entries describe a map of
// arbitrary keys: at least two entries and no schema attribute shared by
// two of them.
func IsDynamicDictionary(entries []map[string]value.Value) bool {
	if len(entries) < 2 {
		return false
	}
	seen := map[string]bool{}
	for _, e := range entries {
		for k := range e {
			if structuralKeys[k] {
				continue
			}
			if seen[k] {
				return false
			}
		}
		for k := range e {
			if !structuralKeys[k] {
				seen[k] = true
			}
		}
	}
	return true
}

func dictionaries(entries []map[string]value.Value) value.Value {
	out := make([]value.Value, 0, len(entries))
	for _, e := range entries {
		out = append(out, value.Dictionary(e))
	}
	return value.Array(out...)
}

func mustString(v value.Value) string {
	s, _ := v.AsString()
	return s
}
