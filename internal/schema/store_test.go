package schema

import (
	"testing"

	"profilepayloads/internal/value"
)

func conditional(require string, targets ...dict) dict {
	items := make([]value.Value, 0, len(targets))
	for _, tc := range targets {
		items = append(items, value.Dictionary(tc))
	}
	d := dict{KeyTargetConditions: value.Array(items...)}
	if require != "" {
		d[KeyRequire] = value.String(require)
	}
	return d
}

func conditionalManifest() dict {
	detail := field("Detail", "string")
	detail[KeyConditionals] = value.Array(value.Dictionary(conditional("always",
		dict{KeyTarget: value.String("Mode"), KeyRangeList: value.Strings("advanced")},
	)))
	detail[KeyExclude] = value.Array(value.Dictionary(conditional("",
		dict{KeyTarget: value.String("Flag"), KeyDomain: value.String("com.example.other"), KeyPresent: value.Bool(true)},
	)))
	return testManifest("com.example.app", field("Mode", "string"), detail)
}

func TestConditionsAreParsed(t *testing.T) {
	p := mustParse(t, conditionalManifest(), AppleManifest())
	detail, _ := p.Subkey("Detail")
	if len(detail.Conditionals) != 1 || len(detail.Excludes) != 1 {
		t.Fatalf("expected one conditional and one exclude, got %d/%d", len(detail.Conditionals), len(detail.Excludes))
	}
	c := detail.Conditionals[0]
	if c.Require != RequireAlways {
		t.Fatalf("expected require always, got %q", c.Require)
	}
	tc := c.Targets[0]
	if tc.Target.KeyPath != "Mode" || tc.Target.DomainIdentifier != "com.example.app" {
		t.Fatalf("unexpected target %+v", tc.Target)
	}
	if len(tc.RangeList) != 1 || tc.Owner() != detail {
		t.Fatalf("unexpected target condition %+v", tc)
	}
	ex := detail.Excludes[0].Targets[0]
	if ex.Target.DomainIdentifier != "com.example.other" || ex.IsPresent == nil || !*ex.IsPresent {
		t.Fatalf("unexpected exclude target %+v", ex)
	}
	if got := len(p.TargetConditions()); got != 2 {
		t.Fatalf("expected 2 target conditions, got %d", got)
	}
}

func TestConditionsWithoutTargetsAreDropped(t *testing.T) {
	detail := field("Detail", "string")
	detail[KeyConditionals] = value.Array(
		value.Dictionary(dict{KeyRequire: value.String("always")}),
		value.Dictionary(conditional("always", dict{KeyValueEmpty: value.Bool(true)})),
	)
	p := mustParse(t, testManifest("com.example.app", detail), AppleManifest())
	s, _ := p.Subkey("Detail")
	if len(s.Conditionals) != 1 {
		t.Fatalf("expected the rule without target conditions to be dropped, got %d", len(s.Conditionals))
	}
	if len(s.Conditionals[0].Targets) != 0 {
		t.Fatalf("expected the untargeted condition to be dropped")
	}
}

func TestPlatformConditionTargetsOwner(t *testing.T) {
	detail := field("Detail", "string")
	detail[KeyConditionals] = value.Array(value.Dictionary(conditional("always",
		dict{KeyPlatforms: value.Strings("iOS")},
	)))
	p := mustParse(t, testManifest("com.example.app", detail), AppleManifest())
	s, _ := p.Subkey("Detail")
	tc := s.Conditionals[0].Targets[0]
	if !tc.HasPlatforms || tc.Platforms != PlatformIOS {
		t.Fatalf("unexpected platforms %v", tc.Platforms)
	}
	if tc.TargetSubkey(nil) != s {
		t.Fatalf("expected condition to resolve to its owner")
	}
}

func TestStoreRegistersAndMarksTargets(t *testing.T) {
	store := NewStore()
	app := mustParse(t, conditionalManifest(), AppleManifest())
	other := mustParse(t, testManifest("com.example.other", field("Flag", "boolean")), AppleManifest())
	if store.Add(app) {
		t.Fatalf("first add must not report a replacement")
	}
	store.Add(other)

	targets := store.ConditionalTargets(FamilyManifests)
	if len(targets) != 2 {
		t.Fatalf("expected 2 registered targets, got %+v", targets)
	}
	if len(store.ConditionalTargets(FamilyManagedPreferences)) != 0 {
		t.Fatalf("targets must stay in their family")
	}
	if marked := store.MarkConditionalTargets(); marked != 2 {
		t.Fatalf("expected 2 marked targets, got %d", marked)
	}
	mode, _ := app.Subkey("Mode")
	flag, _ := other.Subkey("Flag")
	if !mode.IsConditionalTarget || !flag.IsConditionalTarget {
		t.Fatalf("expected both targets to be flagged")
	}
	if marked := store.MarkConditionalTargets(); marked != 0 {
		t.Fatalf("expected marking to be idempotent, got %d", marked)
	}

	detail, _ := app.Subkey("Detail")
	if got := detail.Excludes[0].Targets[0].TargetSubkey(store); got != flag {
		t.Fatalf("expected cross-domain target to resolve, got %v", got)
	}
}

func TestStoreRegistersEachTargetOnce(t *testing.T) {
	store := NewStore()
	store.Add(mustParse(t, conditionalManifest(), AppleManifest()))
	store.Add(mustParse(t, conditionalManifest(), AppleManifest()))
	if got := len(store.ConditionalTargets(FamilyManifests)); got != 2 {
		t.Fatalf("expected duplicate targets to collapse, got %d", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected replacement, got %d payloads", store.Len())
	}
}

func TestStoreLookups(t *testing.T) {
	store := NewStore()
	apple := mustParse(t, testManifest("com.example.app", field("Enabled", "boolean")), AppleManifest())
	managed := mustParse(t, testManifest("com.example.app", field("Level", "integer")), ManagedPreference(FolderApplications))
	local := mustParse(t, testManifest("com.example.local", field("Size", "integer")), LocalPreference())
	for _, p := range []*Payload{apple, managed, local} {
		store.Add(p)
	}
	if got := len(store.Find("com.example.app")); got != 2 {
		t.Fatalf("expected 2 payloads for the domain, got %d", got)
	}
	if got := len(store.Payloads(AppleManifest())); got != 1 {
		t.Fatalf("expected one apple manifest, got %d", got)
	}
	if _, ok := store.Subkey("Size", "com.example.local", ManagedPreference(FolderApplications)); !ok {
		t.Fatalf("expected local preferences to share the managed preference family")
	}
	if _, ok := store.Subkey("Level", "com.example.app", AppleManifest()); ok {
		t.Fatalf("lookups must not cross families")
	}
	if !store.Remove("com.example.app", AppleManifest()) || store.Remove("com.example.app", AppleManifest()) {
		t.Fatalf("unexpected remove results")
	}
	all := store.All()
	if len(all) != 2 || all[0].DomainIdentifier != "com.example.app" {
		t.Fatalf("unexpected sorted payloads %v", all)
	}
}

func TestStoreUsesOverrideConditions(t *testing.T) {
	store := NewStore()
	base := mustParse(t, testManifest("com.example.app", field("Mode", "string"), field("Detail", "string")), AppleManifest())
	o, err := ApplyOverride(base, conditionalManifest(), "override")
	if err != nil {
		t.Fatalf("apply override failed: %v", err)
	}
	if base.Effective() != o {
		t.Fatalf("expected the override to be effective")
	}
	store.Add(base)
	if got := len(store.ConditionalTargets(FamilyManifests)); got != 2 {
		t.Fatalf("expected override targets to be registered, got %d", got)
	}
}

func TestTreeNavigation(t *testing.T) {
	p := mustParse(t, testManifest("com.example.app",
		withSubkeys(field("Settings", "dictionary"), field("A", "string"), field("B", "string")),
	), AppleManifest())
	if p.Tree.Node(NodeID(p.Tree.Len())) != nil || p.Tree.Node(NoNode) != nil {
		t.Fatalf("expected out of range nodes to be nil")
	}
	visited := 0
	p.Tree.Walk(func(s *Subkey) bool {
		visited++
		return s.Key != "A"
	})
	if visited != 2 {
		t.Fatalf("expected walk to stop at A, visited %d", visited)
	}
	b, _ := p.Subkey("Settings.B")
	if len(b.Ancestors()) != 1 || b.Payload() != p {
		t.Fatalf("unexpected ancestry")
	}
}
