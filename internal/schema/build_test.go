package schema

import (
	"errors"
	"math"
	"testing"
	"time"

	"profilepayloads/internal/value"
)

var testModified = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type dict = map[string]value.Value

func testManifest(domain string, subkeys ...dict) dict {
	items := make([]value.Value, 0, len(subkeys))
	for _, s := range subkeys {
		items = append(items, value.Dictionary(s))
	}
	return dict{
		KeyDomain:        value.String(domain),
		KeyTitle:         value.String("Example"),
		KeyDescription:   value.String("Example settings"),
		KeyFormatVersion: value.Int(1),
		KeyVersion:       value.Int(1),
		KeyUnique:        value.Bool(false),
		KeyLastModified:  value.Date(testModified),
		KeyPlatforms:     value.Strings("macOS", "iOS"),
		KeyTargets:       value.Strings("system", "user"),
		KeySubkeys:       value.Array(items...),
	}
}

func field(name, typ string, extra ...any) dict {
	d := dict{KeyName: value.String(name), KeyType: value.String(typ)}
	for i := 0; i+1 < len(extra); i += 2 {
		d[extra[i].(string)] = value.FromNative(extra[i+1])
	}
	return d
}

func withSubkeys(d dict, children ...dict) dict {
	items := make([]value.Value, 0, len(children))
	for _, c := range children {
		items = append(items, value.Dictionary(c))
	}
	d[KeySubkeys] = value.Array(items...)
	return d
}

func mustParse(t *testing.T, manifest dict, kind Kind) *Payload {
	t.Helper()
	p, err := Parse(manifest, kind, "hash")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return p
}

func TestParseRootFields(t *testing.T) {
	m := testManifest("com.example.app", field("Enabled", "boolean"))
	m[KeySubdomain] = value.String("beta")
	m[KeyMacOSMin] = value.String("12.0")
	p := mustParse(t, m, AppleManifest())
	if p.DomainIdentifier != "com.example.app-beta" || p.Domain != "com.example.app" {
		t.Fatalf("unexpected identity %q/%q", p.Domain, p.DomainIdentifier)
	}
	if !p.Platforms.Has(PlatformMacOS) || !p.Platforms.Has(PlatformIOS) || p.Platforms.Has(PlatformTVOS) {
		t.Fatalf("unexpected platforms %v", p.Platforms)
	}
	if !p.LastModified.Equal(testModified) {
		t.Fatalf("unexpected last modified %v", p.LastModified)
	}
	if p.Availability.MacOS.Min != "12.0" {
		t.Fatalf("expected macOS min 12.0, got %+v", p.Availability.MacOS)
	}
	if p.Distribution != DistributionAll || p.Interaction != InteractionUndefined {
		t.Fatalf("unexpected defaults %v %v", p.Distribution, p.Interaction)
	}
}

func TestParseAcceptsStringDates(t *testing.T) {
	m := testManifest("com.example.app", field("Enabled", "boolean"))
	m[KeyLastModified] = value.String("2024-03-01T12:00:00Z")
	p := mustParse(t, m, AppleManifest())
	if !p.LastModified.Equal(testModified) {
		t.Fatalf("unexpected last modified %v", p.LastModified)
	}
}

func TestParseRejectsInvalidRoot(t *testing.T) {
	cases := map[string]func(dict){
		"no domain":     func(m dict) { delete(m, KeyDomain) },
		"no title":      func(m dict) { delete(m, KeyTitle) },
		"bad version":   func(m dict) { m[KeyVersion] = value.String("one") },
		"no modified":   func(m dict) { delete(m, KeyLastModified) },
		"no platforms":  func(m dict) { delete(m, KeyPlatforms) },
		"bad subkeys":   func(m dict) { m[KeySubkeys] = value.String("nope") },
		"no subkeys":    func(m dict) { m[KeySubkeys] = value.Array() },
		"untyped only":  func(m dict) { m[KeySubkeys] = value.Array(value.Dictionary(dict{KeyName: value.String("A")})) },
		"unknown types": func(m dict) { m[KeySubkeys] = value.Array(value.Dictionary(field("A", "banana"))) },
	}
	for name, mutate := range cases {
		m := testManifest("com.example.app", field("Enabled", "boolean"))
		mutate(m)
		_, err := Parse(m, AppleManifest(), "hash")
		if !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("%s: expected ErrInvalidPayload, got %v", name, err)
		}
	}
}

func TestParseManagedPreferenceDefaults(t *testing.T) {
	m := testManifest("com.example.app", field("Enabled", "boolean"))
	delete(m, KeyPlatforms)
	delete(m, KeyTargets)
	p := mustParse(t, m, ManagedPreference(FolderApplications))
	if p.Platforms != PlatformMacOS {
		t.Fatalf("expected macOS only, got %v", p.Platforms)
	}
	if !p.Targets.Has(TargetUser) || !p.Targets.Has(TargetSystem) {
		t.Fatalf("unexpected targets %v", p.Targets)
	}
}

func TestParseSkipsInvalidSubkeys(t *testing.T) {
	m := testManifest("com.example.app",
		field("Enabled", "boolean"),
		field("Broken", "banana"),
		dict{KeyType: value.String("string")},
	)
	p := mustParse(t, m, AppleManifest())
	if _, ok := p.Subkey("Broken"); ok {
		t.Fatalf("expected unknown type to be skipped")
	}
	if len(p.PayloadContentSubkeys()) != 1 {
		t.Fatalf("expected one content subkey, got %d", len(p.PayloadContentSubkeys()))
	}
}

func TestKeyPathsAndValueKeyPaths(t *testing.T) {
	m := testManifest("com.example.app",
		withSubkeys(field("Settings", "dictionary"), field("Enabled", "boolean")),
		withSubkeys(field("Servers", "array"),
			withSubkeys(dict{KeyType: value.String("dictionary")}, field("Host", "string")),
		),
	)
	p := mustParse(t, m, AppleManifest())
	cases := []struct {
		keyPath, valueKeyPath string
	}{
		{"Settings", "Settings"},
		{"Settings.Enabled", "Settings.Enabled"},
		{"Servers", "Servers"},
		{"Servers.ServersItem", "Servers.0"},
		{"Servers.ServersItem.Host", "Servers.0.Host"},
	}
	for _, tc := range cases {
		s, ok := p.Subkey(tc.keyPath)
		if !ok {
			t.Fatalf("missing subkey %s", tc.keyPath)
		}
		if s.ValueKeyPath != tc.valueKeyPath {
			t.Fatalf("%s: value key path %q, want %q", tc.keyPath, s.ValueKeyPath, tc.valueKeyPath)
		}
	}

	host, _ := p.Subkey("Servers.ServersItem.Host")
	if host.Root().Key != "Servers" || host.Parent().Key != "ServersItem" {
		t.Fatalf("unexpected links root=%s parent=%s", host.Root().Key, host.Parent().Key)
	}
	if !host.IsParentArrayOfDictionaries {
		t.Fatalf("expected host to sit in an array of dictionaries")
	}
	enabled, _ := p.Subkey("Settings.Enabled")
	if enabled.IsParentArrayOfDictionaries {
		t.Fatalf("plain dictionary child must not be flagged")
	}
	settings, _ := p.Subkey("Settings")
	if !settings.IsSingleContainer {
		t.Fatalf("expected settings to be a single container")
	}
	servers, _ := p.Subkey("Servers")
	if got := len(servers.Descendants()); got != 2 {
		t.Fatalf("expected 2 descendants, got %d", got)
	}
}

func TestArrayWithSingleItemIsNotListOfDictionaries(t *testing.T) {
	m := testManifest("com.example.app",
		withSubkeys(field("Servers", "array", KeyRangeMax, 1),
			withSubkeys(field("Server", "dictionary"), field("Host", "string")),
		),
	)
	p := mustParse(t, m, AppleManifest())
	host, _ := p.Subkey("Servers.Server.Host")
	if host == nil || host.IsParentArrayOfDictionaries {
		t.Fatalf("expected host not to be flagged, got %+v", host)
	}
}

func TestRangeListSynthesisBoundary(t *testing.T) {
	m := testManifest("com.example.app",
		field("Forty", "integer", KeyRangeMin, 1, KeyRangeMax, 40),
		field("FortyOne", "integer", KeyRangeMin, 1, KeyRangeMax, 41),
		field("Inverted", "integer", KeyRangeMin, 5, KeyRangeMax, 1),
		field("Explicit", "integer", KeyRangeMin, 1, KeyRangeMax, 3, KeyRangeList, []any{7, 8}),
	)
	p := mustParse(t, m, AppleManifest())
	forty, _ := p.Subkey("Forty")
	if len(forty.RangeList) != 40 {
		t.Fatalf("expected 40 synthesized entries, got %d", len(forty.RangeList))
	}
	if first, _ := forty.RangeList[0].AsInt(); first != 1 {
		t.Fatalf("expected list to start at 1, got %v", forty.RangeList[0])
	}
	if last, _ := forty.RangeList[39].AsInt(); last != 40 {
		t.Fatalf("expected list to end at 40, got %v", forty.RangeList[39])
	}
	fortyOne, _ := p.Subkey("FortyOne")
	if fortyOne.RangeList != nil {
		t.Fatalf("expected no list above the limit, got %d entries", len(fortyOne.RangeList))
	}
	inverted, _ := p.Subkey("Inverted")
	if inverted.RangeList != nil {
		t.Fatalf("expected no list for an inverted range")
	}
	explicit, _ := p.Subkey("Explicit")
	if len(explicit.RangeList) != 2 {
		t.Fatalf("expected the declared list to win, got %v", explicit.RangeList)
	}
}

func TestRangeListSynthesisWideBounds(t *testing.T) {
	cases := []struct {
		name   string
		lo, hi int64
	}{
		{"full", math.MinInt64, math.MaxInt64},
		{"symmetric", -5e18, 5e18},
		{"top", math.MaxInt64 - 100, math.MaxInt64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			done := make(chan *Payload, 1)
			go func() {
				p, err := Parse(testManifest("com.example.app",
					field("Wide", "integer", KeyRangeMin, tc.lo, KeyRangeMax, tc.hi),
				), AppleManifest(), "hash")
				if err != nil {
					t.Errorf("parse failed: %v", err)
				}
				done <- p
			}()
			select {
			case p := <-done:
				if p == nil {
					return
				}
				wide, _ := p.Subkey("Wide")
				if wide.RangeList != nil {
					t.Fatalf("expected no list for [%d, %d], got %d entries", tc.lo, tc.hi, len(wide.RangeList))
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("parse did not return for [%d, %d]", tc.lo, tc.hi)
			}
		})
	}
}

func TestRangeListSynthesisAtMaxInt(t *testing.T) {
	p := mustParse(t, testManifest("com.example.app",
		field("Top", "integer", KeyRangeMin, int64(math.MaxInt64-2), KeyRangeMax, int64(math.MaxInt64)),
	), AppleManifest())
	top, _ := p.Subkey("Top")
	if len(top.RangeList) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top.RangeList))
	}
	if last, _ := top.RangeList[2].AsInt(); last != math.MaxInt64 {
		t.Fatalf("expected list to end at MaxInt64, got %v", top.RangeList[2])
	}
}

func TestRangeListTitlesMustMatch(t *testing.T) {
	m := testManifest("com.example.app",
		field("Match", "string", KeyRangeList, []any{"a", "b"}, KeyRangeListTitles, []any{"A", "B"}),
		field("Mismatch", "string", KeyRangeList, []any{"a", "b"}, KeyRangeListTitles, []any{"A"}),
	)
	p := mustParse(t, m, AppleManifest())
	match, _ := p.Subkey("Match")
	if len(match.RangeListTitles) != 2 {
		t.Fatalf("expected titles to be kept, got %v", match.RangeListTitles)
	}
	mismatch, _ := p.Subkey("Mismatch")
	if mismatch.RangeListTitles != nil {
		t.Fatalf("expected mismatched titles to be dropped")
	}
	if _, ok := mismatch.IgnoredKeys[KeyRangeListTitles]; !ok {
		t.Fatalf("expected mismatched titles to be recorded as ignored")
	}
}

func TestRequiredSubkeysAreSynthesized(t *testing.T) {
	p := mustParse(t, testManifest("com.example.app", field("Enabled", "boolean")), AppleManifest())
	for _, key := range PayloadSubkeys {
		if _, ok := p.Subkey(key); !ok {
			t.Fatalf("expected %s to be synthesized", key)
		}
	}
	if _, ok := p.Subkey(PayloadScope); ok {
		t.Fatalf("payload scope belongs to the profile root only")
	}
	payloadType, _ := p.Subkey(PayloadType)
	if got, _ := payloadType.Default.AsString(); got != "com.example.app" {
		t.Fatalf("expected PayloadType default to be the domain, got %q", got)
	}
	if payloadType.Require != RequireAlways {
		t.Fatalf("expected PayloadType to be required, got %q", payloadType.Require)
	}
	enabled, _ := p.Subkey("Enabled")
	if !enabled.IsSinglePayloadContent {
		t.Fatalf("expected the only content key to be flagged")
	}

	profile := mustParse(t, testManifest(DomainConfiguration, field("PayloadContent", "array")), AppleManifest())
	scope, ok := profile.Subkey(PayloadScope)
	if !ok {
		t.Fatalf("expected PayloadScope on the profile root")
	}
	if len(scope.RangeList) != 2 {
		t.Fatalf("unexpected scope range list %v", scope.RangeList)
	}
}

func TestDeclaredSharedSubkeyIsKept(t *testing.T) {
	p := mustParse(t, testManifest("com.example.app",
		field(PayloadType, "string", KeyDefault, "com.example.custom"),
		field("Enabled", "boolean"),
	), AppleManifest())
	count := 0
	for _, s := range p.Subkeys() {
		if s.Key == PayloadType {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one PayloadType, got %d", count)
	}
	s, _ := p.Subkey(PayloadType)
	if got, _ := s.Default.AsString(); got != "com.example.custom" {
		t.Fatalf("expected declared default, got %q", got)
	}
}

func TestUnknownAttributesAreIgnoredNotFatal(t *testing.T) {
	p := mustParse(t, testManifest("com.example.app",
		field("Enabled", "boolean", "pfm_future_flag", true, KeyTitle, 42),
	), AppleManifest())
	s, _ := p.Subkey("Enabled")
	if _, ok := s.IgnoredKeys["pfm_future_flag"]; !ok {
		t.Fatalf("expected unknown key to be recorded")
	}
	if _, ok := s.IgnoredKeys[KeyTitle]; !ok || s.Title != "" {
		t.Fatalf("expected mistyped title to be ignored")
	}
}

func TestPlatformNegationAndAvailability(t *testing.T) {
	p := mustParse(t, testManifest("com.example.app",
		field("MacOnly", "boolean", KeyNotPlatforms, []any{"iOS"}, KeyMacOSMin, "13.0", KeyMacOSDeprecated, "14.0"),
		field("Everywhere", "boolean"),
	), AppleManifest())
	macOnly, _ := p.Subkey("MacOnly")
	if macOnly.AvailableOn(PlatformIOS, "") {
		t.Fatalf("expected iOS to be excluded")
	}
	if macOnly.AvailableOn(PlatformMacOS, "12.6") {
		t.Fatalf("expected 12.6 to be below the minimum")
	}
	if !macOnly.AvailableOn(PlatformMacOS, "13.1") {
		t.Fatalf("expected 13.1 to be available")
	}
	if macOnly.IsDeprecatedOn(PlatformMacOS, "13.5") || !macOnly.IsDeprecatedOn(PlatformMacOS, "14.1") {
		t.Fatalf("unexpected deprecation handling")
	}
	everywhere, _ := p.Subkey("Everywhere")
	if !everywhere.AvailableOn(PlatformIOS, "17") {
		t.Fatalf("expected inherited platforms")
	}
}
