package schema

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"profilepayloads/internal/value"
)

// Payload is the root of one schema tree.
type Payload struct {
	Kind             Kind
	Domain           string
	Subdomain        string
	DomainIdentifier string

	Title         string
	Description   string
	FormatVersion int
	Version       int
	Unique        bool
	LastModified  time.Time
	Hash          string
	Path          string

	Platforms    Platforms
	Targets      Targets
	Distribution Distribution
	Supervised   bool
	UserApproved bool
	Interaction  Interaction
	Availability Availability

	// AppVersion is the installed application version for local
	// preference payloads.
	AppVersion string

	DocumentationURL      string
	Note                  string
	SubstitutionVariables map[string]map[string]string

	// Set after construction.
	UpdateAvailable bool
	UpdateIndex     map[string]value.Value
	Override        *Payload

	Tree     *Tree
	Manifest map[string]value.Value
}

// Equal compares payloads by domain identifier and kind.
func (p *Payload) Equal(other *Payload) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.DomainIdentifier == other.DomainIdentifier && p.Kind.Same(other.Kind)
}

// Subkeys returns the top-level subkeys.
func (p *Payload) Subkeys() []*Subkey { return p.Tree.Roots() }

// AllSubkeys returns every subkey, depth-first.
func (p *Payload) AllSubkeys() []*Subkey { return p.Tree.All() }

// Subkey looks a subkey up by key path.
func (p *Payload) Subkey(keyPath string) (*Subkey, bool) {
	s := p.Tree.Find(keyPath)
	return s, s != nil
}

// PayloadContentSubkeys returns top-level subkeys that are not part of the
// shared payload identity set.
func (p *Payload) PayloadContentSubkeys() []*Subkey {
	var out []*Subkey
	for _, s := range p.Subkeys() {
		if !isPayloadSubkey(s.Key) {
			out = append(out, s)
		}
	}
	return out
}

func isPayloadSubkey(key string) bool {
	for _, k := range PayloadSubkeys {
		if k == key {
			return true
		}
	}
	return false
}

// Effective returns the override variant when one is attached.
func (p *Payload) Effective() *Payload {
	if p.Override != nil {
		return p.Override
	}
	return p
}

// AvailableOn reports whether the payload applies to platform at osVersion.
func (p *Payload) AvailableOn(platform Platforms, osVersion string) bool {
	if !p.Platforms.Has(platform) {
		return false
	}
	return versionInRange(osVersion, p.Availability.For(platform))
}

// SortPayloads orders payloads by domain identifier, then kind.
func SortPayloads(list []*Payload) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].DomainIdentifier != list[j].DomainIdentifier {
			return list[i].DomainIdentifier < list[j].DomainIdentifier
		}
		return list[i].Kind.Key() < list[j].Kind.Key()
	})
}

// canonicalVersion turns "10.15" or "v14.1.2" into a semver string. Versions
// that do not parse yield "".
func canonicalVersion(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return ""
	}
	return semver.Canonical(version)
}

// compareVersions compares two OS or app versions. Unparseable versions
// compare equal to anything.
func compareVersions(a, b string) int {
	ca, cb := canonicalVersion(a), canonicalVersion(b)
	if ca == "" || cb == "" {
		return 0
	}
	return semver.Compare(ca, cb)
}

func versionInRange(version string, r VersionRange) bool {
	if version == "" {
		return true
	}
	if r.Min != "" && compareVersions(version, r.Min) < 0 {
		return false
	}
	if r.Max != "" && compareVersions(version, r.Max) > 0 {
		return false
	}
	return true
}
