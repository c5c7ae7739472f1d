package schema

import (
	"strings"

	"profilepayloads/internal/logging"
	"profilepayloads/internal/value"
)

// Platforms is a bitset of operating systems a payload or key applies to.
type Platforms int

const (
	PlatformMacOS Platforms = 1 << iota
	PlatformIOS
	PlatformTVOS

	PlatformsNone Platforms = 0
	PlatformsAll            = PlatformMacOS | PlatformIOS | PlatformTVOS
)

var platformNames = []struct {
	flag Platforms
	name string
}{
	{PlatformMacOS, "macOS"},
	{PlatformIOS, "iOS"},
	{PlatformTVOS, "tvOS"},
}

// ParsePlatform maps a single platform name, case-insensitively.
func ParsePlatform(name string) (Platforms, bool) {
	for _, p := range platformNames {
		if strings.EqualFold(p.name, strings.TrimSpace(name)) {
			return p.flag, true
		}
	}
	return PlatformsNone, false
}

// ParsePlatforms reads an array of platform names. Unknown names are logged
// and skipped; ok is false when v is not an array of strings.
func ParsePlatforms(v value.Value) (Platforms, bool) {
	names, ok := v.AsStrings()
	if !ok {
		return PlatformsNone, false
	}
	var out Platforms
	for _, name := range names {
		p, ok := ParsePlatform(name)
		if !ok {
			logging.Log.WithField("platform", name).Debug("unknown platform")
			continue
		}
		out |= p
	}
	return out, true
}

func (p Platforms) Has(other Platforms) bool { return other != 0 && p&other == other }

func (p Platforms) Names() []string {
	var out []string
	for _, n := range platformNames {
		if p&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (p Platforms) String() string { return strings.Join(p.Names(), ",") }

// Targets is a bitset of install scopes.
type Targets int

const (
	TargetSystem Targets = 1 << iota
	TargetSystemManaged
	TargetUser
	TargetUserManaged

	TargetsNone Targets = 0
	TargetsAll          = TargetSystem | TargetSystemManaged | TargetUser | TargetUserManaged
)

var targetNames = []struct {
	flag Targets
	name string
}{
	{TargetSystem, "system"},
	{TargetSystemManaged, "system-managed"},
	{TargetUser, "user"},
	{TargetUserManaged, "user-managed"},
}

func ParseTargets(v value.Value) (Targets, bool) {
	names, ok := v.AsStrings()
	if !ok {
		return TargetsNone, false
	}
	var out Targets
	for _, name := range names {
		matched := false
		for _, t := range targetNames {
			if strings.EqualFold(t.name, strings.TrimSpace(name)) {
				out |= t.flag
				matched = true
				break
			}
		}
		if !matched {
			logging.Log.WithField("target", name).Debug("unknown target")
		}
	}
	return out, true
}

func (t Targets) Has(other Targets) bool { return other != 0 && t&other == other }

func (t Targets) Names() []string {
	var out []string
	for _, n := range targetNames {
		if t&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (t Targets) String() string { return strings.Join(t.Names(), ",") }

// Distribution is a bitset of delivery methods.
type Distribution int

const (
	DistributionManual Distribution = 1 << iota
	DistributionPush

	DistributionNone Distribution = 0
	DistributionAll               = DistributionManual | DistributionPush
)

func parseDistributionName(name string) (Distribution, bool) {
	switch {
	case strings.EqualFold(name, "manual"):
		return DistributionManual, true
	case strings.EqualFold(name, "push"):
		return DistributionPush, true
	case strings.EqualFold(name, "any"):
		return DistributionAll, true
	}
	return DistributionNone, false
}

// ParseDistribution accepts a single name ("Any", "Manual", "Push") or an
// array of names.
func ParseDistribution(v value.Value) (Distribution, bool) {
	if s, ok := v.AsString(); ok {
		d, _ := parseDistributionName(strings.TrimSpace(s))
		return d, true
	}
	names, ok := v.AsStrings()
	if !ok {
		return DistributionNone, false
	}
	var out Distribution
	for _, name := range names {
		d, ok := parseDistributionName(strings.TrimSpace(name))
		if !ok {
			logging.Log.WithField("distribution", name).Debug("unknown distribution")
			continue
		}
		out |= d
	}
	return out, true
}

func (d Distribution) Has(other Distribution) bool { return other != 0 && d&other == other }

func (d Distribution) Names() []string {
	var out []string
	if d&DistributionManual != 0 {
		out = append(out, "Manual")
	}
	if d&DistributionPush != 0 {
		out = append(out, "Push")
	}
	return out
}

func (d Distribution) String() string { return strings.Join(d.Names(), ",") }

type Hidden string

const (
	HiddenNo        Hidden = "no"
	HiddenAll       Hidden = "all"
	HiddenContainer Hidden = "container"
)

func ParseHidden(s string) Hidden {
	switch h := Hidden(s); h {
	case HiddenAll, HiddenContainer:
		return h
	}
	return HiddenNo
}

type Interaction string

const (
	InteractionCombined  Interaction = "combined"
	InteractionExclusive Interaction = "exclusive"
	InteractionUndefined Interaction = "undefined"
)

func ParseInteraction(s string) Interaction {
	switch i := Interaction(s); i {
	case InteractionCombined, InteractionExclusive:
		return i
	}
	return InteractionUndefined
}

// Require states when a key must be present in an exported document.
type Require string

const (
	RequireNever        Require = "never"
	RequireAlways       Require = "always"
	RequireAlwaysNested Require = "always-nested"
	RequirePush         Require = "push"
)

// ParseRequire accepts the string forms or a boolean, where true means
// always.
func ParseRequire(v value.Value) (Require, bool) {
	if s, ok := v.AsString(); ok {
		switch r := Require(s); r {
		case RequireAlways, RequireAlwaysNested, RequirePush:
			return r, true
		}
		return RequireNever, true
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return RequireAlways, true
		}
		return RequireNever, true
	}
	return RequireNever, false
}

type DateStyle string

const (
	DateStyleDateAndTime DateStyle = "dateAndTime"
	DateStyleTime        DateStyle = "time"
)

func ParseDateStyle(s string) DateStyle {
	if DateStyle(s) == DateStyleTime {
		return DateStyleTime
	}
	return DateStyleDateAndTime
}
