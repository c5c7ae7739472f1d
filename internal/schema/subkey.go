package schema

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"profilepayloads/internal/logging"
	"profilepayloads/internal/processor"
	"profilepayloads/internal/value"
)

// VersionRange bounds availability on one platform.
type VersionRange struct {
	Min        string `json:"min,omitempty"`
	Max        string `json:"max,omitempty"`
	Deprecated string `json:"deprecated,omitempty"`
}

// Availability carries the per-platform and application version bounds.
type Availability struct {
	App   VersionRange `json:"app,omitempty"`
	MacOS VersionRange `json:"macos,omitempty"`
	IOS   VersionRange `json:"ios,omitempty"`
	TVOS  VersionRange `json:"tvos,omitempty"`
}

// For returns the range of a single platform.
func (a Availability) For(p Platforms) VersionRange {
	switch p {
	case PlatformMacOS:
		return a.MacOS
	case PlatformIOS:
		return a.IOS
	case PlatformTVOS:
		return a.TVOS
	}
	return VersionRange{}
}

// Subkey is one node of a payload schema tree.
type Subkey struct {
	ID       NodeID
	ParentID NodeID
	RootID   NodeID
	ChildIDs []NodeID
	tree     *Tree

	Kind             Kind
	Domain           string
	DomainIdentifier string

	Key          string
	KeyPath      string
	ValueKeyPath string
	Type         value.Type
	InputType    value.Type

	Title                string
	Description          string
	DescriptionExtended  string
	DescriptionReference string
	DocumentationURL     string
	DocumentationSource  string
	Note                 string
	Format               string
	View                 string
	AllowedFileTypes     []string

	Default     value.Value
	DefaultCopy string
	ValueCopy   string
	Placeholder value.Value

	RangeMin                  value.Value
	RangeMax                  value.Value
	RangeList                 []value.Value
	RangeListTitles           []string
	RangeListAllowCustomValue bool
	RepetitionMin             *int
	RepetitionMax             *int

	Require  Require
	Hidden   Hidden
	Enabled  bool
	Excluded bool

	Platforms           Platforms
	PlatformsDeprecated Platforms
	Targets             Targets
	Supervised          bool
	UserApproved        bool
	Availability        Availability

	Conditionals []*Condition
	Excludes     []*Exclude
	ContainsAny  []value.Value

	ValueProcessor       string
	ValueInfoProcessor   string
	ValueImportProcessor string
	ValueInverted        bool
	ValueUnique          bool
	ValueDecimalPlaces   *int
	ValueUnit            string
	DateStyle            DateStyle
	DateAllowPast        bool

	Sensitive             bool
	SensitiveMessage      string
	Segments              map[string][]string
	SubstitutionVariables map[string]map[string]string

	IsSingleContainer           bool
	IsSinglePayloadContent      bool
	IsParentArrayOfDictionaries bool
	IsConditionalTarget         bool

	// IgnoredKeys holds entries that were not understood.
	IgnoredKeys map[string]value.Value
}

const sensitiveMessage = "This value is stored in the clear in the profile, it is recommended that the profile be encrypted for the device if it's not delivered by an MDM."

// Payload returns the owning payload.
func (s *Subkey) Payload() *Payload {
	if s.tree == nil {
		return nil
	}
	return s.tree.payload
}

func (s *Subkey) Parent() *Subkey {
	if s.tree == nil {
		return nil
	}
	return s.tree.Node(s.ParentID)
}

func (s *Subkey) Root() *Subkey {
	if s.tree == nil {
		return nil
	}
	return s.tree.Node(s.RootID)
}

func (s *Subkey) Children() []*Subkey {
	if s.tree == nil {
		return nil
	}
	return s.tree.Children(s.ID)
}

// Ancestors returns the chain from the root down to the parent.
func (s *Subkey) Ancestors() []*Subkey {
	if s.tree == nil {
		return nil
	}
	return s.tree.Ancestors(s.ID)
}

// Descendants returns every node below s in depth-first order.
func (s *Subkey) Descendants() []*Subkey {
	var out []*Subkey
	for _, child := range s.Children() {
		out = append(out, child)
		out = append(out, child.Descendants()...)
	}
	return out
}

func (s *Subkey) IsContainer() bool {
	return s.Type == value.TypeArray || s.Type == value.TypeDictionary
}

// Field describes s for the value processor pipeline.
func (s *Subkey) Field() processor.Field {
	return processor.Field{
		KeyPath:   s.KeyPath,
		Type:      s.Type,
		InputType: s.InputType,
		Processor: s.ValueProcessor,
		RangeList: s.RangeList,
	}
}

// AvailableOn reports whether s applies to platform at osVersion. An empty
// osVersion only checks the platform bit.
func (s *Subkey) AvailableOn(platform Platforms, osVersion string) bool {
	if !s.Platforms.Has(platform) {
		return false
	}
	return versionInRange(osVersion, s.Availability.For(platform))
}

// AvailableForApp checks the pfm_app_min and pfm_app_max bounds.
func (s *Subkey) AvailableForApp(appVersion string) bool {
	return versionInRange(appVersion, s.Availability.App)
}

// IsDeprecatedOn reports whether s is deprecated on platform at osVersion.
func (s *Subkey) IsDeprecatedOn(platform Platforms, osVersion string) bool {
	if s.PlatformsDeprecated&platform == 0 {
		return false
	}
	deprecated := s.Availability.For(platform).Deprecated
	if osVersion == "" || deprecated == "" {
		return true
	}
	return compareVersions(osVersion, deprecated) >= 0
}

func (s *Subkey) log() *logrus.Entry {
	return logging.Log.WithFields(map[string]any{"domain": s.DomainIdentifier, "key_path": s.KeyPath})
}

func unescapeNewlines(text string) string {
	return strings.ReplaceAll(text, `\n`, "\n")
}

func intOf(v value.Value) (int, bool) {
	i, ok := v.AsInt()
	return int(i), ok
}

// setAttribute applies one manifest key. It returns false for keys that are
// unknown or carry the wrong type.
func (s *Subkey) setAttribute(key string, v value.Value) bool {
	switch key {
	case KeyAllowedFileTypes:
		if items, ok := v.AsStrings(); ok {
			s.AllowedFileTypes = items
			return true
		}
	case KeyContainsAny:
		if items, ok := v.AsArray(); ok {
			s.ContainsAny = items
			return true
		}
	case KeyDateAllowPast:
		if b, ok := v.AsBool(); ok {
			s.DateAllowPast = b
			return true
		}
	case KeyDateStyle:
		if str, ok := v.AsString(); ok {
			s.DateStyle = ParseDateStyle(str)
			return true
		}
	case KeyDescription:
		if str, ok := v.AsString(); ok {
			s.Description = unescapeNewlines(str)
			return true
		}
	case KeyDescriptionExtended:
		if str, ok := v.AsString(); ok {
			s.DescriptionExtended = unescapeNewlines(str)
			return true
		}
	case KeyDescriptionReference:
		if str, ok := v.AsString(); ok {
			s.DescriptionReference = unescapeNewlines(str)
			return true
		}
	case KeyDocumentationSource:
		if str, ok := v.AsString(); ok {
			s.DocumentationSource = str
			return true
		}
	case KeyDocumentationURL:
		if str, ok := v.AsString(); ok {
			if _, err := url.Parse(str); err == nil {
				s.DocumentationURL = str
				return true
			}
		}
	case KeyEnabled:
		if b, ok := v.AsBool(); ok {
			s.Enabled = b
			return true
		}
	case KeyExcluded:
		if b, ok := v.AsBool(); ok {
			s.Excluded = b
			return true
		}
	case KeyFormat:
		if str, ok := v.AsString(); ok {
			s.Format = str
			return true
		}
	case KeyAppMin, KeyAppMax, KeyAppDeprecated,
		KeyMacOSMin, KeyMacOSMax, KeyMacOSDeprecated,
		KeyIOSMin, KeyIOSMax, KeyIOSDeprecated,
		KeyTVOSMin, KeyTVOSMax, KeyTVOSDeprecated:
		if str, ok := v.AsString(); ok {
			s.PlatformsDeprecated |= setVersionKey(&s.Availability, key, str)
			return true
		}
	case KeyNote:
		if str, ok := v.AsString(); ok {
			s.Note = str
			return true
		}
	case KeyRangeList:
		if items, ok := rangeListFor(s.Type, v); ok {
			s.RangeList = items
			return true
		}
	case KeyRangeListAllowCustomValue:
		if b, ok := v.AsBool(); ok {
			s.RangeListAllowCustomValue = b
			return true
		}
	case KeyRequire, KeyRequired:
		if r, ok := ParseRequire(v); ok {
			if r != RequireNever {
				s.Require = r
			}
			return true
		}
	case KeyRepetitionMax:
		if i, ok := intOf(v); ok {
			s.RepetitionMax = &i
			return true
		}
	case KeyRepetitionMin:
		if i, ok := intOf(v); ok {
			s.RepetitionMin = &i
			return true
		}
	case KeySegments:
		if segments, ok := stringListMap(v); ok {
			s.Segments = segments
			return true
		}
	case KeySensitive:
		if b, ok := v.AsBool(); ok {
			s.Sensitive = b
			s.SensitiveMessage = sensitiveMessage
			return true
		}
	case KeySubstitutionVariables:
		if vars, ok := substitutionVariables(v); ok {
			s.SubstitutionVariables = vars
			return true
		}
	case KeySupervised:
		if b, ok := v.AsBool(); ok {
			s.Supervised = b
			return true
		}
	case KeyTargets:
		if t, ok := ParseTargets(v); ok {
			s.Targets = t
			return true
		}
	case KeyTitle:
		if str, ok := v.AsString(); ok {
			s.Title = str
			return true
		}
	case KeyUserApproved:
		if b, ok := v.AsBool(); ok {
			s.UserApproved = b
			return true
		}
	case KeyValueCopy:
		if str, ok := v.AsString(); ok {
			s.ValueCopy = str
			return true
		}
	case KeyValueDecimalPlaces:
		if i, ok := intOf(v); ok {
			s.ValueDecimalPlaces = &i
			return true
		}
	case KeyDefault:
		if !v.IsUndefined() {
			s.Default = v
			return true
		}
	case KeyDefaultCopy:
		if str, ok := v.AsString(); ok {
			s.DefaultCopy = str
			return true
		}
	case KeyRangeMax:
		if !v.IsUndefined() {
			s.RangeMax = v
			return true
		}
	case KeyRangeMin:
		if !v.IsUndefined() {
			s.RangeMin = v
			return true
		}
	case KeyValueInverted:
		if b, ok := v.AsBool(); ok {
			s.ValueInverted = b
			return true
		}
	case KeyValuePlaceholder:
		if !v.IsUndefined() {
			s.Placeholder = v
			return true
		}
	case KeyValueProcessor:
		if str, ok := v.AsString(); ok {
			s.ValueProcessor = str
			return true
		}
	case KeyValueInfoProcessor:
		if str, ok := v.AsString(); ok {
			s.ValueInfoProcessor = str
			return true
		}
	case KeyValueImportProcessor:
		if str, ok := v.AsString(); ok {
			s.ValueImportProcessor = str
			return true
		}
	case KeyValueUnit:
		if str, ok := v.AsString(); ok {
			s.ValueUnit = str
			return true
		}
	case KeyValueUnique:
		if b, ok := v.AsBool(); ok {
			s.ValueUnique = b
			return true
		}
	case KeyView:
		if str, ok := v.AsString(); ok {
			s.View = str
			return true
		}
	}
	return false
}

// setVersionKey stores a version bound and returns the platform it
// deprecates, if any.
func setVersionKey(a *Availability, key, version string) Platforms {
	switch key {
	case KeyAppMin:
		a.App.Min = version
	case KeyAppMax:
		a.App.Max = version
	case KeyAppDeprecated:
		a.App.Deprecated = version
	case KeyMacOSMin:
		a.MacOS.Min = version
	case KeyMacOSMax:
		a.MacOS.Max = version
	case KeyMacOSDeprecated:
		a.MacOS.Deprecated = version
		return PlatformMacOS
	case KeyIOSMin:
		a.IOS.Min = version
	case KeyIOSMax:
		a.IOS.Max = version
	case KeyIOSDeprecated:
		a.IOS.Deprecated = version
		return PlatformIOS
	case KeyTVOSMin:
		a.TVOS.Min = version
	case KeyTVOSMax:
		a.TVOS.Max = version
	case KeyTVOSDeprecated:
		a.TVOS.Deprecated = version
		return PlatformTVOS
	}
	return PlatformsNone
}

// rangeListFor accepts a range list only when every element fits t.
// Integer and float lists also accept numeric strings.
func rangeListFor(t value.Type, v value.Value) ([]value.Value, bool) {
	items, ok := v.AsArray()
	if !ok {
		return nil, false
	}
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		switch t {
		case value.TypeInteger:
			switch item.Type() {
			case value.TypeInteger:
				out = append(out, item)
			case value.TypeString:
				str, _ := item.AsString()
				i, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
				if err != nil {
					return nil, false
				}
				out = append(out, value.Int(i))
			default:
				return nil, false
			}
		case value.TypeFloat:
			switch item.Type() {
			case value.TypeFloat:
				out = append(out, item)
			case value.TypeInteger:
				i, _ := item.AsInt()
				out = append(out, value.Float(float64(i)))
			case value.TypeString:
				str, _ := item.AsString()
				f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
				if err != nil {
					return nil, false
				}
				out = append(out, value.Float(f))
			default:
				return nil, false
			}
		default:
			if value.TypeOf(item) != t {
				return nil, false
			}
			out = append(out, item)
		}
	}
	return out, true
}

func stringListMap(v value.Value) (map[string][]string, bool) {
	dict, ok := v.AsDictionary()
	if !ok {
		return nil, false
	}
	out := make(map[string][]string, len(dict))
	for k, item := range dict {
		list, ok := item.AsStrings()
		if !ok {
			return nil, false
		}
		out[k] = list
	}
	return out, true
}

func substitutionVariables(v value.Value) (map[string]map[string]string, bool) {
	dict, ok := v.AsDictionary()
	if !ok {
		return nil, false
	}
	out := make(map[string]map[string]string, len(dict))
	for name, item := range dict {
		inner, ok := item.AsDictionary()
		if !ok {
			return nil, false
		}
		vars := make(map[string]string, len(inner))
		for k, raw := range inner {
			str, ok := raw.AsString()
			if !ok {
				return nil, false
			}
			vars[k] = str
		}
		out[name] = vars
	}
	return out, true
}
