package schema

import (
	"strings"

	"profilepayloads/internal/value"
)

// KindTag discriminates the source a payload schema was built from.
type KindTag int

const (
	KindUnknown KindTag = iota
	KindAppleManifest
	KindManagedPreference
	KindLocalPreference
	KindCustom
)

// PreferenceFolder sub-classifies managed preference schemas.
type PreferenceFolder int

const (
	FolderNone PreferenceFolder = iota
	FolderApple
	FolderApplications
	FolderDeveloper
)

const (
	FolderNameManifestsApple                 = "ManifestsApple"
	FolderNameManagedPreferencesApple        = "ManagedPreferencesApple"
	FolderNameManagedPreferencesApplications = "ManagedPreferencesApplications"
	FolderNameManagedPreferencesDeveloper    = "ManagedPreferencesDeveloper"
)

// Kind is the tagged variant every payload carries. Folder is set for
// managed preferences and Content for custom payloads.
type Kind struct {
	Tag     KindTag
	Folder  PreferenceFolder
	Content []map[string]value.Value
}

func AppleManifest() Kind { return Kind{Tag: KindAppleManifest} }

func ManagedPreference(folder PreferenceFolder) Kind {
	return Kind{Tag: KindManagedPreference, Folder: folder}
}

func LocalPreference() Kind { return Kind{Tag: KindLocalPreference} }

func Custom(content []map[string]value.Value) Kind {
	return Kind{Tag: KindCustom, Content: content}
}

// Kinds lists the kinds that are loaded from a manifests directory, in load
// order.
func Kinds() []Kind {
	return []Kind{
		AppleManifest(),
		ManagedPreference(FolderApple),
		ManagedPreference(FolderApplications),
		ManagedPreference(FolderDeveloper),
	}
}

// Key is a stable identifier for the kind, ignoring custom content.
func (k Kind) Key() string {
	switch k.Tag {
	case KindAppleManifest:
		return "manifestsApple"
	case KindManagedPreference:
		switch k.Folder {
		case FolderApple:
			return "managedPreferencesApple"
		case FolderApplications:
			return "managedPreferencesApplications"
		case FolderDeveloper:
			return "managedPreferencesDeveloper"
		}
		return "managedPreferences"
	case KindLocalPreference:
		return "managedPreferencesApplicationsLocal"
	case KindCustom:
		return "custom"
	}
	return "unknown"
}

func (k Kind) String() string { return k.Key() }

// Same reports whether two kinds name the same source, ignoring content.
func (k Kind) Same(other Kind) bool {
	return k.Tag == other.Tag && k.Folder == other.Folder
}

// FolderName is the directory name the kind is stored under, empty for kinds
// that are never read from disk.
func (k Kind) FolderName() string {
	switch k.Tag {
	case KindAppleManifest:
		return FolderNameManifestsApple
	case KindManagedPreference:
		switch k.Folder {
		case FolderApple:
			return FolderNameManagedPreferencesApple
		case FolderApplications:
			return FolderNameManagedPreferencesApplications
		case FolderDeveloper:
			return FolderNameManagedPreferencesDeveloper
		}
	}
	return ""
}

// KindForFolder maps a directory name back to its kind.
func KindForFolder(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.FolderName() == name {
			return k, true
		}
	}
	return Kind{}, false
}

// ParseKind accepts a kind key or folder name, case-insensitively.
func ParseKind(name string) (Kind, bool) {
	name = strings.TrimSpace(name)
	for _, k := range append(Kinds(), LocalPreference(), Custom(nil)) {
		if strings.EqualFold(k.Key(), name) || (k.FolderName() != "" && strings.EqualFold(k.FolderName(), name)) {
			return k, true
		}
	}
	return Kind{}, false
}

// Family groups kinds that share conditional target bookkeeping.
type Family int

const (
	FamilyNone Family = iota
	FamilyManifests
	FamilyManagedPreferences
)

func (k Kind) Family() Family {
	switch k.Tag {
	case KindAppleManifest:
		return FamilyManifests
	case KindManagedPreference, KindLocalPreference:
		return FamilyManagedPreferences
	}
	return FamilyNone
}
