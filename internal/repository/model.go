package repository

import (
	"sort"
	"strings"
	"time"

	"profilepayloads/internal/schema"
	"profilepayloads/internal/value"
)

// Artifact names one of the index files a repository publishes.
type Artifact string

const (
	ArtifactManifests Artifact = "Manifests"
	ArtifactIcons     Artifact = "Icons"
)

// Artifacts lists the artifacts in fetch order.
func Artifacts() []Artifact { return []Artifact{ArtifactManifests, ArtifactIcons} }

// ParseArtifact accepts "manifests" or "icons" in any case.
func ParseArtifact(name string) (Artifact, bool) {
	for _, a := range Artifacts() {
		if strings.EqualFold(string(a), strings.TrimSpace(name)) {
			return a, true
		}
	}
	return "", false
}

// Entry is one domain record of an index: version and modified for
// manifests, hash for icons, and the repository-relative path of the file.
type Entry map[string]value.Value

const (
	entryVersion  = "version"
	entryModified = "modified"
	entryHash     = "hash"
	entryPath     = "path"
)

func (e Entry) Version() (int64, bool) { return e[entryVersion].AsInt() }

// Modified accepts a date or an RFC 3339 string.
func (e Entry) Modified() (time.Time, bool) {
	v := e[entryModified]
	if t, ok := v.AsDate(); ok {
		return t, true
	}
	if s, ok := v.AsString(); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (e Entry) Hash() (string, bool) { return e[entryHash].AsString() }

func (e Entry) Path() (string, bool) { return e[entryPath].AsString() }

// Updates maps a kind folder name to the domain identifiers that need
// fetching and their index entries.
type Updates map[string]map[string]Entry

// Len counts the entries across folders.
func (u Updates) Len() int {
	n := 0
	for _, domains := range u {
		n += len(domains)
	}
	return n
}

// Merge copies other into u, other winning on conflicts.
func (u Updates) Merge(other Updates) {
	for folder, domains := range other {
		dst, ok := u[folder]
		if !ok {
			dst = map[string]Entry{}
			u[folder] = dst
		}
		for id, entry := range domains {
			dst[id] = entry
		}
	}
}

// Item is one flattened update.
type Item struct {
	Artifact         Artifact `json:"artifact"`
	Folder           string   `json:"folder"`
	DomainIdentifier string   `json:"domain_identifier"`
	Path             string   `json:"path,omitempty"`
	Version          int64    `json:"version,omitempty"`
	Hash             string   `json:"hash,omitempty"`
}

// UpdateSet holds the updates of each artifact.
type UpdateSet map[Artifact]Updates

// Items flattens the set, sorted by artifact, folder and domain.
func (s UpdateSet) Items() []Item {
	var out []Item
	for artifact, updates := range s {
		for folder, domains := range updates {
			for id, entry := range domains {
				item := Item{Artifact: artifact, Folder: folder, DomainIdentifier: id}
				item.Path, _ = entry.Path()
				item.Version, _ = entry.Version()
				item.Hash, _ = entry.Hash()
				out = append(out, item)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Artifact != out[j].Artifact {
			return out[i].Artifact > out[j].Artifact
		}
		if out[i].Folder != out[j].Folder {
			return out[i].Folder < out[j].Folder
		}
		return out[i].DomainIdentifier < out[j].DomainIdentifier
	})
	return out
}

func (s UpdateSet) Len() int {
	n := 0
	for _, u := range s {
		n += u.Len()
	}
	return n
}

// Local answers what is currently installed.
type Local interface {
	Payload(domainIdentifier string, kind schema.Kind) (*schema.Payload, bool)
	IconMatches(domainIdentifier string, kind schema.Kind, hash string) bool
}
