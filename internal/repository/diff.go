package repository

import (
	"path/filepath"

	"profilepayloads/internal/fsutil"
	"profilepayloads/internal/logging"
	"profilepayloads/internal/schema"
	"profilepayloads/internal/value"
)

// Diff returns the entries of index that need fetching. Top-level keys of
// index are kind folder names; unknown folders and malformed entries are
// skipped. Folders with no updates are left out.
func Diff(artifact Artifact, index map[string]value.Value, local Local) Updates {
	out := Updates{}
	for folder, domainsValue := range index {
		kind, ok := schema.KindForFolder(folder)
		if !ok {
			logging.Log.WithField("folder", folder).Debug("unknown index folder")
			continue
		}
		domains, ok := domainsValue.AsDictionary()
		if !ok {
			continue
		}
		updates := map[string]Entry{}
		for id, entryValue := range domains {
			dict, ok := entryValue.AsDictionary()
			if !ok {
				continue
			}
			entry := Entry(dict)
			var needed bool
			switch artifact {
			case ArtifactManifests:
				needed = manifestNeedsUpdate(id, kind, entry, local)
			case ArtifactIcons:
				needed = iconNeedsUpdate(id, kind, entry, local)
			}
			if needed {
				updates[id] = entry
			}
		}
		if len(updates) > 0 {
			out[folder] = updates
		}
	}
	return out
}

// manifestNeedsUpdate compares (version, modified) with version dominant.
func manifestNeedsUpdate(id string, kind schema.Kind, entry Entry, local Local) bool {
	version, ok := entry.Version()
	if !ok {
		return false
	}
	modified, ok := entry.Modified()
	if !ok {
		return false
	}
	if local == nil {
		return true
	}
	p, ok := local.Payload(id, kind)
	if !ok {
		return true
	}
	if int64(p.Version) != version {
		return int64(p.Version) < version
	}
	return p.LastModified.Before(modified)
}

func iconNeedsUpdate(id string, kind schema.Kind, entry Entry, local Local) bool {
	hash, ok := entry.Hash()
	if !ok {
		return false
	}
	if local == nil {
		return true
	}
	return !local.IconMatches(id, kind, hash)
}

// MarkUpdates flags the installed payloads named in updates and merges each
// entry into the payload's update index.
func MarkUpdates(local Local, updates Updates) int {
	if local == nil {
		return 0
	}
	marked := 0
	for folder, domains := range updates {
		kind, ok := schema.KindForFolder(folder)
		if !ok {
			continue
		}
		for id, entry := range domains {
			p, ok := local.Payload(id, kind)
			if !ok {
				continue
			}
			p.UpdateAvailable = true
			if p.UpdateIndex == nil {
				p.UpdateIndex = map[string]value.Value{}
			}
			for k, v := range entry {
				p.UpdateIndex[k] = v
			}
			marked++
		}
	}
	return marked
}

// Installed is the Local backed by a schema store and icon directories laid
// out as <root>/<folder>/<domain>.png.
type Installed struct {
	Store     *schema.Store
	IconRoots []string
	FS        fsutil.FS
}

func (i *Installed) Payload(domainIdentifier string, kind schema.Kind) (*schema.Payload, bool) {
	if i.Store == nil {
		return nil, false
	}
	return i.Store.Payload(domainIdentifier, kind)
}

// IconMatches checks each icon root in order and reports whether any
// installed icon has the md5 hash.
func (i *Installed) IconMatches(domainIdentifier string, kind schema.Kind, hash string) bool {
	fs := i.FS
	if fs == nil {
		fs = fsutil.OS{}
	}
	for _, root := range i.IconRoots {
		path := filepath.Join(root, kind.FolderName(), domainIdentifier+".png")
		if !fs.Exists(path) {
			continue
		}
		data, err := fs.ReadFile(path)
		if err != nil {
			logging.Log.WithField("path", path).WithError(err).Debug("failed to read icon")
			continue
		}
		if fsutil.MD5Hex(data) == hash {
			return true
		}
	}
	return false
}
