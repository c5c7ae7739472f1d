package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"profilepayloads/internal/codec"
	"profilepayloads/internal/fsutil"
	"profilepayloads/internal/logging"
	"profilepayloads/internal/override"
	"profilepayloads/internal/value"
)

// Loader reads manifest directories into a Store. Each root holds one
// sub-directory per kind folder name.
type Loader struct {
	Roots         []string
	Overrides     string
	FormatVersion int
	Store         *Store
	// FS defaults to the host file system.
	FS fsutil.FS
}

func (l *Loader) files() fsutil.FS {
	if l.FS == nil {
		return fsutil.OS{}
	}
	return l.FS
}

// SkippedFile records a manifest that was not loaded.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// LoadResult summarizes one Load call.
type LoadResult struct {
	Loaded    int           `json:"loaded"`
	Overrides int           `json:"overrides"`
	Targets   int           `json:"conditional_targets"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
}

// Load reads every root in order. The newest manifest per domain identifier
// wins; files that fail to parse are recorded and skipped.
func (l *Loader) Load(ctx context.Context) (LoadResult, error) {
	var result LoadResult
	if l.Store == nil {
		return result, errors.New("PFM_SCHEMA_LOAD: loader has no store")
	}
	maxFormat := l.FormatVersion
	if maxFormat <= 0 {
		maxFormat = FormatVersionSupported
	}

	chosen := map[string]*Payload{}
	var order []string
	for _, root := range l.Roots {
		for _, kind := range Kinds() {
			dir := filepath.Join(root, kind.FolderName())
			entries, err := l.files().ReadDir(dir)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					result.Skipped = append(result.Skipped, SkippedFile{Path: dir, Reason: err.Error()})
				}
				continue
			}
			for _, entry := range entries {
				if err := ctx.Err(); err != nil {
					return result, err
				}
				name := entry.Name()
				if entry.IsDir() || strings.HasPrefix(name, ".") {
					continue
				}
				if _, ok := codec.FormatForPath(name); !ok {
					continue
				}
				path := filepath.Join(dir, name)
				p, err := loadFile(l.files(), path, kind)
				if err != nil {
					logging.Log.WithField("path", path).WithError(err).Debug("skipping manifest")
					result.Skipped = append(result.Skipped, SkippedFile{Path: path, Reason: err.Error()})
					continue
				}
				if p.FormatVersion > maxFormat {
					result.Skipped = append(result.Skipped, SkippedFile{Path: path, Reason: fmt.Sprintf("format version %d is newer than %d", p.FormatVersion, maxFormat)})
					continue
				}
				id := kind.Key() + "/" + p.DomainIdentifier
				existing, ok := chosen[id]
				if ok && !newer(p, existing) {
					continue
				}
				if !ok {
					order = append(order, id)
				}
				chosen[id] = p
			}
		}
	}

	for _, id := range order {
		p := chosen[id]
		if l.Overrides != "" {
			applied, err := l.applyOverride(p)
			if err != nil {
				result.Skipped = append(result.Skipped, SkippedFile{Path: p.Path, Reason: err.Error()})
			} else if applied {
				result.Overrides++
			}
		}
		l.Store.Add(p)
		result.Loaded++
	}
	result.Targets = l.Store.MarkConditionalTargets()
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })
	return result, nil
}

// newer reports whether a replaces b: a higher version, or the same version
// modified later.
func newer(a, b *Payload) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	return a.LastModified.After(b.LastModified)
}

// LoadFile parses one manifest file from the host file system.
func LoadFile(path string, kind Kind) (*Payload, error) {
	return loadFile(fsutil.OS{}, path, kind)
}

func loadFile(fsys fsutil.FS, path string, kind Kind) (*Payload, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("PFM_SCHEMA_LOAD: %w", err)
	}
	format, _ := codec.FormatForPath(path)
	p, err := ParseBytes(data, format, kind)
	if err != nil {
		return nil, err
	}
	p.Path = path
	return p, nil
}

// ParseBytes decodes and parses a manifest. The hash is the md5 of data.
func ParseBytes(data []byte, format codec.Format, kind Kind) (*Payload, error) {
	v, err := codec.DecodeDictionary(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	dict, _ := v.AsDictionary()
	return Parse(dict, kind, fsutil.MD5Hex(data))
}

// OverridePath returns the first existing override file for p's domain.
func (l *Loader) OverridePath(p *Payload) (string, bool) {
	folder := p.Kind.FolderName()
	if l.Overrides == "" || folder == "" {
		return "", false
	}
	for _, ext := range []string{".plist", ".json", ".yaml", ".yml"} {
		path := filepath.Join(l.Overrides, folder, p.Domain+ext)
		if l.files().Exists(path) {
			return path, true
		}
	}
	return "", false
}

func (l *Loader) applyOverride(p *Payload) (bool, error) {
	path, ok := l.OverridePath(p)
	if !ok {
		return false, nil
	}
	data, err := l.files().ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("PFM_SCHEMA_OVERRIDE: %w", err)
	}
	format, _ := codec.FormatForPath(path)
	v, err := codec.DecodeDictionary(data, format)
	if err != nil {
		return false, fmt.Errorf("PFM_SCHEMA_OVERRIDE: %s: %w", path, err)
	}
	overrideDict, _ := v.AsDictionary()
	merged, err := ApplyOverride(p, overrideDict, fsutil.MD5Hex(data))
	if err != nil {
		return false, fmt.Errorf("PFM_SCHEMA_OVERRIDE: %s: %w", path, err)
	}
	merged.Path = path
	return merged != p, nil
}

// ApplyOverride merges overrideDict on top of p's manifest and attaches the
// resulting payload as p.Override. An override equal to the source leaves p
// untouched and returns p.
func ApplyOverride(p *Payload, overrideDict map[string]value.Value, hash string) (*Payload, error) {
	merged := override.MergeDictionaries(p.Manifest, overrideDict)
	if value.Equal(value.Dictionary(merged), value.Dictionary(p.Manifest)) {
		return p, nil
	}
	o, err := Parse(merged, p.Kind, hash)
	if err != nil {
		return nil, err
	}
	p.Override = o
	return o, nil
}
