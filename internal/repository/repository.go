package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"profilepayloads/internal/codec"
	"profilepayloads/internal/fsutil"
	"profilepayloads/internal/logging"
	"profilepayloads/internal/value"
)

const (
	DefaultURL         = "https://github.com/erikberglund/ProfileManifests"
	DefaultBranch      = "master"
	DefaultContentHost = "https://raw.githubusercontent.com"
)

// IndexCache persists fetched index bytes per repository and artifact.
type IndexCache interface {
	SaveIndex(ctx context.Context, repository string, artifact Artifact, data []byte) error
	LoadIndex(ctx context.Context, repository string, artifact Artifact) ([]byte, bool, error)
}

// Options configures a Repository.
type Options struct {
	Name   string
	URL    string
	Branch string
	// ContentBase replaces the raw content URL derived from URL and Branch.
	ContentBase string
	Client      *retryablehttp.Client
	Cache       IndexCache
	Local       Local
	FS          fsutil.FS
	Now         func() time.Time
}

// Repository fetches the index files of one GitHub manifest repository and
// tracks the updates they announce. At most one fetch per artifact and one
// download run at a time.
type Repository struct {
	Name        string
	URL         string
	Branch      string
	ContentBase string

	client *retryablehttp.Client
	cache  IndexCache
	local  Local
	fs     fsutil.FS
	now    func() time.Time

	mu          sync.Mutex
	fetching    map[Artifact]bool
	downloading bool
	indexes     map[Artifact]map[string]value.Value
	updates     map[Artifact]Updates
	lastUpdated time.Time

	// apply serializes diff-and-mark runs; a Set shares one across its
	// repositories.
	apply *sync.Mutex
}

func New(opts Options) (*Repository, error) {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = DefaultURL
	}
	if opts.Branch == "" {
		opts.Branch = DefaultBranch
	}
	u, err := url.Parse(opts.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("REPO_CONFIG: invalid repository url %q", opts.URL)
	}
	content := strings.TrimSuffix(opts.ContentBase, "/")
	if content == "" {
		repoPath := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
		if strings.Count(repoPath, "/") != 1 {
			return nil, fmt.Errorf("REPO_CONFIG: expected <owner>/<repository> in %q", opts.URL)
		}
		content = DefaultContentHost + "/" + repoPath + "/" + opts.Branch
	}
	if opts.Name == "" {
		opts.Name = path.Base(strings.TrimSuffix(u.Path, ".git"))
	}
	client := opts.Client
	if client == nil {
		client = NewClient(4, 30*time.Second)
	}
	fs := opts.FS
	if fs == nil {
		fs = fsutil.OS{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Repository{
		Name:        opts.Name,
		URL:         opts.URL,
		Branch:      opts.Branch,
		ContentBase: content,
		client:      client,
		cache:       opts.Cache,
		local:       opts.Local,
		fs:          fs,
		now:         now,
		fetching:    map[Artifact]bool{},
		indexes:     map[Artifact]map[string]value.Value{},
		updates:     map[Artifact]Updates{},
		apply:       &sync.Mutex{},
	}, nil
}

// IndexURL is <content>/<artifact>/index.
func (r *Repository) IndexURL(artifact Artifact) string {
	return r.ContentBase + "/" + string(artifact) + "/index"
}

func (r *Repository) LastUpdated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdated
}

// Index returns the last index loaded for artifact.
func (r *Repository) Index(artifact Artifact) (map[string]value.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.indexes[artifact]
	return idx, ok
}

// Updates returns the updates computed by the last fetch of artifact.
func (r *Repository) Updates(artifact Artifact) (Updates, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.updates[artifact]
	return u, ok
}

func (r *Repository) beginFetch(artifact Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetching[artifact] {
		return ErrAlreadyFetchingIndex
	}
	r.fetching[artifact] = true
	return nil
}

func (r *Repository) endFetch(artifact Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fetching, artifact)
}

// FetchIndex downloads the artifact's index, persists it to the cache and
// returns the entries that need fetching. When the download fails the cached
// index is used instead, unless ignoreCache is set.
func (r *Repository) FetchIndex(ctx context.Context, artifact Artifact, ignoreCache bool) (Updates, error) {
	if _, ok := ParseArtifact(string(artifact)); !ok {
		return nil, ErrUnknown
	}
	if err := r.beginFetch(artifact); err != nil {
		return nil, err
	}
	defer r.endFetch(artifact)

	log := logging.Log.WithFields(map[string]any{"repository": r.Name, "artifact": string(artifact)})
	index, err := r.download(ctx, artifact)
	if err == nil {
		r.setIndex(artifact, index)
		return r.checkUpdates(artifact)
	}
	log.WithError(err).Warn("failed to fetch index")

	if !ignoreCache && r.cache != nil {
		data, ok, cerr := r.cache.LoadIndex(ctx, r.Name, artifact)
		if cerr != nil {
			log.WithError(cerr).Warn("failed to read cached index")
		}
		if ok {
			if cached, derr := DecodeIndex(data); derr == nil {
				log.Info("using cached index")
				r.setIndex(artifact, cached)
				return r.checkUpdates(artifact)
			}
		}
	}
	return nil, err
}

func (r *Repository) download(ctx context.Context, artifact Artifact) (map[string]value.Value, error) {
	data, err := get(ctx, r.client, r.IndexURL(artifact))
	if err != nil {
		return nil, err
	}
	index, err := DecodeIndex(data)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.SaveIndex(ctx, r.Name, artifact, data); err != nil {
			logging.Log.WithField("repository", r.Name).WithError(err).Warn("failed to cache index")
		}
	}
	return index, nil
}

// DecodeIndex parses index bytes in any supported format into its folder
// dictionary.
func DecodeIndex(data []byte) (map[string]value.Value, error) {
	v, err := codec.DecodeDictionary(data, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	dict, _ := v.AsDictionary()
	return dict, nil
}

func (r *Repository) setIndex(artifact Artifact, index map[string]value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[artifact] = index
	r.lastUpdated = r.now()
}

// checkUpdates diffs the loaded index against the local state and marks the
// affected payloads.
func (r *Repository) checkUpdates(artifact Artifact) (Updates, error) {
	index, ok := r.Index(artifact)
	if !ok {
		return nil, ErrNoIndex
	}
	r.apply.Lock()
	defer r.apply.Unlock()
	updates := Diff(artifact, index, r.local)
	MarkUpdates(r.local, updates)
	r.mu.Lock()
	r.updates[artifact] = updates
	r.mu.Unlock()
	return updates, nil
}

// DownloadURLs resolves each entry's repository-relative path against the
// content base. Entries without a <directory>/<file> path are skipped.
func (r *Repository) DownloadURLs(updates Updates) []string {
	var out []string
	for _, p := range downloadPaths(updates) {
		out = append(out, r.ContentBase+"/"+p)
	}
	return out
}

func downloadPaths(updates Updates) []string {
	var out []string
	for _, item := range (UpdateSet{"": updates}).Items() {
		p := strings.TrimLeft(item.Path, "/")
		if !safeEntryPath(p) {
			logging.Log.WithField("path", item.Path).Warn("index entry path is not repository-relative")
			continue
		}
		p = path.Clean(p)
		if strings.Count(p, "/") < 1 {
			logging.Log.WithField("path", item.Path).Debug("index entry has no directory")
			continue
		}
		out = append(out, p)
	}
	return out
}

// safeEntryPath reports whether p is a relative slash path with no parent
// segments. A leading slash is read as the repository root and must be
// trimmed first.
func safeEntryPath(p string) bool {
	if p == "" || path.IsAbs(p) || filepath.IsAbs(p) || strings.Contains(p, `\`) {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// withinDir reports whether target resolves to a path below dir.
func withinDir(dir, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(target))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Download fetches every file announced by the last fetch of artifact and
// writes it below dest, dropping the leading artifact directory of the
// entry path. Files that fail are reported together after the rest are
// written.
func (r *Repository) Download(ctx context.Context, artifact Artifact, dest string) ([]string, error) {
	r.mu.Lock()
	if r.downloading {
		r.mu.Unlock()
		return nil, ErrAlreadyDownloadingUpdates
	}
	updates, ok := r.updates[artifact]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNoUpdates
	}
	r.downloading = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.downloading = false
		r.mu.Unlock()
	}()

	var written []string
	var errs []error
	for _, p := range downloadPaths(updates) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		target := filepath.Join(dest, filepath.FromSlash(strings.TrimPrefix(p, string(artifact)+"/")))
		if !withinDir(dest, target) {
			logging.Log.WithField("path", p).WithField("dest", dest).Warn("index entry resolves outside the destination")
			continue
		}
		data, err := get(ctx, r.client, r.ContentBase+"/"+p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.fs.WriteFile(target, data); err != nil {
			errs = append(errs, fmt.Errorf("REPO_WRITE: %s: %w", target, err))
			continue
		}
		written = append(written, target)
	}
	return written, errors.Join(errs...)
}
