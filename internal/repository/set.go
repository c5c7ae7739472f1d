package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Set is the registry of configured repositories.
type Set struct {
	mu    sync.RWMutex
	repos map[string]*Repository
	apply sync.Mutex
}

func NewSet(repos ...*Repository) *Set {
	s := &Set{repos: map[string]*Repository{}}
	for _, r := range repos {
		s.Add(r)
	}
	return s
}

// Add registers r, replacing a repository with the same name.
func (s *Set) Add(r *Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.apply = &s.apply
	s.repos[r.Name] = r
}

func (s *Set) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[name]; !ok {
		return false
	}
	delete(s.repos, name)
	return true
}

// Get finds a repository by name or URL.
func (s *Set) Get(nameOrURL string) (*Repository, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.repos[nameOrURL]; ok {
		return r, true
	}
	want := strings.TrimSuffix(nameOrURL, "/")
	for _, r := range s.repos {
		if strings.TrimSuffix(r.URL, "/") == want {
			return r, true
		}
	}
	return nil, false
}

// All returns the repositories sorted by name.
func (s *Set) All() []*Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Repository, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FetchIndexes fetches the manifests index and then the icons index of one
// repository. The first failure is returned.
func (s *Set) FetchIndexes(ctx context.Context, nameOrURL string, ignoreCache bool) (UpdateSet, error) {
	r, ok := s.Get(nameOrURL)
	if !ok {
		return nil, &RepositoryNotConfigured{URL: nameOrURL}
	}
	out := UpdateSet{}
	for _, artifact := range Artifacts() {
		updates, err := r.FetchIndex(ctx, artifact, ignoreCache)
		if err != nil {
			return nil, err
		}
		out[artifact] = updates
	}
	return out, nil
}

// DownloadUpdates downloads the manifest updates into manifestsDir and the
// icon updates into iconsDir.
func (s *Set) DownloadUpdates(ctx context.Context, nameOrURL, manifestsDir, iconsDir string) ([]string, error) {
	r, ok := s.Get(nameOrURL)
	if !ok {
		return nil, &RepositoryNotConfigured{URL: nameOrURL}
	}
	var written []string
	for _, artifact := range Artifacts() {
		dest := manifestsDir
		if artifact == ArtifactIcons {
			dest = iconsDir
		}
		paths, err := r.Download(ctx, artifact, dest)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
