package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"profilepayloads/internal/audit"
	"profilepayloads/internal/codec"
	"profilepayloads/internal/config"
	"profilepayloads/internal/doctor"
	"profilepayloads/internal/logging"
	"profilepayloads/internal/processor"
	"profilepayloads/internal/repository"
	"profilepayloads/internal/schema"
	storepkg "profilepayloads/internal/store"
	syncsvc "profilepayloads/internal/sync"
	"profilepayloads/internal/value"
)

type Options struct {
	ConfigPath string
	// Client replaces the retrying HTTP client built from the fetch config.
	Client *retryablehttp.Client
	Now    func() time.Time
}

type Service struct {
	ConfigPath string
	Config     config.Config
	StateRoot  string

	Schemas      *schema.Store
	Processors   *processor.Registry
	Repositories *repository.Set
	Cache        *storepkg.Cache
	Sync         *syncsvc.Service
	Doctor       *doctor.Service
	Audit        *audit.Logger

	installed *repository.Installed
	client    *retryablehttp.Client
	now       func() time.Time
	loaded    bool
	lastLoad  schema.LoadResult
}

func New(opts Options) (*Service, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Ensure(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, err
	}
	stateRoot, err := config.ResolveStorageRoot(cfg)
	if err != nil {
		return nil, err
	}
	if err := storepkg.EnsureLayout(stateRoot); err != nil {
		return nil, err
	}
	cache, err := storepkg.OpenCache(storepkg.CachePath(stateRoot))
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	client := opts.Client
	if client == nil {
		client = repository.NewClient(cfg.Fetch.Retries, cfg.Fetch.TimeoutDuration())
	}
	iconRoots := []string{storepkg.IconsRoot(stateRoot)}
	extra, err := config.ResolveManifestPaths(cfg)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	iconRoots = append(iconRoots, extra...)

	svc := &Service{
		ConfigPath: configPath,
		Config:     cfg,
		StateRoot:  stateRoot,
		Schemas:    schema.NewStore(),
		Processors: processor.NewRegistry(),
		Cache:      cache,
		Audit:      audit.New(storepkg.AuditPath(stateRoot), now),
		client:     client,
		now:        now,
	}
	svc.installed = &repository.Installed{Store: svc.Schemas, IconRoots: iconRoots}
	svc.Repositories = repository.NewSet()
	for _, rc := range config.EnabledRepositories(cfg) {
		r, err := svc.newRepository(rc)
		if err != nil {
			_ = cache.Close()
			return nil, err
		}
		svc.Repositories.Add(r)
	}
	svc.Sync = &syncsvc.Service{
		Repositories:  svc.Repositories,
		History:       cache,
		StateRoot:     stateRoot,
		ManifestsRoot: storepkg.ManifestsRoot(stateRoot),
		IconsRoot:     storepkg.IconsRoot(stateRoot),
		Now:           now,
	}
	svc.Doctor = &doctor.Service{ConfigPath: configPath, StateRoot: stateRoot, StaleAfter: 7 * 24 * time.Hour, Now: now}
	return svc, nil
}

func (s *Service) newRepository(rc config.RepositoryConfig) (*repository.Repository, error) {
	return repository.New(repository.Options{
		Name:        rc.Name,
		URL:         rc.URL,
		Branch:      rc.Branch,
		ContentBase: rc.ContentBase,
		Client:      s.client,
		Cache:       s.Cache,
		Local:       s.installed,
		Now:         s.now,
	})
}

func (s *Service) Close() error {
	return s.Cache.Close()
}

func (s *Service) SaveConfig() error {
	return config.Save(s.ConfigPath, s.Config)
}

// ManifestRoots lists the downloaded manifests first, then the configured
// paths.
func (s *Service) ManifestRoots() ([]string, error) {
	extra, err := config.ResolveManifestPaths(s.Config)
	if err != nil {
		return nil, err
	}
	return append([]string{storepkg.ManifestsRoot(s.StateRoot)}, extra...), nil
}

// LoadManifests reads every manifest root into a fresh schema store and marks
// the payloads the cached repository indexes announce updates for.
func (s *Service) LoadManifests(ctx context.Context) (schema.LoadResult, error) {
	roots, err := s.ManifestRoots()
	if err != nil {
		return schema.LoadResult{}, err
	}
	overrides, err := config.ResolveOverridesRoot(s.Config, storepkg.OverridesRoot(s.StateRoot))
	if err != nil {
		return schema.LoadResult{}, err
	}
	st := schema.NewStore()
	loader := &schema.Loader{
		Roots:         roots,
		Overrides:     overrides,
		FormatVersion: s.Config.Manifests.FormatVersion,
		Store:         st,
	}
	result, err := loader.Load(ctx)
	if err != nil {
		return result, err
	}
	s.Schemas = st
	s.installed.Store = st
	s.loaded = true
	s.lastLoad = result
	for _, r := range s.Repositories.All() {
		set, err := s.cachedUpdates(ctx, r)
		if err != nil {
			logging.Log.WithError(err).WithField("repository", r.Name).Warn("ignoring unreadable cached index")
			continue
		}
		repository.MarkUpdates(s.installed, set[repository.ArtifactManifests])
	}
	logging.Log.WithField("loaded", result.Loaded).WithField("skipped", len(result.Skipped)).Debug("manifests loaded")
	return result, nil
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	_, err := s.LoadManifests(ctx)
	return err
}

// Manifests lists the loaded payloads, optionally restricted to one kind.
func (s *Service) Manifests(ctx context.Context, kind string) ([]*schema.Payload, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	var out []*schema.Payload
	if kind == "" {
		out = s.Schemas.All()
	} else {
		k, ok := schema.ParseKind(kind)
		if !ok {
			return nil, fmt.Errorf("PFM_KIND: unknown kind %q", kind)
		}
		out = s.Schemas.Payloads(k)
	}
	schema.SortPayloads(out)
	return out, nil
}

// Manifest finds a payload by domain identifier or domain. Apple manifests
// win over managed preferences sharing the domain.
func (s *Service) Manifest(ctx context.Context, domain string) (*schema.Payload, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	found := s.Schemas.Find(domain)
	if len(found) == 0 {
		return nil, fmt.Errorf("PFM_NOT_FOUND: no manifest for %q", domain)
	}
	sort.SliceStable(found, func(i, j int) bool {
		if (found[i].DomainIdentifier == domain) != (found[j].DomainIdentifier == domain) {
			return found[i].DomainIdentifier == domain
		}
		return found[i].Kind.Tag < found[j].Kind.Tag
	})
	return found[0].Effective(), nil
}

func (s *Service) subkey(ctx context.Context, domain, keyPath string) (*schema.Subkey, error) {
	p, err := s.Manifest(ctx, domain)
	if err != nil {
		return nil, err
	}
	sk, ok := p.Subkey(keyPath)
	if !ok {
		return nil, fmt.Errorf("PFM_NOT_FOUND: %s has no key %q", p.DomainIdentifier, keyPath)
	}
	return sk, nil
}

// Defaults renders the default settings document of a manifest.
func (s *Service) Defaults(ctx context.Context, domain string) ([]byte, error) {
	p, err := s.Manifest(ctx, domain)
	if err != nil {
		return nil, err
	}
	return schema.DefaultDocument(p)
}

// LookupValue reads the value of keyPath from a settings document.
func (s *Service) LookupValue(ctx context.Context, domain, keyPath string, doc []byte) (value.Value, error) {
	sk, err := s.subkey(ctx, domain, keyPath)
	if err != nil {
		return value.Undefined(), err
	}
	v, ok := schema.Lookup(doc, sk)
	if !ok {
		return value.Undefined(), fmt.Errorf("PFM_NOT_FOUND: %s is not set", sk.ValueKeyPath)
	}
	return v, nil
}

// Direction selects which way ProcessValue converts.
type Direction string

const (
	ToSaved Direction = "saved"
	ToInput Direction = "input"
)

// ProcessValue parses raw as the source type of the conversion and runs it
// through the node's value processor.
func (s *Service) ProcessValue(ctx context.Context, domain, keyPath, raw string, dir Direction) (value.Value, error) {
	sk, err := s.subkey(ctx, domain, keyPath)
	if err != nil {
		return value.Undefined(), err
	}
	f := sk.Field()
	switch dir {
	case ToSaved, "":
		v, err := ParseValue(raw, f.InputType)
		if err != nil {
			return value.Undefined(), err
		}
		return s.Processors.ToSaved(f, v), nil
	case ToInput:
		v, err := ParseValue(raw, f.Type)
		if err != nil {
			return value.Undefined(), err
		}
		return s.Processors.ToInput(f, v), nil
	}
	return value.Undefined(), fmt.Errorf("PFM_PROCESS: unknown direction %q", dir)
}

// ParseValue reads a command-line argument as a value of type t. Arrays and
// dictionaries are given as JSON; data as base64.
func ParseValue(raw string, t value.Type) (value.Value, error) {
	switch t {
	case value.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return value.Undefined(), fmt.Errorf("PFM_VALUE: %q is not a boolean", raw)
		}
		return value.Bool(b), nil
	case value.TypeInteger:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return value.Undefined(), fmt.Errorf("PFM_VALUE: %q is not an integer", raw)
		}
		return value.Int(i), nil
	case value.TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return value.Undefined(), fmt.Errorf("PFM_VALUE: %q is not a number", raw)
		}
		return value.Float(f), nil
	case value.TypeDate:
		d, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return value.Undefined(), fmt.Errorf("PFM_VALUE: %q is not an RFC 3339 date", raw)
		}
		return value.Date(d), nil
	case value.TypeData:
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return value.Undefined(), fmt.Errorf("PFM_VALUE: %q is not base64", raw)
		}
		return value.Data(b), nil
	case value.TypeArray, value.TypeDictionary:
		v, err := codec.Decode([]byte(raw), codec.FormatJSON)
		if err != nil {
			return value.Undefined(), err
		}
		if v.Type() != t {
			return value.Undefined(), fmt.Errorf("PFM_VALUE: expected %s, got %s", t, v.Type())
		}
		return v, nil
	}
	return value.String(raw), nil
}

// Synthesize builds a local preference manifest from a preference file.
func (s *Service) Synthesize(path, domain string, opts schema.PreferenceOptions) (*schema.Payload, map[string]value.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	format, _ := codec.FormatForPath(path)
	v, err := codec.DecodeDictionary(data, format)
	if err != nil {
		return nil, nil, err
	}
	prefs, _ := v.AsDictionary()
	if domain == "" {
		domain = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if opts.Now == nil {
		opts.Now = s.now
	}
	p, err := schema.SynthesizeLocalPreference(domain, prefs, opts)
	if err != nil {
		return nil, nil, err
	}
	return p, schema.LocalPreferenceManifest(domain, prefs, opts), nil
}

func (s *Service) RepoList() []config.RepositoryConfig {
	out := append([]config.RepositoryConfig{}, s.Config.Repositories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) RepoAdd(name, url, branch string) (config.RepositoryConfig, error) {
	rc, err := s.repoAdd(name, url, branch)
	repo := rc.Name
	if repo == "" {
		repo = name
	}
	s.audit("repo.add", repo, err, map[string]string{"url": url})
	return rc, err
}

func (s *Service) repoAdd(name, url, branch string) (config.RepositoryConfig, error) {
	if url == "" {
		return config.RepositoryConfig{}, fmt.Errorf("REPO_ADD: url is required")
	}
	rc := config.RepositoryConfig{Name: name, URL: url, Branch: branch, Enabled: true}
	r, err := s.newRepository(rc)
	if err != nil {
		return config.RepositoryConfig{}, err
	}
	rc.Name = r.Name
	if err := config.AddRepository(&s.Config, rc); err != nil {
		return config.RepositoryConfig{}, err
	}
	if err := s.SaveConfig(); err != nil {
		return config.RepositoryConfig{}, err
	}
	s.Repositories.Add(r)
	added, _ := config.FindRepository(s.Config, rc.Name)
	return added, nil
}

// RepoRemove drops a repository from the config along with its cached
// indexes, history and state.
func (s *Service) RepoRemove(ctx context.Context, name string) error {
	err := s.repoRemove(ctx, name)
	s.audit("repo.remove", name, err, nil)
	return err
}

func (s *Service) repoRemove(ctx context.Context, name string) error {
	if err := config.RemoveRepository(&s.Config, name); err != nil {
		return err
	}
	if err := s.SaveConfig(); err != nil {
		return err
	}
	s.Repositories.Remove(name)
	if err := s.Cache.DeleteRepository(ctx, name); err != nil {
		return err
	}
	st, err := storepkg.LoadState(s.StateRoot)
	if err != nil {
		return err
	}
	if storepkg.RemoveRepository(&st, name) {
		return storepkg.SaveState(s.StateRoot, st)
	}
	return nil
}

// SyncRun loads the installed manifests, fetches the repository indexes and
// optionally downloads the updates. Manifests are reloaded after a download.
func (s *Service) SyncRun(ctx context.Context, opts syncsvc.Options) (syncsvc.Report, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return syncsvc.Report{}, err
	}
	opts.IgnoreCache = opts.IgnoreCache || s.Config.Fetch.IgnoreCache
	report, err := s.Sync.Run(ctx, opts)
	if !opts.DryRun {
		for _, r := range report.Repositories {
			var rerr error
			if r.Error != "" {
				rerr = errors.New(r.Error)
			}
			s.audit("sync", r.Name, rerr, map[string]string{
				"manifests":  strconv.Itoa(r.Manifests),
				"icons":      strconv.Itoa(r.Icons),
				"downloaded": strconv.Itoa(len(r.Downloaded)),
			})
		}
	}
	if opts.Download && !opts.DryRun && report.Downloaded > 0 {
		if _, lerr := s.LoadManifests(ctx); lerr != nil {
			logging.Log.WithError(lerr).Warn("failed to reload manifests")
		}
	}
	return report, err
}

// PendingUpdates diffs the cached indexes against the installed manifests
// without touching the network.
func (s *Service) PendingUpdates(ctx context.Context, name string) ([]repository.Item, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	repos := s.Repositories.All()
	if name != "" {
		r, ok := s.Repositories.Get(name)
		if !ok {
			return nil, &repository.RepositoryNotConfigured{URL: name}
		}
		repos = []*repository.Repository{r}
	}
	items := []repository.Item{}
	for _, r := range repos {
		set, err := s.cachedUpdates(ctx, r)
		if err != nil {
			return nil, err
		}
		items = append(items, set.Items()...)
	}
	return items, nil
}

func (s *Service) cachedUpdates(ctx context.Context, r *repository.Repository) (repository.UpdateSet, error) {
	set := repository.UpdateSet{}
	for _, artifact := range repository.Artifacts() {
		data, ok, err := s.Cache.LoadIndex(ctx, r.Name, artifact)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		index, err := repository.DecodeIndex(data)
		if err != nil {
			return nil, err
		}
		set[artifact] = repository.Diff(artifact, index, s.installed)
	}
	return set, nil
}

func (s *Service) History(ctx context.Context, name string, limit int) ([]storepkg.HistoryEntry, error) {
	return s.Cache.History(ctx, name, limit)
}

func (s *Service) audit(op, repo string, err error, fields map[string]string) {
	if aerr := s.Audit.Record(op, repo, err, fields); aerr != nil {
		logging.Log.WithError(aerr).Warn("failed to write audit event")
	}
}

// LastLoad summarizes the most recent manifest load.
func (s *Service) LastLoad() schema.LoadResult {
	return s.lastLoad
}

func (s *Service) DoctorRun(ctx context.Context) doctor.Report {
	return s.Doctor.Run(ctx)
}
