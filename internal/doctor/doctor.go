package doctor

import (
	"context"
	"os"
	"time"

	"profilepayloads/internal/config"
	"profilepayloads/internal/schema"
	"profilepayloads/internal/store"
)

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy   bool      `json:"healthy"`
	Findings  []Finding `json:"findings"`
	Manifests int       `json:"manifests"`
}

type Service struct {
	ConfigPath string
	StateRoot  string
	// StaleAfter flags repositories whose last fetch is older; zero disables
	// the check.
	StaleAfter time.Duration
	Now        func() time.Time
}

func (s *Service) Run(ctx context.Context) Report {
	findings := []Finding{}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	var cfg *config.Config
	if _, err := os.Stat(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_MISSING", Level: "error", Message: err.Error()})
	} else if loaded, err := config.Load(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_INVALID", Level: "error", Message: err.Error()})
	} else {
		cfg = &loaded
	}

	st, err := store.LoadState(s.StateRoot)
	if err != nil {
		findings = append(findings, Finding{Code: "DOC_STATE_INVALID", Level: "error", Message: err.Error()})
	}
	if cache, err := store.OpenCache(store.CachePath(s.StateRoot)); err != nil {
		findings = append(findings, Finding{Code: "DOC_CACHE_INVALID", Level: "error", Message: err.Error()})
	} else {
		_ = cache.Close()
	}

	manifests := 0
	if cfg != nil {
		enabled := config.EnabledRepositories(*cfg)
		if len(enabled) == 0 {
			findings = append(findings, Finding{Code: "REPO_NONE_ENABLED", Level: "warn", Message: "no repository is enabled"})
		}
		for _, r := range enabled {
			rec, ok := store.FindRepository(st, r.Name)
			switch {
			case !ok || rec.LastFetchedAt.IsZero():
				findings = append(findings, Finding{Code: "REPO_NEVER_FETCHED", Level: "warn", Message: r.Name + " has never been fetched"})
				continue
			case rec.LastError != "":
				findings = append(findings, Finding{Code: "REPO_FETCH_FAILED", Level: "warn", Message: r.Name + ": " + rec.LastError})
			}
			if s.StaleAfter > 0 && now().Sub(rec.LastFetchedAt) > s.StaleAfter {
				findings = append(findings, Finding{Code: "REPO_STALE", Level: "warn", Message: r.Name + " was last fetched " + rec.LastFetchedAt.Format(time.RFC3339)})
			}
			if n := rec.Pending(); n > 0 {
				findings = append(findings, Finding{Code: "REPO_UPDATES_PENDING", Level: "info", Message: r.Name + " has pending updates"})
			}
		}

		manifests, findings = s.checkManifests(ctx, *cfg, findings)
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	return Report{Healthy: healthy, Findings: findings, Manifests: manifests}
}

func (s *Service) checkManifests(ctx context.Context, cfg config.Config, findings []Finding) (int, []Finding) {
	roots := []string{store.ManifestsRoot(s.StateRoot)}
	extra, err := config.ResolveManifestPaths(cfg)
	if err != nil {
		return 0, append(findings, Finding{Code: "DOC_CONFIG_INVALID", Level: "error", Message: err.Error()})
	}
	roots = append(roots, extra...)
	for _, root := range extra {
		if _, err := os.Stat(root); err != nil {
			findings = append(findings, Finding{Code: "PFM_ROOT_MISSING", Level: "warn", Message: err.Error()})
		}
	}
	overrides, err := config.ResolveOverridesRoot(cfg, store.OverridesRoot(s.StateRoot))
	if err != nil {
		return 0, append(findings, Finding{Code: "DOC_CONFIG_INVALID", Level: "error", Message: err.Error()})
	}
	loader := &schema.Loader{
		Roots:         roots,
		Overrides:     overrides,
		FormatVersion: cfg.Manifests.FormatVersion,
		Store:         schema.NewStore(),
	}
	result, err := loader.Load(ctx)
	if err != nil {
		return 0, append(findings, Finding{Code: "PFM_SCHEMA_LOAD", Level: "error", Message: err.Error()})
	}
	if result.Loaded == 0 {
		findings = append(findings, Finding{Code: "PFM_NO_MANIFESTS", Level: "warn", Message: "no manifests installed; run pfm sync --download"})
	}
	for _, skipped := range result.Skipped {
		findings = append(findings, Finding{Code: "PFM_MANIFEST_SKIPPED", Level: "warn", Message: skipped.Path + ": " + skipped.Reason})
	}
	return result.Loaded, findings
}
