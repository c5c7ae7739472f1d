package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"profilepayloads/internal/logging"
	"profilepayloads/internal/repository"
	"profilepayloads/internal/store"
)

// History receives every update a fetched index announced.
type History interface {
	RecordUpdates(ctx context.Context, repo string, items []repository.Item) error
}

type Service struct {
	Repositories  *repository.Set
	History       History
	StateRoot     string
	ManifestsRoot string
	IconsRoot     string
	Now           func() time.Time
}

type Options struct {
	// Repository limits the run to one repository name or URL.
	Repository  string
	IgnoreCache bool
	Download    bool
	DryRun      bool
}

type RepositoryReport struct {
	Name       string   `json:"name"`
	Manifests  int      `json:"manifests"`
	Icons      int      `json:"icons"`
	Downloaded []string `json:"downloaded,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type Report struct {
	Repositories []RepositoryReport `json:"repositories"`
	Fetched      []string           `json:"fetched"`
	Failed       []string           `json:"failed,omitempty"`
	Pending      int                `json:"pending"`
	Downloaded   int                `json:"downloaded"`
	DryRun       bool               `json:"dryRun,omitempty"`
}

// Run fetches the indexes of the selected repositories, records the
// announced updates and optionally downloads them. A failing repository does
// not stop the others; the failures are returned joined with the report.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	if s.Repositories == nil {
		return Report{}, fmt.Errorf("SYNC_SETUP: sync dependencies not configured")
	}
	if opts.Download && (s.ManifestsRoot == "" || s.IconsRoot == "") {
		return Report{}, fmt.Errorf("SYNC_SETUP: download requires manifests and icons roots")
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	var repos []*repository.Repository
	if opts.Repository != "" {
		r, ok := s.Repositories.Get(opts.Repository)
		if !ok {
			return Report{}, &repository.RepositoryNotConfigured{URL: opts.Repository}
		}
		repos = []*repository.Repository{r}
	} else {
		repos = s.Repositories.All()
	}

	st, err := store.LoadState(s.StateRoot)
	if err != nil {
		return Report{}, err
	}
	report := Report{DryRun: opts.DryRun}
	var errs []error
	for _, r := range repos {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := logging.Log.WithField("repository", r.Name)
		rec, _ := store.FindRepository(st, r.Name)
		rec.Name = r.Name
		rec.URL = r.URL
		rr := RepositoryReport{Name: r.Name}

		updates, err := s.Repositories.FetchIndexes(ctx, r.Name, opts.IgnoreCache)
		if err != nil {
			log.WithError(err).Warn("index fetch failed")
			rr.Error = err.Error()
			rec.LastError = err.Error()
			report.Failed = append(report.Failed, r.Name)
			report.Repositories = append(report.Repositories, rr)
			store.UpsertRepository(&st, rec)
			errs = append(errs, fmt.Errorf("SYNC_REPOSITORY: %s: %w", r.Name, err))
			continue
		}
		rr.Manifests = updates[repository.ArtifactManifests].Len()
		rr.Icons = updates[repository.ArtifactIcons].Len()
		report.Fetched = append(report.Fetched, r.Name)
		rec.LastFetchedAt = r.LastUpdated()
		rec.PendingManifests = rr.Manifests
		rec.PendingIcons = rr.Icons
		rec.LastError = ""
		log.WithField("manifests", rr.Manifests).WithField("icons", rr.Icons).Info("index fetched")

		if s.History != nil && !opts.DryRun {
			if err := s.History.RecordUpdates(ctx, r.Name, updates.Items()); err != nil {
				log.WithError(err).Warn("failed to record update history")
			}
		}

		if opts.Download && !opts.DryRun && updates.Len() > 0 {
			written, err := s.Repositories.DownloadUpdates(ctx, r.Name, s.ManifestsRoot, s.IconsRoot)
			rr.Downloaded = written
			report.Downloaded += len(written)
			if err != nil {
				log.WithError(err).Warn("download failed")
				rr.Error = err.Error()
				rec.LastError = err.Error()
				report.Failed = append(report.Failed, r.Name)
				errs = append(errs, fmt.Errorf("SYNC_DOWNLOAD: %s: %w", r.Name, err))
			} else {
				rec.PendingManifests = 0
				rec.PendingIcons = 0
				rec.LastDownloadAt = now()
			}
		}
		report.Pending += rec.Pending()
		report.Repositories = append(report.Repositories, rr)
		store.UpsertRepository(&st, rec)
	}

	if !opts.DryRun {
		if err := store.SaveState(s.StateRoot, st); err != nil {
			return report, err
		}
	}
	sort.Strings(report.Fetched)
	sort.Strings(report.Failed)
	sort.Slice(report.Repositories, func(i, j int) bool {
		return report.Repositories[i].Name < report.Repositories[j].Name
	})
	return report, errors.Join(errs...)
}
