package store

import "time"

const StateVersion = 1

type State struct {
	Version      int               `toml:"version"`
	Repositories []RepositoryState `toml:"repositories"`
}

// RepositoryState records the outcome of the last index fetch of one
// repository.
type RepositoryState struct {
	Name             string    `toml:"name"`
	URL              string    `toml:"url"`
	LastFetchedAt    time.Time `toml:"last_fetched_at"`
	PendingManifests int       `toml:"pending_manifests"`
	PendingIcons     int       `toml:"pending_icons"`
	LastDownloadAt   time.Time `toml:"last_download_at"`
	LastError        string    `toml:"last_error,omitempty"`
}

// Pending is the number of files the last fetch announced.
func (r RepositoryState) Pending() int {
	return r.PendingManifests + r.PendingIcons
}
