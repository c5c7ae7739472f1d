package config

import "time"

// Config is the frozen v1 global schema.
type Config struct {
	Version      int                `toml:"version"`
	Storage      StorageConfig      `toml:"storage"`
	Logging      LoggingConfig      `toml:"logging"`
	Manifests    ManifestsConfig    `toml:"manifests"`
	Fetch        FetchConfig        `toml:"fetch"`
	Repositories []RepositoryConfig `toml:"repositories"`
}

type StorageConfig struct {
	Root string `toml:"root"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ManifestsConfig lists extra manifest roots searched after the downloaded
// manifests, and the directory local overrides are read from.
type ManifestsConfig struct {
	Paths         []string `toml:"paths" json:"paths"`
	Overrides     string   `toml:"overrides" json:"overrides"`
	FormatVersion int      `toml:"format_version" json:"formatVersion"`
}

type FetchConfig struct {
	Retries     int    `toml:"retries" json:"retries"`
	Timeout     string `toml:"timeout" json:"timeout"`
	IgnoreCache bool   `toml:"ignore_cache" json:"ignoreCache"`
}

// TimeoutDuration parses Timeout; Validate guarantees it parses.
func (f FetchConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0
	}
	return d
}

type RepositoryConfig struct {
	Name    string `toml:"name" json:"name"`
	URL     string `toml:"url" json:"url"`
	Branch  string `toml:"branch,omitempty" json:"branch,omitempty"`
	Enabled bool   `toml:"enabled" json:"enabled"`
	// ContentBase overrides the raw content URL derived from URL and Branch,
	// for mirrors.
	ContentBase string `toml:"content_base,omitempty" json:"contentBase,omitempty"`
}
