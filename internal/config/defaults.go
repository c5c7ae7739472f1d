package config

const (
	SchemaVersion = 1

	DefaultRepositoryName   = "profilemanifests"
	DefaultRepositoryURL    = "https://github.com/erikberglund/ProfileManifests"
	DefaultRepositoryBranch = "master"
)

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Storage: StorageConfig{
			Root: "~/.profilepayloads",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Manifests: ManifestsConfig{
			Paths:         []string{},
			FormatVersion: 5,
		},
		Fetch: FetchConfig{
			Retries: 4,
			Timeout: "30s",
		},
		Repositories: []RepositoryConfig{
			{
				Name:    DefaultRepositoryName,
				URL:     DefaultRepositoryURL,
				Branch:  DefaultRepositoryBranch,
				Enabled: true,
			},
		},
	}
}
