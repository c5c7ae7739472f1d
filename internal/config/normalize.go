package config

import "strings"

func Normalize(cfg Config) Config {
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "~/.profilepayloads"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Manifests.Paths == nil {
		cfg.Manifests.Paths = []string{}
	}
	if cfg.Manifests.FormatVersion == 0 {
		cfg.Manifests.FormatVersion = 5
	}
	if cfg.Fetch.Timeout == "" {
		cfg.Fetch.Timeout = "30s"
	}
	for i := range cfg.Repositories {
		cfg.Repositories[i].Name = strings.TrimSpace(cfg.Repositories[i].Name)
		cfg.Repositories[i].URL = strings.TrimSuffix(strings.TrimSpace(cfg.Repositories[i].URL), "/")
		if cfg.Repositories[i].Branch == "" {
			cfg.Repositories[i].Branch = DefaultRepositoryBranch
		}
	}
	return cfg
}
