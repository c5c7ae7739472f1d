package config

import (
	"fmt"
	"strings"
)

func AddRepository(cfg *Config, repo RepositoryConfig) error {
	if cfg == nil {
		return fmt.Errorf("REPO_CONFIG: nil config")
	}
	repo.Name = strings.TrimSpace(repo.Name)
	for _, existing := range cfg.Repositories {
		if existing.Name == repo.Name {
			return fmt.Errorf("REPO_CONFIG: repository %q already exists", repo.Name)
		}
	}
	next := *cfg
	next.Repositories = append(append([]RepositoryConfig(nil), cfg.Repositories...), repo)
	next = Normalize(next)
	if err := Validate(next); err != nil {
		return err
	}
	*cfg = next
	return nil
}

func RemoveRepository(cfg *Config, name string) error {
	if cfg == nil {
		return fmt.Errorf("REPO_CONFIG: nil config")
	}
	for i, r := range cfg.Repositories {
		if r.Name == name {
			cfg.Repositories = append(cfg.Repositories[:i], cfg.Repositories[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("REPO_CONFIG: repository %q not found", name)
}

func FindRepository(cfg Config, name string) (RepositoryConfig, bool) {
	for _, r := range cfg.Repositories {
		if r.Name == name {
			return r, true
		}
	}
	return RepositoryConfig{}, false
}

// SetRepositoryEnabled toggles an existing repository. Returns true when the
// config was changed.
func SetRepositoryEnabled(cfg *Config, name string, enabled bool) (bool, error) {
	if cfg == nil {
		return false, fmt.Errorf("REPO_CONFIG: nil config")
	}
	for i := range cfg.Repositories {
		if cfg.Repositories[i].Name != name {
			continue
		}
		if cfg.Repositories[i].Enabled == enabled {
			return false, nil
		}
		cfg.Repositories[i].Enabled = enabled
		return true, nil
	}
	return false, fmt.Errorf("REPO_CONFIG: repository %q not found", name)
}

// EnabledRepositories returns the repositories in declaration order.
func EnabledRepositories(cfg Config) []RepositoryConfig {
	var out []RepositoryConfig
	for _, r := range cfg.Repositories {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}
