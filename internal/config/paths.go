package config

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

func DefaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".profilepayloads/config.toml"
	}
	return filepath.Join(home, ".profilepayloads", "config.toml")
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("DOC_CONFIG_PATH: empty path")
	}
	return homedir.Expand(path)
}

func ResolveStorageRoot(cfg Config) (string, error) {
	expanded, err := ExpandPath(cfg.Storage.Root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

// ResolveManifestPaths expands the configured manifest roots in order.
func ResolveManifestPaths(cfg Config) ([]string, error) {
	out := make([]string, 0, len(cfg.Manifests.Paths))
	for _, p := range cfg.Manifests.Paths {
		expanded, err := ExpandPath(p)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.Clean(expanded))
	}
	return out, nil
}

// ResolveOverridesRoot returns the configured overrides directory, or
// fallback when none is set.
func ResolveOverridesRoot(cfg Config, fallback string) (string, error) {
	if cfg.Manifests.Overrides == "" {
		return fallback, nil
	}
	expanded, err := ExpandPath(cfg.Manifests.Overrides)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}
