package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"profilepayloads/internal/fsutil"
)

// Ensure loads the config at path, writing the defaults first when the file
// does not exist yet.
func Ensure(path string) (Config, error) {
	path, err := configPath(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	cfg = DefaultConfig()
	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads, normalizes and validates the config at path. Storage and
// manifest paths stay as written; Load only checks that they expand.
func Load(path string) (Config, error) {
	path, err := configPath(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("DOC_CONFIG_READ: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("DOC_CONFIG_PARSE: %s: %w", path, err)
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	if err := checkPaths(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	path, err := configPath(path)
	if err != nil {
		return err
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := checkPaths(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("DOC_CONFIG_WRITE: %w", err)
	}
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("DOC_CONFIG_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(path, blob, 0o644)
}

func configPath(path string) (string, error) {
	if path == "" {
		return DefaultConfigPath(), nil
	}
	return ExpandPath(path)
}

func checkPaths(cfg Config) error {
	if _, err := ResolveStorageRoot(cfg); err != nil {
		return fmt.Errorf("DOC_CONFIG_STORAGE: %w", err)
	}
	if _, err := ResolveManifestPaths(cfg); err != nil {
		return fmt.Errorf("DOC_CONFIG_MANIFESTS: %w", err)
	}
	if _, err := ResolveOverridesRoot(cfg, ""); err != nil {
		return fmt.Errorf("DOC_CONFIG_MANIFESTS: %w", err)
	}
	return nil
}
