package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"profilepayloads/internal/schema"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
	"fatal": {},
}

var allowedLogFormats = map[string]struct{}{
	"text": {},
	"json": {},
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("DOC_CONFIG_VERSION: unsupported version %d", cfg.Version)
	}
	if cfg.Storage.Root == "" {
		return fmt.Errorf("DOC_CONFIG_STORAGE: missing storage root")
	}
	if cfg.Logging.Level == "" || cfg.Logging.Format == "" {
		return fmt.Errorf("DOC_CONFIG_LOGGING: missing logging level/format")
	}
	if _, ok := allowedLogLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("DOC_CONFIG_LOGGING: invalid level %q", cfg.Logging.Level)
	}
	if _, ok := allowedLogFormats[cfg.Logging.Format]; !ok {
		return fmt.Errorf("DOC_CONFIG_LOGGING: invalid format %q", cfg.Logging.Format)
	}
	if v := cfg.Manifests.FormatVersion; v < 1 || v > schema.FormatVersionSupported {
		return fmt.Errorf("DOC_CONFIG_MANIFESTS: format_version must be between 1 and %d, got %d", schema.FormatVersionSupported, v)
	}
	for _, p := range cfg.Manifests.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("DOC_CONFIG_MANIFESTS: empty manifest path")
		}
	}
	if cfg.Fetch.Retries < 0 {
		return fmt.Errorf("DOC_CONFIG_FETCH: retries must not be negative")
	}
	if d, err := time.ParseDuration(cfg.Fetch.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("DOC_CONFIG_FETCH: invalid timeout %q", cfg.Fetch.Timeout)
	}

	names := map[string]struct{}{}
	for _, r := range cfg.Repositories {
		if r.Name == "" {
			return fmt.Errorf("REPO_CONFIG: repository name is required")
		}
		if _, ok := names[r.Name]; ok {
			return fmt.Errorf("REPO_CONFIG: duplicate repository name %q", r.Name)
		}
		names[r.Name] = struct{}{}
		u, err := url.Parse(r.URL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("REPO_CONFIG: repository %q has invalid url %q", r.Name, r.URL)
		}
		if r.ContentBase != "" {
			if u, err := url.Parse(r.ContentBase); err != nil || u.Host == "" {
				return fmt.Errorf("REPO_CONFIG: repository %q has invalid content_base %q", r.Name, r.ContentBase)
			}
		}
	}
	return nil
}
