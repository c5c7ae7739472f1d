package store

import "path/filepath"

func StatePath(root string) string {
	return filepath.Join(root, "state.toml")
}

func CachePath(root string) string {
	return filepath.Join(root, "cache.db")
}

// ManifestsRoot holds manifests downloaded from repositories, one
// sub-directory per kind folder.
func ManifestsRoot(root string) string {
	return filepath.Join(root, "manifests")
}

func IconsRoot(root string) string {
	return filepath.Join(root, "icons")
}

func OverridesRoot(root string) string {
	return filepath.Join(root, "overrides")
}

func AuditPath(root string) string {
	return filepath.Join(root, "audit", "events.log")
}
