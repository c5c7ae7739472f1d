package store

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"profilepayloads/internal/fsutil"
)

func EnsureLayout(root string) error {
	dirs := []string{root, ManifestsRoot(root), IconsRoot(root), OverridesRoot(root)}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func LoadState(root string) (State, error) {
	if err := EnsureLayout(root); err != nil {
		return State{}, err
	}
	path := StatePath(root)
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{Version: StateVersion}, nil
		}
		return State{}, err
	}
	var st State
	if err := toml.Unmarshal(blob, &st); err != nil {
		return State{}, fmt.Errorf("DOC_STATE_PARSE: %w", err)
	}
	if st.Version == 0 {
		st.Version = StateVersion
	}
	if st.Version != StateVersion {
		return State{}, fmt.Errorf("DOC_STATE_VERSION: unsupported state version %d", st.Version)
	}
	seen := map[string]struct{}{}
	for _, r := range st.Repositories {
		if r.Name == "" {
			return State{}, fmt.Errorf("DOC_STATE_SCHEMA: repository entry missing name")
		}
		if _, ok := seen[r.Name]; ok {
			return State{}, fmt.Errorf("DOC_STATE_SCHEMA: duplicate repository %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return st, nil
}

func SaveState(root string, st State) error {
	if err := EnsureLayout(root); err != nil {
		return err
	}
	st.Version = StateVersion
	sort.Slice(st.Repositories, func(i, j int) bool {
		return st.Repositories[i].Name < st.Repositories[j].Name
	})
	blob, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("DOC_STATE_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(StatePath(root), blob, 0o644)
}

func FindRepository(st State, name string) (RepositoryState, bool) {
	for _, r := range st.Repositories {
		if r.Name == name {
			return r, true
		}
	}
	return RepositoryState{}, false
}

func UpsertRepository(st *State, rec RepositoryState) {
	for i := range st.Repositories {
		if st.Repositories[i].Name == rec.Name {
			st.Repositories[i] = rec
			return
		}
	}
	st.Repositories = append(st.Repositories, rec)
}

func RemoveRepository(st *State, name string) bool {
	for i := range st.Repositories {
		if st.Repositories[i].Name == name {
			st.Repositories = append(st.Repositories[:i], st.Repositories[i+1:]...)
			return true
		}
	}
	return false
}
