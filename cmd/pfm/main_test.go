package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"profilepayloads/internal/app"
	"profilepayloads/internal/codec"
	"profilepayloads/internal/config"
	"profilepayloads/internal/schema"
	"profilepayloads/internal/store"
	"profilepayloads/internal/value"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()
	return buf.String()
}

func boolPtr(v bool) *bool { return &v }

func failingSvc(called *bool) func() (*app.Service, error) {
	return func() (*app.Service, error) {
		*called = true
		return nil, errors.New("should not be called")
	}
}

// writeWorkspace saves a config rooted in a temp dir with no repositories and
// installs one manifest.
func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cfgPath := filepath.Join(root, "config.toml")
	cfg := config.DefaultConfig()
	cfg.Storage.Root = filepath.Join(root, "state")
	cfg.Repositories = nil
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatalf("save config failed: %v", err)
	}
	manifest := map[string]value.Value{
		schema.KeyDomain:        value.String("com.example.app"),
		schema.KeyTitle:         value.String("Example"),
		schema.KeyDescription:   value.String("Example settings"),
		schema.KeyFormatVersion: value.Int(1),
		schema.KeyVersion:       value.Int(2),
		schema.KeyLastModified:  value.Date(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		schema.KeyUnique:        value.Bool(false),
		schema.KeyPlatforms:     value.Strings("macOS"),
		schema.KeyTargets:       value.Strings("user"),
		schema.KeySubkeys: value.Array(
			value.Dictionary(map[string]value.Value{
				schema.KeyName:    value.String("Count"),
				schema.KeyType:    value.String("integer"),
				schema.KeyDefault: value.Int(3),
			}),
			value.Dictionary(map[string]value.Value{
				schema.KeyName:           value.String("Token"),
				schema.KeyType:           value.String("data"),
				schema.KeyTypeInput:      value.String("string"),
				schema.KeyValueProcessor: value.String("hex2data"),
			}),
		),
	}
	blob, err := codec.Encode(value.Dictionary(manifest), codec.FormatPlist)
	if err != nil {
		t.Fatalf("encode manifest failed: %v", err)
	}
	path := filepath.Join(store.ManifestsRoot(cfg.Storage.Root), schema.FolderNameManifestsApple, "com.example.app.plist")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatalf("write manifest failed: %v", err)
	}
	return cfgPath
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var runErr error
	out := captureStdout(t, func() {
		cmd := newRootCmd()
		cmd.SetArgs(args)
		runErr = cmd.Execute()
	})
	if runErr != nil {
		t.Fatalf("pfm %s failed: %v", strings.Join(args, " "), runErr)
	}
	return out
}

func TestNewRootCmdIncludesCoreCommands(t *testing.T) {
	cmd := newRootCmd()
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}
	for _, want := range []string{"manifests", "process", "synthesize", "repo", "index", "sync", "doctor", "version"} {
		if !got[want] {
			t.Fatalf("expected command %q", want)
		}
	}
	for _, flag := range []string{"config", "json", "log-level"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("expected persistent flag %q", flag)
		}
	}
}

func TestProcessRejectsDirectionBeforeService(t *testing.T) {
	called := false
	cmd := newProcessCmd(failingSvc(&called), boolPtr(false))
	cmd.SetArgs([]string{"--to", "sideways", "com.example.app", "Token", "00"})
	err := cmd.Execute()
	var ex ExitCoder
	if !errors.As(err, &ex) || ex.ExitCode() != 2 {
		t.Fatalf("expected usage error, got %v", err)
	}
	if called {
		t.Fatalf("newSvc should not be called for an invalid direction")
	}
}

func TestSynthesizeRejectsFormatBeforeService(t *testing.T) {
	called := false
	cmd := newSynthesizeCmd(failingSvc(&called), boolPtr(false))
	cmd.SetArgs([]string{"--format", "xml", "prefs.plist"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--format") {
		t.Fatalf("expected format error, got %v", err)
	}
	if called {
		t.Fatalf("newSvc should not be called for an invalid format")
	}
}

func TestManifestsListRejectsUnknownKindBeforeService(t *testing.T) {
	called := false
	cmd := newManifestsCmd(failingSvc(&called), boolPtr(false))
	cmd.SetArgs([]string{"list", "--kind", "nonsense"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--kind") {
		t.Fatalf("expected kind error, got %v", err)
	}
	if called {
		t.Fatalf("newSvc should not be called for an unknown kind")
	}
}

func TestPrintMessageAndJSON(t *testing.T) {
	msgOut := captureStdout(t, func() {
		if err := print(false, nil, "ok-message"); err != nil {
			t.Fatalf("print message failed: %v", err)
		}
	})
	if !strings.Contains(msgOut, "ok-message") {
		t.Fatalf("expected message output, got %q", msgOut)
	}

	jsonOut := captureStdout(t, func() {
		if err := print(true, map[string]string{"k": "v"}, "ignored"); err != nil {
			t.Fatalf("print json failed: %v", err)
		}
	})
	var parsed map[string]string
	if err := json.Unmarshal([]byte(jsonOut), &parsed); err != nil {
		t.Fatalf("expected valid json output, got %q: %v", jsonOut, err)
	}
	if parsed["k"] != "v" {
		t.Fatalf("unexpected json payload: %+v", parsed)
	}
}

func TestSyncCmdHasFlags(t *testing.T) {
	cmd := newSyncCmd(func() (*app.Service, error) {
		t.Fatalf("newSvc should not be called for flag check")
		return nil, nil
	}, boolPtr(false))
	for _, flag := range []string{"download", "ignore-cache", "dry-run"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Fatalf("expected --%s flag to be registered", flag)
		}
	}
}

func TestDocumentJSONConvertsPlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.plist")
	blob, err := codec.Encode(value.Dictionary(map[string]value.Value{"Count": value.Int(7)}), codec.FormatPlist)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	doc, err := documentJSON(path)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	var parsed map[string]int
	if err := json.Unmarshal(doc, &parsed); err != nil || parsed["Count"] != 7 {
		t.Fatalf("unexpected document %s: %v", doc, err)
	}
}

func TestManifestCommandsAgainstWorkspace(t *testing.T) {
	cfgPath := writeWorkspace(t)

	var summaries []manifestSummary
	out := runRoot(t, "--config", cfgPath, "--json", "manifests", "list")
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("expected json list, got %q: %v", out, err)
	}
	if len(summaries) != 1 || summaries[0].Domain != "com.example.app" || summaries[0].Version != 2 || summaries[0].Subkeys < 2 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	out = runRoot(t, "--config", cfgPath, "manifests", "show", "com.example.app")
	if !strings.Contains(out, "- Count (integer)") || !strings.Contains(out, "version: 2") {
		t.Fatalf("unexpected show output %q", out)
	}

	out = runRoot(t, "--config", cfgPath, "manifests", "defaults", "com.example.app")
	var defaults map[string]any
	if err := json.Unmarshal([]byte(out), &defaults); err != nil || defaults["Count"] != float64(3) {
		t.Fatalf("unexpected defaults %q: %v", out, err)
	}

	out = runRoot(t, "--config", cfgPath, "process", "--to", "input", "com.example.app", "Token", "SGVsbG8=")
	if strings.TrimSpace(out) != `"48656c6c6f"` {
		t.Fatalf("unexpected process output %q", out)
	}

	out = runRoot(t, "--config", cfgPath, "--json", "process", "com.example.app", "Token", "48656c6c6f")
	var processed map[string]any
	if err := json.Unmarshal([]byte(out), &processed); err != nil || processed["type"] != "data" {
		t.Fatalf("unexpected process json %q: %v", out, err)
	}
}

func TestSynthesizeWritesManifest(t *testing.T) {
	cfgPath := writeWorkspace(t)
	dir := t.TempDir()
	prefs := filepath.Join(dir, "com.example.prefs.json")
	if err := os.WriteFile(prefs, []byte(`{"ShowBanner": true}`), 0o644); err != nil {
		t.Fatalf("write prefs failed: %v", err)
	}
	output := filepath.Join(dir, "out", "com.example.prefs.plist")
	out := runRoot(t, "--config", cfgPath, "synthesize", prefs, "--output", output)
	if !strings.Contains(out, "wrote "+output) {
		t.Fatalf("unexpected output %q", out)
	}
	p, err := schema.LoadFile(output, schema.LocalPreference())
	if err != nil {
		t.Fatalf("load synthesized manifest failed: %v", err)
	}
	if p.Domain != "com.example.prefs" {
		t.Fatalf("unexpected domain %q", p.Domain)
	}
	if _, ok := p.Subkey("ShowBanner"); !ok {
		t.Fatalf("expected ShowBanner subkey")
	}
}

func TestRepoCommandsRoundTrip(t *testing.T) {
	cfgPath := writeWorkspace(t)
	runRoot(t, "--config", cfgPath, "repo", "add", "https://github.com/acme/profiles", "--name", "acme")

	var repos []config.RepositoryConfig
	out := runRoot(t, "--config", cfgPath, "--json", "repo", "list")
	if err := json.Unmarshal([]byte(out), &repos); err != nil {
		t.Fatalf("expected json list, got %q: %v", out, err)
	}
	if len(repos) != 1 || repos[0].Name != "acme" || repos[0].Branch != config.DefaultRepositoryBranch {
		t.Fatalf("unexpected repositories %+v", repos)
	}

	out = runRoot(t, "--config", cfgPath, "repo", "remove", "acme")
	if !strings.Contains(out, "removed repository acme") {
		t.Fatalf("unexpected remove output %q", out)
	}
	out = runRoot(t, "--config", cfgPath, "repo", "list")
	if !strings.Contains(out, "no repositories configured") {
		t.Fatalf("expected empty list, got %q", out)
	}
}

func TestVersionJSON(t *testing.T) {
	out := runRoot(t, "--json", "version")
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil || info["version"] != version {
		t.Fatalf("unexpected version output %q: %v", out, err)
	}
}
