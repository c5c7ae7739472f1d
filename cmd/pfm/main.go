package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"profilepayloads/internal/app"
	"profilepayloads/internal/codec"
	"profilepayloads/internal/fsutil"
	"profilepayloads/internal/logging"
	"profilepayloads/internal/repository"
	"profilepayloads/internal/schema"
	syncsvc "profilepayloads/internal/sync"
	"profilepayloads/internal/value"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func usageError(format string, args ...any) error {
	return &exitError{code: 2, msg: fmt.Sprintf(format, args...)}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ex, ok := err.(ExitCoder); ok {
			os.Exit(ex.ExitCode())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string
	var jsonOutput bool

	newSvc := func() (*app.Service, error) {
		svc, err := app.New(app.Options{ConfigPath: configPath})
		if err != nil {
			return nil, err
		}
		if logLevel != "" {
			if err := logging.SetLogLevel(logLevel); err != nil {
				_ = svc.Close()
				return nil, err
			}
		}
		return svc, nil
	}

	cmd := &cobra.Command{
		Use:           "pfm",
		Short:         "Inspect configuration payload manifests and keep them up to date",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(newManifestsCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newProcessCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newSynthesizeCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newRepoCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newIndexCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newSyncCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(&jsonOutput))

	return cmd
}

type manifestSummary struct {
	Domain           string    `json:"domain"`
	DomainIdentifier string    `json:"domain_identifier"`
	Kind             string    `json:"kind"`
	Title            string    `json:"title"`
	Version          int       `json:"version"`
	FormatVersion    int       `json:"format_version"`
	LastModified     time.Time `json:"last_modified"`
	Subkeys          int       `json:"subkeys"`
	UpdateAvailable  bool      `json:"update_available,omitempty"`
	Overridden       bool      `json:"overridden,omitempty"`
	Path             string    `json:"path,omitempty"`
}

func summarizeManifest(p *schema.Payload) manifestSummary {
	return manifestSummary{
		Domain:           p.Domain,
		DomainIdentifier: p.DomainIdentifier,
		Kind:             p.Kind.Key(),
		Title:            p.Title,
		Version:          p.Version,
		FormatVersion:    p.FormatVersion,
		LastModified:     p.LastModified,
		Subkeys:          len(p.AllSubkeys()),
		UpdateAvailable:  p.UpdateAvailable,
		Overridden:       p.Override != nil,
		Path:             p.Path,
	}
}

func newManifestsCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	manifestsCmd := &cobra.Command{Use: "manifests", Aliases: []string{"manifest", "m"}, Short: "Query installed manifests"}

	var kind string
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "" {
				if _, ok := schema.ParseKind(kind); !ok {
					return usageError("unknown --kind %q", kind)
				}
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			payloads, err := svc.Manifests(context.Background(), kind)
			if err != nil {
				return err
			}
			summaries := make([]manifestSummary, 0, len(payloads))
			for _, p := range payloads {
				summaries = append(summaries, summarizeManifest(p))
			}
			if *jsonOutput {
				return print(true, summaries, "")
			}
			if len(summaries) == 0 {
				fmt.Println("no manifests installed")
				return nil
			}
			for _, s := range summaries {
				marker := ""
				if s.UpdateAvailable {
					marker = " (update available)"
				}
				fmt.Printf("- %s [%s] v%d %s%s\n", s.DomainIdentifier, s.Kind, s.Version, s.Title, marker)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&kind, "kind", "", "manifest kind: "+strings.Join(kindKeys(), "|"))

	showCmd := &cobra.Command{
		Use:   "show <domain>",
		Short: "Show a manifest and its keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			p, err := svc.Manifest(context.Background(), args[0])
			if err != nil {
				return err
			}
			if *jsonOutput {
				blob, err := codec.Encode(value.Dictionary(p.Manifest), codec.FormatJSON)
				if err != nil {
					return err
				}
				fmt.Println(string(blob))
				return nil
			}
			s := summarizeManifest(p)
			fmt.Printf("%s (%s)\n", s.Title, s.DomainIdentifier)
			fmt.Printf("kind: %s\nversion: %d\nformat version: %d\n", s.Kind, s.Version, s.FormatVersion)
			if !s.LastModified.IsZero() {
				fmt.Printf("last modified: %s\n", s.LastModified.UTC().Format(time.RFC3339))
			}
			if p.Description != "" {
				fmt.Println(p.Description)
			}
			for _, sk := range p.Subkeys() {
				printSubkey(sk, 0)
			}
			return nil
		},
	}

	defaultsCmd := &cobra.Command{
		Use:   "defaults <domain>",
		Short: "Print the default settings document of a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			doc, err := svc.Defaults(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(string(doc))
			return nil
		},
	}

	lookupCmd := &cobra.Command{
		Use:   "lookup <domain> <key-path> <document>",
		Short: "Read a key from a settings document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := documentJSON(args[2])
			if err != nil {
				return err
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			v, err := svc.LookupValue(context.Background(), args[0], args[1], doc)
			if err != nil {
				return err
			}
			return printValue(*jsonOutput, args[0], args[1], v)
		},
	}

	manifestsCmd.AddCommand(listCmd, showCmd, defaultsCmd, lookupCmd)
	return manifestsCmd
}

func printSubkey(sk *schema.Subkey, depth int) {
	if sk.Hidden == schema.HiddenAll {
		return
	}
	line := fmt.Sprintf("%s- %s (%s)", strings.Repeat("  ", depth), sk.KeyPath, sk.Type)
	if sk.Title != "" {
		line += " " + sk.Title
	}
	fmt.Println(line)
	for _, child := range sk.Children() {
		printSubkey(child, depth+1)
	}
}

func kindKeys() []string {
	kinds := schema.Kinds()
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, k.Key())
	}
	return keys
}

// documentJSON reads a settings document in any supported format and returns
// it as JSON.
func documentJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format, ok := codec.FormatForPath(path)
	if ok && format == codec.FormatJSON {
		return data, nil
	}
	v, err := codec.DecodeDictionary(data, format)
	if err != nil {
		return nil, err
	}
	return codec.Encode(v, codec.FormatJSON)
}

func printValue(jsonOutput bool, domain, keyPath string, v value.Value) error {
	if jsonOutput {
		return print(true, map[string]any{
			"domain": domain,
			"key":    keyPath,
			"type":   v.Type().String(),
			"value":  v.ToNative(),
		}, "")
	}
	fmt.Println(v.String())
	return nil
}

func newProcessCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var direction string
	cmd := &cobra.Command{
		Use:   "process <domain> <key-path> <value>",
		Short: "Convert a value with the key's value processor",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.Direction(strings.ToLower(strings.TrimSpace(direction)))
			if dir != app.ToSaved && dir != app.ToInput {
				return usageError("--to must be %s or %s", app.ToSaved, app.ToInput)
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			v, err := svc.ProcessValue(context.Background(), args[0], args[1], args[2], dir)
			if err != nil {
				return err
			}
			return printValue(*jsonOutput, args[0], args[1], v)
		},
	}
	cmd.Flags().StringVar(&direction, "to", string(app.ToSaved), "conversion direction: saved|input")
	return cmd
}

func newSynthesizeCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var domain string
	var format string
	var output string
	var title string
	var appVersion string
	cmd := &cobra.Command{
		Use:     "synthesize <preference-file>",
		Aliases: []string{"synth"},
		Short:   "Build a manifest from a local preference file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := codec.Format(strings.ToLower(format))
			switch f {
			case codec.FormatPlist, codec.FormatJSON, codec.FormatYAML:
			default:
				return usageError("--format must be plist, json or yaml")
			}
			if *jsonOutput && output == "" && f != codec.FormatJSON {
				return usageError("--json requires --format json or --output")
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			p, manifest, err := svc.Synthesize(args[0], domain, schema.PreferenceOptions{Title: title, AppVersion: appVersion})
			if err != nil {
				return err
			}
			blob, err := codec.Encode(value.Dictionary(manifest), f)
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Println(string(blob))
				return nil
			}
			if err := fsutil.AtomicWrite(output, blob, 0o644); err != nil {
				return err
			}
			return print(*jsonOutput, summarizeManifest(p), fmt.Sprintf("wrote %s with %d keys", output, len(p.AllSubkeys())))
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "preference domain (defaults to the file name)")
	cmd.Flags().StringVar(&format, "format", string(codec.FormatPlist), "output format: plist|json|yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the manifest to a file")
	cmd.Flags().StringVar(&title, "title", "", "manifest title")
	cmd.Flags().StringVar(&appVersion, "app-version", "", "installed application version")
	return cmd
}

func newRepoCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	repoCmd := &cobra.Command{Use: "repo", Aliases: []string{"repos", "repository"}, Short: "Manage manifest repositories"}

	var name string
	var branch string
	addCmd := &cobra.Command{
		Use:     "add <github-url>",
		Aliases: []string{"new"},
		Short:   "Add repository",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			rc, err := svc.RepoAdd(name, args[0], branch)
			if err != nil {
				return err
			}
			return print(*jsonOutput, rc, fmt.Sprintf("added repository %s (%s@%s)", rc.Name, rc.URL, rc.Branch))
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "repository name (defaults to the GitHub repository name)")
	addCmd.Flags().StringVar(&branch, "branch", "", "branch to read indexes from")

	removeCmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove repository",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := svc.RepoRemove(context.Background(), args[0]); err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"removed": args[0]}, "removed repository "+args[0])
		},
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			repos := svc.RepoList()
			if *jsonOutput {
				return print(true, repos, "")
			}
			if len(repos) == 0 {
				fmt.Println("no repositories configured")
				return nil
			}
			for _, r := range repos {
				state := "enabled"
				if !r.Enabled {
					state = "disabled"
				}
				fmt.Printf("- %s %s@%s %s\n", r.Name, r.URL, r.Branch, state)
			}
			return nil
		},
	}

	repoCmd.AddCommand(addCmd, removeCmd, listCmd)
	return repoCmd
}

func newIndexCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	indexCmd := &cobra.Command{Use: "index", Short: "Fetch and inspect repository indexes"}

	var ignoreCache bool
	fetchCmd := &cobra.Command{
		Use:   "fetch [name]",
		Short: "Fetch repository indexes and mark updates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			report, err := svc.SyncRun(context.Background(), syncsvc.Options{Repository: firstArg(args), IgnoreCache: ignoreCache})
			if perr := printSyncReport(*jsonOutput, report); perr != nil {
				return perr
			}
			return err
		},
	}
	fetchCmd.Flags().BoolVar(&ignoreCache, "ignore-cache", false, "fail instead of falling back to cached indexes")

	updatesCmd := &cobra.Command{
		Use:   "updates [name]",
		Short: "List updates announced by the cached indexes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			items, err := svc.PendingUpdates(context.Background(), firstArg(args))
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, items, "")
			}
			if len(items) == 0 {
				fmt.Println("everything up to date")
				return nil
			}
			for _, item := range items {
				fmt.Println("- " + describeItem(item))
			}
			return nil
		},
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history [name]",
		Short: "Show previously announced updates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return usageError("--limit must not be negative")
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			entries, err := svc.History(context.Background(), firstArg(args), limit)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, entries, "")
			}
			if len(entries) == 0 {
				fmt.Println("no history recorded")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s %s %s\n", e.OccurredAt.UTC().Format(time.RFC3339), e.Repository, describeItem(e.Item))
			}
			return nil
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries (default 50)")

	indexCmd.AddCommand(fetchCmd, updatesCmd, historyCmd)
	return indexCmd
}

func describeItem(item repository.Item) string {
	s := fmt.Sprintf("%s %s/%s", item.Artifact, item.Folder, item.DomainIdentifier)
	if item.Version > 0 {
		s += fmt.Sprintf(" v%d", item.Version)
	}
	return s
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func newSyncCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var opts syncsvc.Options
	cmd := &cobra.Command{
		Use:     "sync [name]",
		Aliases: []string{"update"},
		Short:   "Fetch indexes and optionally download updated manifests and icons",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			opts.Repository = firstArg(args)
			report, err := svc.SyncRun(context.Background(), opts)
			if perr := printSyncReport(*jsonOutput, report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.Download, "download", false, "download updated manifests and icons")
	cmd.Flags().BoolVar(&opts.IgnoreCache, "ignore-cache", false, "fail instead of falling back to cached indexes")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report updates without recording or downloading them")
	return cmd
}

func printSyncReport(jsonOutput bool, report syncsvc.Report) error {
	if jsonOutput {
		return print(true, report, "")
	}
	if report.DryRun {
		fmt.Println("dry run: nothing recorded or downloaded")
	}
	for _, r := range report.Repositories {
		if r.Error != "" {
			fmt.Printf("- %s: failed: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Printf("- %s: %d manifest and %d icon updates\n", r.Name, r.Manifests, r.Icons)
	}
	fmt.Printf("fetched %d, failed %d, pending %d, downloaded %d\n", len(report.Fetched), len(report.Failed), report.Pending, report.Downloaded)
	return nil
}

func newDoctorCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag", "checkup"},
		Short:   "Run diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			defer svc.Close()
			report := svc.DoctorRun(context.Background())
			if *jsonOutput {
				return print(true, report, "")
			}
			if len(report.Findings) == 0 {
				fmt.Printf("healthy (%d manifests)\n", report.Manifests)
				return nil
			}
			if report.Healthy {
				fmt.Printf("healthy with notes (%d manifests):\n", report.Manifests)
			} else {
				fmt.Println("issues found:")
			}
			for _, f := range report.Findings {
				fmt.Printf("- [%s] %s: %s\n", f.Level, f.Code, f.Message)
			}
			return nil
		},
	}
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}
