package piiscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/audit"
	"github.com/redactyl/piiscan/internal/engine"
	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/git"
	"github.com/redactyl/piiscan/internal/patterns"
	"github.com/redactyl/piiscan/internal/report"
	"github.com/redactyl/piiscan/internal/tui"
	"github.com/redactyl/piiscan/internal/types"
)

const defaultBaseline = "piiscan.baseline.json"

var (
	flagPath            string
	flagRepo            string
	flagExt             string
	flagPatterns        []string
	flagPatternsFile    string
	flagInclude         string
	flagExclude         string
	flagMaxBytes        int64
	flagDefaultExcludes bool
	flagBudget          int
	flagBaseline        string
	flagRecord          bool
	flagCopy            bool
	flagFail            bool
	flagFailOn          string
	flagTUI             bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a directory or GitHub repository for personal data",
		Example: `  piiscan scan -p ./service --ext .py,.js
  piiscan scan --repo acme/widgets --pattern 'email=[\w.]+@[\w.]+' --json
  piiscan scan --fail --fail-on ssn,credit_card`,
		RunE: runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&flagPath, "path", "p", ".", "directory to scan")
	cmd.Flags().StringVar(&flagRepo, "repo", "", "scan a GitHub repository (owner/name) instead of a directory")
	cmd.Flags().StringVar(&flagExt, "ext", "", "comma-separated extensions to scan (default: all files)")
	cmd.Flags().StringArrayVar(&flagPatterns, "pattern", nil, "category=regex; repeatable, replaces configured patterns")
	cmd.Flags().StringVar(&flagPatternsFile, "patterns-file", "", "YAML or JSON mapping of category to regex")
	cmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated include globs")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated exclude globs")
	cmd.Flags().Int64Var(&flagMaxBytes, "max-bytes", 1<<20, "skip files larger than this (0 = no limit)")
	cmd.Flags().BoolVar(&flagDefaultExcludes, "default-excludes", true, "apply built-in exclude list (node_modules, dist, images, etc.)")
	cmd.Flags().IntVar(&flagBudget, "budget", 0, "GitHub API calls per scan (default 1000)")
	cmd.Flags().StringVar(&flagBaseline, "baseline", defaultBaseline, "baseline file; listed matches are not reported")
	cmd.Flags().BoolVar(&flagRecord, "record", false, "append a summary to the scan history")
	cmd.Flags().BoolVar(&flagCopy, "copy", false, "copy the JSON result to the clipboard")
	cmd.Flags().BoolVar(&flagFail, "fail", false, "exit 1 when new matches are found")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "comma-separated categories that trigger --fail (default: any)")
	cmd.Flags().BoolVar(&flagTUI, "tui", false, "browse results interactively")
}

// scanTarget is what a scan ran against, for history and logs.
type scanTarget struct {
	source string // "local" or "github"
	name   string
	root   string // local directory that owns baseline and history
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	abs, err := filepath.Abs(flagPath)
	if err != nil {
		return err
	}
	cfgs := loadConfigs(abs)
	set, err := cfgs.patternSet(flagPatterns, flagPatternsFile)
	if err != nil {
		return err
	}
	exts := engine.NewExtensionSet(cfgs.extensions(flagExt)...)
	cfgs.checkForUpdate(ctx)

	var (
		out    types.ScanOutcome
		target scanTarget
	)
	if flagRepo != "" {
		out, target, err = scanRepo(ctx, cfgs, exts, set)
	} else {
		out, target, err = scanDir(ctx, cfgs, abs, exts, set, cmd.Flags().Changed)
	}
	if err != nil {
		return fmt.Errorf("scan error: %w", err)
	}

	baselinePath := flagBaseline
	if !filepath.IsAbs(baselinePath) {
		baselinePath = filepath.Join(target.root, baselinePath)
	}
	base, _ := report.LoadBaseline(baselinePath)
	fresh := report.FilterNew(out.Vulnerabilities, base)
	shown := out
	shown.Vulnerabilities = fresh

	w := cmd.OutOrStdout()
	if flagTUI {
		if err := tui.RunWithBaseline(out.Vulnerabilities, base, baselinePath, rescanFunc(ctx, cfgs, abs, exts, set, cmd.Flags().Changed)); err != nil {
			return err
		}
	} else if err := render(w, shown, cfgs.noColor()); err != nil {
		return err
	}
	if flagCopy {
		copyResult(shown)
	}
	if flagRecord {
		rec := audit.CreateScanRecord(target.source, target.name, out, fresh, baselinePath)
		if target.source == "local" {
			rec = rec.WithRepo(target.root)
		}
		if err := audit.NewAuditLog(target.root).LogScan(rec); err != nil {
			slog.Warn("could not record scan", "error", err)
		}
	}
	if flagFail && report.ShouldFail(fresh, splitList(flagFailOn)) {
		return errFindings
	}
	return nil
}

// rescanFunc repeats the scan that produced the current results.
func rescanFunc(ctx context.Context, cfgs configs, root string, exts engine.ExtensionSet, set *patterns.Set, changed func(string) bool) func() ([]types.MatchResult, error) {
	return func() ([]types.MatchResult, error) {
		var (
			out types.ScanOutcome
			err error
		)
		if flagRepo != "" {
			out, _, err = scanRepo(ctx, cfgs, exts, set)
		} else {
			out, _, err = scanDir(ctx, cfgs, root, exts, set, changed)
		}
		return out.Vulnerabilities, err
	}
}

// scanDir scans root with the scan flags layered over the config files.
// changed reports which of those flags were given on the command line.
func scanDir(ctx context.Context, cfgs configs, root string, exts engine.ExtensionSet, set *patterns.Set, changed func(string) bool) (types.ScanOutcome, scanTarget, error) {
	l, g := cfgs.local, cfgs.global
	out, err := engine.ScanLocal(ctx, engine.LocalConfig{
		Root:            root,
		Extensions:      exts,
		IncludeGlobs:    pickString(flagInclude, l.Include, g.Include),
		ExcludeGlobs:    pickString(flagExclude, l.Exclude, g.Exclude),
		MaxBytes:        pickChanged(changed("max-bytes"), flagMaxBytes, l.MaxBytes, g.MaxBytes),
		DefaultExcludes: pickChanged(changed("default-excludes"), flagDefaultExcludes, l.DefaultExcludes, g.DefaultExcludes),
		IgnoreFile:      true,
		Workers:         cfgs.workers(),
		Timeout:         cfgs.timeout(),
		Logger:          slog.Default(),
	}, set)
	return out, scanTarget{source: "local", name: root, root: root}, err
}

func scanRepo(ctx context.Context, cfgs configs, exts engine.ExtensionSet, set *patterns.Set) (types.ScanOutcome, scanTarget, error) {
	owner, name, ok := git.SplitRepo(flagRepo)
	if !ok {
		return types.ScanOutcome{}, scanTarget{}, errs.Validation("repo", "expected owner/name, got %q", flagRepo)
	}
	client, err := cfgs.githubClient(ctx)
	if err != nil {
		return types.ScanOutcome{}, scanTarget{}, err
	}
	cwd, _ := os.Getwd()
	target := scanTarget{source: "github", name: owner + "/" + name, root: cwd}
	out, err := engine.ScanRemote(ctx, client.NewSession(cfgs.budget(flagBudget)), engine.RemoteConfig{
		Owner:      owner,
		Repo:       name,
		Extensions: exts,
		Workers:    cfgs.workers(),
		Timeout:    cfgs.timeout(),
		Logger:     slog.Default(),
	}, set)
	return out, target, err
}

func render(w io.Writer, out types.ScanOutcome, noColor bool) error {
	opts := report.PrintOptions{
		NoColor:      noColor,
		Duration:     out.Duration,
		FilesScanned: out.FilesScanned,
		FilesSkipped: out.FilesSkipped,
		Remaining:    out.Remaining,
	}
	switch {
	case flagSARIF:
		if err := report.WriteSARIF(w, out, version); err != nil {
			return fmt.Errorf("sarif error: %w", err)
		}
	case flagJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case flagTable:
		report.PrintTable(w, out.Vulnerabilities, opts)
	default:
		report.PrintText(w, out.Vulnerabilities, opts)
	}
	return nil
}

func copyResult(out types.ScanOutcome) {
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return
	}
	if err := clipboard.WriteAll(string(b)); err != nil {
		fmt.Fprintln(os.Stderr, "copy warning:", err)
		return
	}
	fmt.Fprintln(os.Stderr, "Result copied to clipboard.")
}
