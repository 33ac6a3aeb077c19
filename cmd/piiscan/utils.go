package piiscan

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	semver3 "github.com/blang/semver"
	semver "github.com/blang/semver/v4"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/redactyl/piiscan/internal/config"
	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/language"
	"github.com/redactyl/piiscan/internal/patterns"
	"github.com/redactyl/piiscan/internal/remote"
	"github.com/redactyl/piiscan/internal/update"
)

func selfUpdate() (string, error) {
	v := version
	if info, ok := debug.ReadBuildInfo(); ok && v == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				v = s.Value
			}
		}
	}
	ver, err := semver.ParseTolerant(v)
	if err != nil {
		ver = semver.MustParse("0.0.0")
	}
	rel, err := selfupdate.UpdateSelf(semver3.MustParse(ver.String()), update.Owner+"/"+update.Repo)
	if err != nil {
		return "", err
	}
	return rel.Version.String(), nil
}

// configs holds the global and repo-local files; either may be empty.
type configs struct {
	global, local config.FileConfig
}

func loadConfigs(root string) configs {
	var c configs
	if fc, err := config.LoadGlobal(); err == nil {
		c.global = fc
	}
	if fc, err := config.LoadLocal(root); err == nil {
		c.local = fc
	}
	return c
}

func (c configs) github() (local, global config.GitHubConfig) {
	return c.local.GetGitHub(), c.global.GetGitHub()
}

func (c configs) timeout() time.Duration {
	if flagTimeout > 0 {
		return flagTimeout
	}
	if d := c.local.TimeoutDuration(); d > 0 {
		return d
	}
	return c.global.TimeoutDuration()
}

func (c configs) workers() int {
	return pickInt(flagWorkers, c.local.Workers, c.global.Workers)
}

func (c configs) noColor() bool {
	if pickBool(flagNoColor, c.local.NoColor, c.global.NoColor) {
		return true
	}
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

func (c configs) extensions(cli string) []string {
	if exts := splitList(cli); len(exts) > 0 {
		return exts
	}
	if len(c.local.Extensions) > 0 {
		return c.local.Extensions
	}
	return c.global.Extensions
}

func (c configs) table(lexers bool) language.Table {
	t := language.DefaultTable()
	if m := mergeLanguages(c.global.Languages, c.local.Languages); len(m) > 0 {
		t = language.NewTable(m)
	}
	if pickBool(lexers, c.local.LexerFallback, c.global.LexerFallback) {
		t = t.WithLexerFallback()
	}
	return t
}

// mergeLanguages extends the built-in extension table with configured
// entries; local entries win.
func mergeLanguages(global, local map[string]string) map[string]string {
	if len(global) == 0 && len(local) == 0 {
		return nil
	}
	out := map[string]string{}
	base := language.DefaultTable()
	for _, ext := range base.Extensions().Sorted() {
		lang, _ := base.Lookup(ext)
		out[ext] = lang
	}
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

// patternSet resolves patterns: --pattern flags, then --patterns-file, then
// local and global config, then the built-in PII set.
func (c configs) patternSet(flags []string, file string) (*patterns.Set, error) {
	if len(flags) > 0 {
		pairs := make(patterns.Pairs, 0, len(flags))
		for _, f := range flags {
			p, err := patterns.ParsePair(f)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, p)
		}
		return patterns.Compile(pairs)
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, errs.Wrap(errs.ErrValidation, err, "patterns file")
		}
		var pairs patterns.Pairs
		if err := yaml.Unmarshal(b, &pairs); err != nil {
			return nil, errs.Wrap(errs.ErrValidation, err, "patterns file "+file)
		}
		return patterns.Compile(pairs)
	}
	if len(c.local.Patterns) > 0 {
		return patterns.Compile(c.local.Patterns)
	}
	if len(c.global.Patterns) > 0 {
		return patterns.Compile(c.global.Patterns)
	}
	return patterns.Default(), nil
}

func (c configs) githubClient(ctx context.Context) (*remote.Client, error) {
	l, g := c.github()
	token := pickString("", l.Token, g.Token)
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	return remote.NewClient(ctx, remote.Options{
		BaseURL: pickString("", l.APIURL, g.APIURL),
		Token:   token,
	})
}

func (c configs) budget(cli int) int {
	l, g := c.github()
	return pickInt(cli, l.Budget, g.Budget)
}

// checkForUpdate prints a one-line notice on stderr when a newer release
// exists. Failures stay silent.
func (c configs) checkForUpdate(ctx context.Context) {
	if flagJSON || flagSARIF || flagNoUpdateCheck {
		return
	}
	client, err := c.githubClient(ctx)
	if err != nil {
		return
	}
	if latest, newer, _ := (update.Checker{Releases: client}).Check(ctx, version, false); newer {
		fmt.Fprintf(os.Stderr, "(new version available: v%s)  run 'piiscan update' to upgrade\n", latest)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pickString(cli string, local, global *string) string {
	if cli != "" {
		return cli
	}
	if local != nil && *local != "" {
		return *local
	}
	if global != nil && *global != "" {
		return *global
	}
	return ""
}

func pickInt(cli int, local, global *int) int {
	if cli != 0 {
		return cli
	}
	if local != nil && *local != 0 {
		return *local
	}
	if global != nil && *global != 0 {
		return *global
	}
	return 0
}

// pickChanged is for flags whose default is meaningful: an explicit flag
// wins, then local, then global config, then the flag default.
func pickChanged[T any](changed bool, cli T, local, global *T) T {
	switch {
	case changed:
		return cli
	case local != nil:
		return *local
	case global != nil:
		return *global
	}
	return cli
}

func pickBool(cli bool, local, global *bool) bool {
	if cli {
		return true
	}
	if local != nil {
		return *local
	}
	if global != nil {
		return *global
	}
	return false
}
