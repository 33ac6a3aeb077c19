package core

import (
	"context"

	"github.com/redactyl/piiscan/internal/engine"
	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/language"
	"github.com/redactyl/piiscan/internal/patterns"
	"github.com/redactyl/piiscan/internal/remote"
	"github.com/redactyl/piiscan/internal/types"
)

// Re-export selected internal types as a stable public API surface.
type (
	LocalConfig   = engine.LocalConfig
	RemoteConfig  = engine.RemoteConfig
	Outcome       = types.ScanOutcome
	MatchResult   = types.MatchResult
	LanguageStats = types.LanguageStats
	PatternSet    = patterns.Set
	Pair          = patterns.Pair
	Pairs         = patterns.Pairs
)

// Error kinds, for errors.Is.
var (
	ErrValidation  = errs.ErrValidation
	ErrNotFound    = errs.ErrNotFound
	ErrRateLimited = errs.ErrRateLimited
	ErrTimeout     = errs.ErrTimeout
)

// GitHub selects the API endpoint and credentials for remote calls. Budget
// caps API calls per scan (0 = 1000).
type GitHub struct {
	BaseURL string
	Token   string
	Budget  int
}

// Extensions builds an extension filter; no arguments means every file.
func Extensions(exts ...string) engine.ExtensionSet { return engine.NewExtensionSet(exts...) }

// CompilePatterns validates and compiles pairs in order.
func CompilePatterns(pairs Pairs) (*PatternSet, error) { return patterns.Compile(pairs) }

// DefaultPatterns returns the built-in PII pattern set.
func DefaultPatterns() *PatternSet { return patterns.Default() }

// ScanLocal scans a directory tree.
func ScanLocal(ctx context.Context, cfg LocalConfig, set *PatternSet) (Outcome, error) {
	return engine.ScanLocal(ctx, cfg, set)
}

// ScanGitHub scans a hosted repository. Outcome.Remaining reports the budget
// left afterwards.
func ScanGitHub(ctx context.Context, gh GitHub, cfg RemoteConfig, set *PatternSet) (Outcome, error) {
	client, err := remote.NewClient(ctx, remote.Options{BaseURL: gh.BaseURL, Token: gh.Token, Logger: cfg.Logger})
	if err != nil {
		return Outcome{}, err
	}
	return engine.ScanRemote(ctx, client.NewSession(gh.Budget), cfg, set)
}

// AnalyzeLocal reports the language composition of a directory tree using the
// built-in extension table.
func AnalyzeLocal(ctx context.Context, root string) (LanguageStats, error) {
	return language.AnalyzeLocal(ctx, root, language.DefaultTable(), nil)
}

// AnalyzeGitHub reports the language composition of a hosted repository.
func AnalyzeGitHub(ctx context.Context, gh GitHub, owner, repo string) (LanguageStats, error) {
	client, err := remote.NewClient(ctx, remote.Options{BaseURL: gh.BaseURL, Token: gh.Token})
	if err != nil {
		return nil, err
	}
	return language.AnalyzeRemote(ctx, client, owner, repo)
}

// ErrorCode returns a stable code for err (INVALID_INPUT, NOT_FOUND, ...).
func ErrorCode(err error) string { return errs.Code(err) }
