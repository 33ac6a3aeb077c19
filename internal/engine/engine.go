package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/patterns"
	"github.com/redactyl/piiscan/internal/types"
)

// LocalConfig controls a scan of a directory tree.
type LocalConfig struct {
	Root            string
	Extensions      ExtensionSet
	IncludeGlobs    string
	ExcludeGlobs    string
	MaxBytes        int64
	DefaultExcludes bool
	IgnoreFile      bool
	Workers         int
	Timeout         time.Duration // 0 = only the caller's deadline applies
	Logger          *slog.Logger
}

// RemoteConfig controls a scan of a hosted repository.
type RemoteConfig struct {
	Owner      string
	Repo       string
	Extensions ExtensionSet
	Workers    int
	Timeout    time.Duration
	Logger     *slog.Logger
}

// RemoteTree is a metered view of a hosted repository. Walk lists files
// without content; Fetch materializes one file; Remaining reports the budget
// left after both.
type RemoteTree interface {
	Fetcher
	Walk(ctx context.Context, owner, repo string, exts ExtensionSet) ([]types.FileDescriptor, error)
	Remaining() int
}

// ScanLocal walks cfg.Root and matches every selected file against set.
func ScanLocal(ctx context.Context, cfg LocalConfig, set *patterns.Set) (types.ScanOutcome, error) {
	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()
	log := loggerOr(cfg.Logger).With("source", "local", "root", cfg.Root)

	started := time.Now()
	files, err := Walk(ctx, cfg.Root, WalkOptions{
		Extensions:      cfg.Extensions,
		IncludeGlobs:    cfg.IncludeGlobs,
		ExcludeGlobs:    cfg.ExcludeGlobs,
		MaxBytes:        cfg.MaxBytes,
		DefaultExcludes: cfg.DefaultExcludes,
		IgnoreFile:      cfg.IgnoreFile,
		Logger:          log,
	})
	if err != nil {
		inst.recordScan(ctx, "local", 0, 0, 0, err)
		return types.ScanOutcome{}, mapTimeout(err)
	}
	log.Debug("walk complete", "files", len(files))

	m := Matcher{Patterns: set, Fetcher: LocalFetcher{Root: cfg.Root}, Workers: cfg.Workers, Logger: log}
	results, stats, err := m.Match(ctx, files)
	inst.recordScan(ctx, "local", stats.Scanned, stats.Skipped, len(results), err)
	if err != nil {
		return types.ScanOutcome{}, mapTimeout(err)
	}
	return types.ScanOutcome{
		Vulnerabilities: results,
		FilesScanned:    stats.Scanned,
		FilesSkipped:    stats.Skipped,
		Duration:        time.Since(started),
	}, nil
}

// ScanRemote walks a hosted repository through tree and fetches file content
// lazily for matching. The outcome carries the budget left afterwards.
func ScanRemote(ctx context.Context, tree RemoteTree, cfg RemoteConfig, set *patterns.Set) (types.ScanOutcome, error) {
	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()
	log := loggerOr(cfg.Logger).With("source", "remote", "repo", cfg.Owner+"/"+cfg.Repo)

	started := time.Now()
	files, err := tree.Walk(ctx, cfg.Owner, cfg.Repo, cfg.Extensions)
	if err != nil {
		inst.recordScan(ctx, "remote", 0, 0, 0, err)
		return types.ScanOutcome{}, mapTimeout(err)
	}
	log.Debug("walk complete", "files", len(files), "remaining", tree.Remaining())

	m := Matcher{Patterns: set, Fetcher: tree, Workers: cfg.Workers, Logger: log}
	results, stats, err := m.Match(ctx, files)
	inst.recordScan(ctx, "remote", stats.Scanned, stats.Skipped, len(results), err)
	if err != nil {
		return types.ScanOutcome{}, mapTimeout(err)
	}
	remaining := tree.Remaining()
	return types.ScanOutcome{
		Vulnerabilities: results,
		Remaining:       &remaining,
		FilesScanned:    stats.Scanned,
		FilesSkipped:    stats.Skipped,
		Duration:        time.Since(started),
	}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, errs.ErrTimeout) {
		return errs.Wrap(errs.ErrTimeout, err, "scan deadline exceeded")
	}
	return err
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
