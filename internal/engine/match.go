package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/patterns"
	"github.com/redactyl/piiscan/internal/types"
)

// Fetcher materializes the content of a file produced by a walker.
type Fetcher interface {
	Fetch(ctx context.Context, fd types.FileDescriptor) ([]byte, error)
}

// Reserver is implemented by metered fetchers. The matcher reserves one unit
// per file, in file order, before dispatching its fetch; false means the
// budget is spent and no further files are fetched.
type Reserver interface {
	Reserve() bool
}

// LocalFetcher reads files relative to Root.
type LocalFetcher struct {
	Root string
}

// Fetch reads fd from disk.
func (f LocalFetcher) Fetch(_ context.Context, fd types.FileDescriptor) ([]byte, error) {
	return os.ReadFile(filepath.Join(f.Root, filepath.FromSlash(fd.Path)))
}

// MatchStats counts files that were matched and files skipped because they
// could not be read or decoded.
type MatchStats struct {
	Scanned int
	Skipped int
}

// Matcher searches file contents for every pattern of a Set.
type Matcher struct {
	Patterns *patterns.Set
	Fetcher  Fetcher
	Workers  int
	Logger   *slog.Logger
}

type fileState uint8

const (
	stateUnfetched fileState = iota
	stateScanned
	stateSkipped
)

// Match scans files concurrently and returns one MatchResult per file and
// category with at least one occurrence. Output follows file order, then
// pattern order, so it is identical across runs for the same inputs.
//
// Files that fail to read or decode are logged and skipped. A spent API budget
// stops fetching further files without failing the call. Context errors abort
// the whole match.
func (m *Matcher) Match(ctx context.Context, files []types.FileDescriptor) ([]types.MatchResult, MatchStats, error) {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}
	pats := m.Patterns.Patterns()
	perFile := make([][]types.MatchResult, len(files))
	states := make([]fileState, len(files))

	reserver, metered := m.Fetcher.(Reserver)
	var exhausted atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(determineWorkers(m.Workers))
	for i := range files {
		if gctx.Err() != nil || exhausted.Load() {
			break
		}
		if metered && files[i].Content == nil && !reserver.Reserve() {
			log.Debug("api budget spent, remaining files not fetched", "pending", len(files)-i)
			break
		}
		g.Go(func() error {
			fd := files[i]
			res, err := m.matchFile(gctx, fd, pats)
			switch {
			case err == nil:
				perFile[i] = res
				states[i] = stateScanned
			case errors.Is(err, errs.ErrBudgetExhausted):
				exhausted.Store(true)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				states[i] = stateSkipped
				if errors.Is(err, errs.ErrDecode) {
					log.Debug("skipping non-text file", "path", fd.Path, "error", err)
				} else {
					log.Warn("skipping unreadable file", "path", fd.Path, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, MatchStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, MatchStats{}, err
	}

	out := []types.MatchResult{}
	var stats MatchStats
	for i, res := range perFile {
		switch states[i] {
		case stateScanned:
			stats.Scanned++
		case stateSkipped:
			stats.Skipped++
		}
		out = append(out, res...)
	}
	return out, stats, nil
}

func (m *Matcher) matchFile(ctx context.Context, fd types.FileDescriptor, pats []patterns.Pattern) ([]types.MatchResult, error) {
	data := fd.Content
	if data == nil {
		b, err := m.Fetcher.Fetch(ctx, fd)
		if err != nil {
			return nil, err
		}
		data = b
	}
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	var out []types.MatchResult
	for _, p := range pats {
		if occ := p.FindAll(text); len(occ) > 0 {
			out = append(out, types.MatchResult{Category: p.Category, File: fd.Path, Occurrences: occ})
		}
	}
	return out, nil
}

func determineWorkers(n int) int {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > 32 {
		n = 32
	}
	return n
}
