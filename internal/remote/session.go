package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/go-github/v30/github"

	"github.com/redactyl/piiscan/internal/engine"
	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/types"
)

// Session is one metered scan of one repository. Walk must run before Fetch.
type Session struct {
	gh     *github.Client
	budget *Budget
	log    *slog.Logger

	mu    sync.RWMutex
	owner string
	repo  string
}

var _ engine.RemoteTree = (*Session)(nil)

// Remaining reports the API calls left in this session.
func (s *Session) Remaining() int { return s.budget.Remaining() }

// Reserve claims one call for a later Fetch.
func (s *Session) Reserve() bool { return s.budget.Reserve() }

// contentsCap is the most entries the contents API returns for a single
// directory. A listing of that size is assumed truncated.
const contentsCap = 1000

// rootTree addresses the repository root in the trees API.
const rootTree = "HEAD"

type pendingDir struct {
	path string
	sha  string
}

type entry struct {
	path string
	kind string // file, dir or other
	size int64
	sha  string
}

// Walk lists every file of owner/repo whose extension passes exts. Each
// directory listing costs one call; a directory at the contents API cap
// costs one more to re-list it through the trees API. When the budget runs
// out the files collected so far are returned without error.
func (s *Session) Walk(ctx context.Context, owner, repo string, exts engine.ExtensionSet) ([]types.FileDescriptor, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.owner, s.repo = owner, repo
	s.mu.Unlock()
	log := s.log.With("repo", owner+"/"+repo)

	stack := []pendingDir{{sha: rootTree}}
	listed := 0
	var out []types.FileDescriptor
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.budget.Take() {
			log.Debug("api budget spent during listing", "pending_dirs", len(stack), "files", len(out))
			break
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := s.listContents(ctx, owner, repo, dir.path)
		if err == nil && len(entries) >= contentsCap {
			entries, err = s.relistTree(ctx, owner, repo, dir, entries, log)
		}
		if err != nil {
			switch {
			case errors.Is(err, errs.ErrRateLimited):
				s.budget.Zero()
				if listed == 0 {
					return nil, err
				}
				log.Warn("provider quota exhausted, returning partial listing", "files", len(out))
				return out, nil
			case errors.Is(err, errs.ErrNotFound) && listed == 0:
				return nil, errs.Wrap(errs.ErrNotFound, err, fmt.Sprintf("repository %s/%s", owner, repo))
			case errors.Is(err, errs.ErrNotFound):
				log.Debug("directory vanished during listing", "dir", dir.path)
				continue
			default:
				return nil, err
			}
		}
		listed++

		sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
		var subdirs []pendingDir
		for _, e := range entries {
			switch e.kind {
			case "dir":
				subdirs = append(subdirs, pendingDir{path: e.path, sha: e.sha})
			case "file":
				ext := engine.Ext(e.path)
				if !exts.Allows(ext) {
					continue
				}
				out = append(out, types.FileDescriptor{Path: e.path, Extension: ext, Size: e.size, SHA: e.sha})
			}
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return out, nil
}

func (s *Session) listContents(ctx context.Context, owner, repo, dir string) ([]entry, error) {
	_, items, resp, err := s.gh.Repositories.GetContents(ctx, owner, repo, dir, nil)
	recordCall(ctx, "contents", err)
	s.observe(resp)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("list %s/%s:%s", owner, repo, dir))
	}
	out := make([]entry, 0, len(items))
	for _, it := range items {
		out = append(out, entry{path: it.GetPath(), kind: it.GetType(), size: int64(it.GetSize()), sha: it.GetSHA()})
	}
	return out, nil
}

// relistTree replaces a capped contents listing with the directory's tree.
// Without budget for the extra call the capped listing is kept.
func (s *Session) relistTree(ctx context.Context, owner, repo string, dir pendingDir, capped []entry, log *slog.Logger) ([]entry, error) {
	if dir.sha == "" || !s.budget.Take() {
		log.Warn("directory listing capped, remaining entries skipped", "dir", dir.path, "entries", len(capped))
		return capped, nil
	}
	tree, resp, err := s.gh.Git.GetTree(ctx, owner, repo, dir.sha, false)
	recordCall(ctx, "tree", err)
	s.observe(resp)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("tree %s/%s:%s", owner, repo, dir.path))
	}
	if tree.GetTruncated() {
		log.Warn("tree listing truncated by provider", "dir", dir.path, "entries", len(tree.Entries))
	}
	out := make([]entry, 0, len(tree.Entries))
	for _, te := range tree.Entries {
		p := te.GetPath()
		if dir.path != "" {
			p = dir.path + "/" + p
		}
		e := entry{path: p, size: int64(te.GetSize()), sha: te.GetSHA(), kind: "other"}
		switch {
		case te.GetType() == "tree":
			e.kind = "dir"
		case te.GetType() == "blob" && te.GetMode() != symlinkMode:
			e.kind = "file"
		}
		out = append(out, e)
	}
	return out, nil
}

// symlinkMode is the git file mode of a symbolic link.
const symlinkMode = "120000"

// Fetch downloads the raw content of fd by blob id, spending a reserved call
// or a fresh one. A spent budget or an exhausted provider quota yields
// errs.ErrBudgetExhausted.
func (s *Session) Fetch(ctx context.Context, fd types.FileDescriptor) ([]byte, error) {
	if !s.budget.Consume() {
		return nil, errs.ErrBudgetExhausted
	}
	if fd.SHA == "" {
		s.budget.Release()
		return nil, fmt.Errorf("fetch %s: missing blob sha", fd.Path)
	}
	s.mu.RLock()
	owner, repo := s.owner, s.repo
	s.mu.RUnlock()

	b, resp, err := s.gh.Git.GetBlobRaw(ctx, owner, repo, fd.SHA)
	recordCall(ctx, "blob", err)
	s.observe(resp)
	if err != nil {
		cerr := classify(err, "fetch "+fd.Path)
		if errors.Is(cerr, errs.ErrRateLimited) {
			s.budget.Zero()
			return nil, fmt.Errorf("%w: %v", errs.ErrBudgetExhausted, cerr)
		}
		return nil, cerr
	}
	return b, nil
}

func (s *Session) observe(resp *github.Response) {
	if resp == nil || resp.Rate.Limit <= 0 {
		return
	}
	s.budget.Adopt(resp.Rate.Remaining)
}

func validateRepo(owner, repo string) error {
	if strings.TrimSpace(owner) == "" {
		return errs.Validation("owner", "must not be empty")
	}
	if strings.TrimSpace(repo) == "" {
		return errs.Validation("repo", "must not be empty")
	}
	return nil
}
