package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/ignore"
	"github.com/redactyl/piiscan/internal/types"
)

// WalkOptions selects which files a local walk yields. The zero value yields
// every regular file under the root.
type WalkOptions struct {
	Extensions      ExtensionSet
	IncludeGlobs    string
	ExcludeGlobs    string
	MaxBytes        int64 // 0 = no limit
	DefaultExcludes bool
	IgnoreFile      bool // honor .piiscanignore at the root
	Logger          *slog.Logger
}

type pendingDir struct {
	abs string
	rel string
}

// Walk enumerates regular files under root. Directories are processed from an
// explicit stack; each canonical directory is visited once, so symlink cycles
// terminate. Entries are taken in lexicographic order within each directory,
// which keeps the output stable for a fixed tree. No file content is read.
func Walk(ctx context.Context, root string, opts WalkOptions) ([]types.FileDescriptor, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrNotFound, err, "scan root")
		}
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, errs.Wrap(errs.ErrNotFound, nil, fmt.Sprintf("scan root %s is not a directory", root))
	}
	canon, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	var ign ignore.Matcher
	if opts.IgnoreFile {
		ign, _ = ignore.Load(filepath.Join(root, ignore.FileName))
	}
	globs := newGlobFilter(opts.IncludeGlobs, opts.ExcludeGlobs)

	visited := map[string]bool{canon: true}
	stack := []pendingDir{{abs: root}}
	var out []types.FileDescriptor
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir.abs)
		if err != nil {
			log.Debug("skipping unreadable directory", "dir", dir.rel, "error", err)
			continue
		}
		var subdirs []pendingDir
		for _, e := range entries {
			abs := filepath.Join(dir.abs, e.Name())
			rel := path.Join(dir.rel, e.Name())
			fi, err := entryInfo(abs, e)
			if err != nil {
				log.Debug("skipping entry", "path", rel, "error", err)
				continue
			}
			if fi.IsDir() {
				if opts.DefaultExcludes && isDefaultDirExcluded(e.Name()) {
					continue
				}
				if ign.Match(rel) {
					continue
				}
				real, err := filepath.EvalSymlinks(abs)
				if err != nil {
					log.Debug("skipping directory", "path", rel, "error", err)
					continue
				}
				if visited[real] {
					log.Debug("skipping already visited directory", "path", rel, "target", real)
					continue
				}
				visited[real] = true
				subdirs = append(subdirs, pendingDir{abs: abs, rel: rel})
				continue
			}
			if !fi.Mode().IsRegular() {
				continue
			}
			ext := Ext(rel)
			if !opts.Extensions.Allows(ext) {
				continue
			}
			if !globs.allows(rel) || ign.Match(rel) {
				continue
			}
			if opts.DefaultExcludes && isDefaultFileExcluded(strings.ToLower(rel)) {
				continue
			}
			if opts.MaxBytes > 0 && fi.Size() > opts.MaxBytes {
				continue
			}
			out = append(out, types.FileDescriptor{Path: rel, Extension: ext, Size: fi.Size()})
		}
		// pushed in reverse so the lexicographically first subdirectory pops next
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return out, nil
}

// entryInfo follows symlinks; plain entries reuse the readdir info.
func entryInfo(abs string, e fs.DirEntry) (fs.FileInfo, error) {
	if e.Type()&fs.ModeSymlink != 0 {
		return os.Stat(abs)
	}
	return e.Info()
}
