package engine

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// ExtensionSet is a case-insensitive set of file extensions including the
// leading dot. The empty set accepts every file.
type ExtensionSet map[string]struct{}

// NewExtensionSet normalizes exts: lower case, leading dot added when missing,
// blanks dropped.
func NewExtensionSet(exts ...string) ExtensionSet {
	set := ExtensionSet{}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}

// Allows reports whether ext (as returned by Ext) passes the filter.
func (s ExtensionSet) Allows(ext string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[strings.ToLower(ext)]
	return ok
}

// Sorted returns the members in lexicographic order.
func (s ExtensionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Ext returns the lower-cased extension of a slash or OS path.
func Ext(p string) string {
	return strings.ToLower(path.Ext(filepath.ToSlash(p)))
}

var defaultExcludeDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	"coverage":     true,
}

// suffixes of files that never hold reviewable text
var defaultExcludeFileSuffixes = []string{
	".min.js", ".map",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico",
	".pdf", ".zip", ".gz", ".tar", ".tgz", ".7z",
	".jar", ".class", ".exe", ".dll", ".so", ".dylib",
	".wasm", ".pyc",
}

var defaultExcludeFileNames = map[string]bool{
	"yarn.lock":         true,
	"package-lock.json": true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
	".DS_Store":         true,
}

func isDefaultDirExcluded(name string) bool {
	return defaultExcludeDirs[name]
}

func isDefaultFileExcluded(lowerRel string) bool {
	if strings.HasSuffix(lowerRel, ".lock") {
		return true
	}
	for _, s := range defaultExcludeFileSuffixes {
		if strings.HasSuffix(lowerRel, s) {
			return true
		}
	}
	return defaultExcludeFileNames[path.Base(lowerRel)]
}

// globFilter applies comma-separated include/exclude globs. Include globs, if
// any, act as a positive filter; exclude globs are subtracted last.
type globFilter struct {
	includes []string
	excludes []string
}

func newGlobFilter(include, exclude string) globFilter {
	return globFilter{includes: parseGlobsList(include), excludes: parseGlobsList(exclude)}
}

func (g globFilter) allows(rel string) bool {
	if len(g.includes) > 0 && !matchAnyGlob(rel, g.includes) {
		return false
	}
	if len(g.excludes) > 0 && matchAnyGlob(rel, g.excludes) {
		return false
	}
	return true
}

func parseGlobsList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p, trimGlobPrefix(p))
		}
	}
	return out
}

func matchAnyGlob(rel string, globs []string) bool {
	base := path.Base(rel)
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}

func trimGlobPrefix(g string) string {
	s := strings.TrimPrefix(g, "./")
	for strings.HasPrefix(s, "**/") {
		s = strings.TrimPrefix(s, "**/")
	}
	return s
}
