// Package ignore reads .piiscanignore files: one doublestar pattern per line,
// '#' comments, and a trailing '/' to ignore a whole directory.
package ignore

import (
	"bufio"
	"os"
	"path"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// FileName is the ignore file looked up at a scan root.
const FileName = ".piiscanignore"

// Matcher reports whether a slash-separated relative path is ignored. The zero
// value ignores nothing.
type Matcher struct {
	patterns []string
	dirs     []string
}

// Load reads patterns from path. On error the returned Matcher is still usable
// and ignores nothing.
func Load(p string) (Matcher, error) {
	var m Matcher
	f, err := os.Open(p)
	if err != nil {
		return m, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "./")
		if strings.HasSuffix(line, "/") {
			m.dirs = append(m.dirs, strings.TrimSuffix(line, "/"))
			continue
		}
		m.patterns = append(m.patterns, line)
	}
	return m, sc.Err()
}

// Match reports whether rel should be skipped.
func (m Matcher) Match(rel string) bool {
	rel = strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "./")
	base := path.Base(rel)
	for _, d := range m.dirs {
		if rel == d || strings.HasPrefix(rel, d+"/") || strings.Contains(rel, "/"+d+"/") {
			return true
		}
	}
	for _, g := range m.patterns {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}

// Empty reports whether the matcher has no patterns.
func (m Matcher) Empty() bool { return len(m.patterns) == 0 && len(m.dirs) == 0 }
