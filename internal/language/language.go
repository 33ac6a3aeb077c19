// Package language estimates the language composition of a source tree by
// bytes per language.
package language

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/redactyl/piiscan/internal/engine"
	"github.com/redactyl/piiscan/internal/types"
)

var defaultExtensions = map[string]string{
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".py":   "Python",
	".java": "Java",
	".html": "HTML",
	".css":  "CSS",
	".scss": "SCSS",
	".less": "Less",
	".php":  "PHP",
	".rb":   "Ruby",
	".go":   "Go",
	".rs":   "Rust",
}

// Table maps file extensions to language names. It is immutable once built.
type Table struct {
	byExt  map[string]string
	lexers bool
}

// DefaultTable returns the built-in extension table.
func DefaultTable() Table { return NewTable(defaultExtensions) }

// NewTable builds a table from ext -> language. Extensions are normalized the
// same way as engine.NewExtensionSet; entries with an empty language are
// dropped.
func NewTable(m map[string]string) Table {
	t := Table{byExt: make(map[string]string, len(m))}
	for ext, lang := range m {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		for norm := range engine.NewExtensionSet(ext) {
			t.byExt[norm] = lang
		}
	}
	return t
}

// WithLexerFallback returns a copy of t that resolves unknown extensions
// through chroma's lexer registry.
func (t Table) WithLexerFallback() Table {
	cp := Table{byExt: make(map[string]string, len(t.byExt)), lexers: true}
	for k, v := range t.byExt {
		cp.byExt[k] = v
	}
	return cp
}

// Lookup returns the language for ext ("" and false when unrecognized).
func (t Table) Lookup(ext string) (string, bool) {
	ext = strings.ToLower(ext)
	if lang, ok := t.byExt[ext]; ok {
		return lang, true
	}
	if t.lexers && ext != "" {
		if l := lexers.Match("file" + ext); l != nil {
			return l.Config().Name, true
		}
	}
	return "", false
}

// Extensions returns the filter a walk should use: the table's extensions,
// or every file when lexer fallback is on.
func (t Table) Extensions() engine.ExtensionSet {
	if t.lexers {
		return nil
	}
	set := make(engine.ExtensionSet, len(t.byExt))
	for ext := range t.byExt {
		set[ext] = struct{}{}
	}
	return set
}

// Languages lists the distinct language names of the table, sorted.
func (t Table) Languages() []string {
	seen := map[string]bool{}
	var out []string
	for _, lang := range t.byExt {
		if !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	sort.Strings(out)
	return out
}

// AnalyzeLocal walks root and reports each recognized language's share of
// the recognized bytes.
func AnalyzeLocal(ctx context.Context, root string, t Table, log *slog.Logger) (types.LanguageStats, error) {
	files, err := engine.Walk(ctx, root, engine.WalkOptions{Extensions: t.Extensions(), Logger: log})
	if err != nil {
		return nil, err
	}
	bytes := map[string]int64{}
	for _, fd := range files {
		if lang, ok := t.Lookup(fd.Extension); ok {
			bytes[lang] += fd.Size
		}
	}
	return Percentages(bytes), nil
}

// Lister reports bytes of code per language for a hosted repository.
type Lister interface {
	Languages(ctx context.Context, owner, repo string) (map[string]int64, error)
}

// AnalyzeRemote asks the provider for owner/repo's language bytes.
func AnalyzeRemote(ctx context.Context, l Lister, owner, repo string) (types.LanguageStats, error) {
	bytes, err := l.Languages(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return Percentages(bytes), nil
}

// Percentages converts byte counts to percentages of their total. A zero
// total yields an empty map, never a division by zero.
func Percentages(bytes map[string]int64) types.LanguageStats {
	out := types.LanguageStats{}
	var total int64
	for _, n := range bytes {
		if n > 0 {
			total += n
		}
	}
	if total == 0 {
		return out
	}
	for lang, n := range bytes {
		if n > 0 {
			out[lang] = float64(n) * 100 / float64(total)
		}
	}
	return out
}
