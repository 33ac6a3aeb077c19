package language

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/types"
)

func write(t *testing.T, dir, name string, size int) {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("x", size)), 0644))
}

func TestAnalyzeLocal_Composition(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "x.js", 120)
	write(t, dir, "y.py", 80)
	write(t, dir, "z.md", 500)

	got, err := AnalyzeLocal(context.Background(), dir, DefaultTable(), nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 60.0, got["JavaScript"], 1e-9)
	assert.InDelta(t, 40.0, got["Python"], 1e-9)
}

func TestAnalyzeLocal_MergesExtensionsOfOneLanguage(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.ts", 30)
	write(t, dir, "sub/b.TSX", 10)
	write(t, dir, "c.go", 60)

	got, err := AnalyzeLocal(context.Background(), dir, DefaultTable(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, got["TypeScript"], 1e-9)
	assert.InDelta(t, 60.0, got["Go"], 1e-9)
}

func TestAnalyzeLocal_NothingRecognized(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "notes.md", 10)
	write(t, dir, "empty.py", 0)

	got, err := AnalyzeLocal(context.Background(), dir, DefaultTable(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAnalyzeLocal_MissingRoot(t *testing.T) {
	_, err := AnalyzeLocal(context.Background(), filepath.Join(t.TempDir(), "gone"), DefaultTable(), nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPercentages(t *testing.T) {
	assert.Equal(t, types.LanguageStats{}, Percentages(nil))
	assert.Equal(t, types.LanguageStats{}, Percentages(map[string]int64{"Go": 0}))

	got := Percentages(map[string]int64{"Go": 1, "Rust": 1, "C": 1})
	var sum float64
	for _, v := range got {
		sum += v
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestTable(t *testing.T) {
	tbl := NewTable(map[string]string{"vue": "Vue", ".SVELTE": "Svelte", ".x": " "})
	lang, ok := tbl.Lookup(".VUE")
	assert.True(t, ok)
	assert.Equal(t, "Vue", lang)
	_, ok = tbl.Lookup(".svelte")
	assert.True(t, ok)
	_, ok = tbl.Lookup(".x")
	assert.False(t, ok)
	assert.Equal(t, []string{"Svelte", "Vue"}, tbl.Languages())
	assert.Len(t, tbl.Extensions(), 2)
}

func TestTable_LexerFallback(t *testing.T) {
	base := DefaultTable()
	_, ok := base.Lookup(".c")
	assert.False(t, ok)

	tbl := base.WithLexerFallback()
	lang, ok := tbl.Lookup(".c")
	assert.True(t, ok)
	assert.NotEmpty(t, lang)
	lang, _ = tbl.Lookup(".py")
	assert.Equal(t, "Python", lang)
	_, ok = tbl.Lookup(".definitely-not-a-language")
	assert.False(t, ok)
	assert.Nil(t, tbl.Extensions())

	// the original table is untouched
	_, ok = base.Lookup(".c")
	assert.False(t, ok)
}

type staticLister struct {
	bytes map[string]int64
	err   error
}

func (s staticLister) Languages(context.Context, string, string) (map[string]int64, error) {
	return s.bytes, s.err
}

func TestAnalyzeRemote(t *testing.T) {
	got, err := AnalyzeRemote(context.Background(), staticLister{bytes: map[string]int64{"Go": 750, "Shell": 250}}, "o", "r")
	require.NoError(t, err)
	assert.InDelta(t, 75.0, got["Go"], 1e-9)
	assert.InDelta(t, 25.0, got["Shell"], 1e-9)

	got, err = AnalyzeRemote(context.Background(), staticLister{bytes: map[string]int64{}}, "o", "r")
	require.NoError(t, err)
	assert.Empty(t, got)

	notFound := errs.Wrap(errs.ErrNotFound, errors.New("404"), "repository o/r")
	_, err = AnalyzeRemote(context.Background(), staticLister{err: notFound}, "o", "r")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
