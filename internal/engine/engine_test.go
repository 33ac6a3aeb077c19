package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/types"
)

func TestScanLocal_ExtensionFilterScenario(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.py":  "contact: a@x.com",
		"b.txt": "no match",
	})
	out, err := ScanLocal(context.Background(), LocalConfig{Root: dir, Extensions: NewExtensionSet(".py")}, emailSet(t))
	require.NoError(t, err)
	assert.Equal(t, []types.MatchResult{{Category: "email", File: "a.py", Occurrences: []string{"a@x.com"}}}, out.Vulnerabilities)
	assert.Nil(t, out.Remaining)
	assert.Equal(t, 1, out.FilesScanned)

	// b.txt is excluded by the filter even when its content would match
	writeTree(t, dir, map[string]string{"b.txt": "b@x.com"})
	out, err = ScanLocal(context.Background(), LocalConfig{Root: dir, Extensions: NewExtensionSet(".py")}, emailSet(t))
	require.NoError(t, err)
	require.Len(t, out.Vulnerabilities, 1)
	assert.Equal(t, "a.py", out.Vulnerabilities[0].File)
}

func TestScanLocal_JSONShape(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "nothing"})
	out, err := ScanLocal(context.Background(), LocalConfig{Root: dir}, emailSet(t))
	require.NoError(t, err)
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"vulnerabilities":[],"remaining":null,"filesScanned":1,"filesSkipped":0}`, string(b))
}

func TestScanLocal_MissingRoot(t *testing.T) {
	_, err := ScanLocal(context.Background(), LocalConfig{Root: filepath.Join(t.TempDir(), "missing")}, emailSet(t))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestScanLocal_DeadlineIsTimeout(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "a@x.com"})
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	out, err := ScanLocal(ctx, LocalConfig{Root: dir}, emailSet(t))
	require.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, "TIMEOUT", errs.Code(err))
	assert.Nil(t, out.Vulnerabilities)
}

// fakeTree is a metered in-memory repository. Walk spends one unit per
// directory listing; fetches spend one unit each.
type fakeTree struct {
	mu       sync.Mutex
	budget   int
	reserved int
	dirs     int
	files    map[string]string
	walkErr  error
	block    bool
}

func (f *fakeTree) take() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.budget <= 0 {
		return false
	}
	f.budget--
	return true
}

func (f *fakeTree) Walk(ctx context.Context, _, _ string, exts ExtensionSet) ([]types.FileDescriptor, error) {
	if f.walkErr != nil {
		return nil, f.walkErr
	}
	var out []types.FileDescriptor
	for i := 0; i < f.dirs; i++ {
		if !f.take() {
			return out, nil
		}
	}
	for _, p := range sortedKeys(f.files) {
		if exts.Allows(Ext(p)) {
			out = append(out, types.FileDescriptor{Path: p, Extension: Ext(p), SHA: "sha-" + p})
		}
	}
	return out, nil
}

func (f *fakeTree) Reserve() bool {
	if !f.take() {
		return false
	}
	f.mu.Lock()
	f.reserved++
	f.mu.Unlock()
	return true
}

func (f *fakeTree) Fetch(ctx context.Context, fd types.FileDescriptor) ([]byte, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserved > 0 {
		f.reserved--
	} else if f.budget > 0 {
		f.budget--
	} else {
		return nil, errs.ErrBudgetExhausted
	}
	return []byte(f.files[fd.Path]), nil
}

func (f *fakeTree) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.budget
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestScanRemote_BudgetOfOneSpentOnListing(t *testing.T) {
	tree := &fakeTree{budget: 1, dirs: 1, files: map[string]string{"a.py": "a@x.com"}}
	out, err := ScanRemote(context.Background(), tree, RemoteConfig{Owner: "o", Repo: "r"}, emailSet(t))
	require.NoError(t, err)
	assert.Empty(t, out.Vulnerabilities)
	require.NotNil(t, out.Remaining)
	assert.Equal(t, 0, *out.Remaining)
}

func TestScanRemote_RemainingReflectsFetches(t *testing.T) {
	tree := &fakeTree{budget: 10, dirs: 2, files: map[string]string{
		"a.py":   "a@x.com",
		"b.py":   "none",
		"c.md":   "c@x.com",
		"d/e.py": "e@x.com",
	}}
	out, err := ScanRemote(context.Background(), tree, RemoteConfig{Owner: "o", Repo: "r", Extensions: NewExtensionSet("py")}, emailSet(t))
	require.NoError(t, err)
	require.Len(t, out.Vulnerabilities, 2)
	assert.Equal(t, "a.py", out.Vulnerabilities[0].File)
	assert.Equal(t, "d/e.py", out.Vulnerabilities[1].File)
	require.NotNil(t, out.Remaining)
	assert.Equal(t, 10-2-3, *out.Remaining)
	assert.Equal(t, 3, out.FilesScanned)
}

func TestScanRemote_PartialWhenBudgetRunsOut(t *testing.T) {
	tree := &fakeTree{budget: 3, dirs: 1, files: map[string]string{
		"a.py": "a@x.com", "b.py": "b@x.com", "c.py": "c@x.com",
	}}
	out, err := ScanRemote(context.Background(), tree, RemoteConfig{Workers: 4}, emailSet(t))
	require.NoError(t, err)
	require.Len(t, out.Vulnerabilities, 2)
	assert.Equal(t, "a.py", out.Vulnerabilities[0].File)
	assert.Equal(t, "b.py", out.Vulnerabilities[1].File)
	assert.Equal(t, 0, *out.Remaining)
}

func TestScanRemote_WalkerErrorsPropagate(t *testing.T) {
	rl := &errs.RateLimitError{Reset: time.Unix(1700000000, 0)}
	tree := &fakeTree{walkErr: rl}
	_, err := ScanRemote(context.Background(), tree, RemoteConfig{}, emailSet(t))
	var got *errs.RateLimitError
	require.True(t, errors.As(err, &got))
	assert.Same(t, rl, got)

	tree = &fakeTree{walkErr: errs.Wrap(errs.ErrNotFound, nil, "repository o/r")}
	_, err = ScanRemote(context.Background(), tree, RemoteConfig{}, emailSet(t))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestScanRemote_TimeoutDiscardsPartialResults(t *testing.T) {
	tree := &fakeTree{budget: 10, files: map[string]string{"a.py": "a@x.com"}, block: true}
	out, err := ScanRemote(context.Background(), tree, RemoteConfig{Timeout: 20 * time.Millisecond}, emailSet(t))
	require.ErrorIs(t, err, errs.ErrTimeout)
	assert.Nil(t, out.Remaining)
	assert.Nil(t, out.Vulnerabilities)
}
