package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/piiscan/internal/engine"
	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/patterns"
	"github.com/redactyl/piiscan/internal/types"
)

const rootListing = `[
  {"type":"file","name":"a.py","path":"a.py","size":16,"sha":"s-a"},
  {"type":"file","name":"README.md","path":"README.md","size":9,"sha":"s-readme"},
  {"type":"symlink","name":"link.py","path":"link.py","sha":"s-link"},
  {"type":"dir","name":"src","path":"src"},
  {"type":"dir","name":"docs","path":"docs"}
]`

const srcListing = `[
  {"type":"file","name":"b.py","path":"src/b.py","size":7,"sha":"s-b"},
  {"type":"submodule","name":"vendored","path":"src/vendored","sha":"s-sub"}
]`

const docsListing = `[{"type":"file","name":"c.py","path":"docs/c.py","size":4,"sha":"s-c"}]`

type fakeGitHub struct {
	mux   *http.ServeMux
	calls atomic.Int64
}

func newFakeGitHub() *fakeGitHub {
	f := &fakeGitHub{mux: http.NewServeMux()}
	f.mux.HandleFunc("GET /repos/o/r/contents/{$}", f.json(rootListing))
	f.mux.HandleFunc("GET /repos/o/r/contents/src", f.json(srcListing))
	f.mux.HandleFunc("GET /repos/o/r/contents/docs", f.json(docsListing))
	blobs := map[string]string{
		"s-a":      "contact: a@x.com",
		"s-b":      "b@y.org",
		"s-c":      "none",
		"s-readme": "r@x.com",
	}
	f.mux.HandleFunc("GET /repos/o/r/git/blobs/{sha}", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, ok := blobs[r.PathValue("sha")]
		if !ok {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	return f
}

func (f *fakeGitHub) json(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		f.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mux.ServeHTTP(w, r)
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestSessionWalk_ListsFilesDepthFirst(t *testing.T) {
	gh := newFakeGitHub()
	s := newTestClient(t, gh).NewSession(10)

	files, err := s.Walk(context.Background(), "o", "r", engine.NewExtensionSet(".py"))
	require.NoError(t, err)
	assert.Equal(t, []types.FileDescriptor{
		{Path: "a.py", Extension: ".py", Size: 16, SHA: "s-a"},
		{Path: "docs/c.py", Extension: ".py", Size: 4, SHA: "s-c"},
		{Path: "src/b.py", Extension: ".py", Size: 7, SHA: "s-b"},
	}, files)
	assert.Equal(t, 7, s.Remaining())
	assert.EqualValues(t, 3, gh.calls.Load())
}

func TestSessionWalk_BudgetStopsListing(t *testing.T) {
	gh := newFakeGitHub()
	s := newTestClient(t, gh).NewSession(1)

	files, err := s.Walk(context.Background(), "o", "r", nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, 0, s.Remaining())
	assert.EqualValues(t, 1, gh.calls.Load())
}

func TestScanRemote_BudgetOfOne(t *testing.T) {
	gh := newFakeGitHub()
	s := newTestClient(t, gh).NewSession(1)
	set := patterns.MustCompile(patterns.Pairs{{Category: "email", Source: `[\w.]+@[\w.]+`}})

	out, err := engine.ScanRemote(context.Background(), s, engine.RemoteConfig{Owner: "o", Repo: "r"}, set)
	require.NoError(t, err)
	assert.Empty(t, out.Vulnerabilities)
	require.NotNil(t, out.Remaining)
	assert.Equal(t, 0, *out.Remaining)
	assert.EqualValues(t, 1, gh.calls.Load())
}

func TestScanRemote_FetchesLazilyAndMatches(t *testing.T) {
	gh := newFakeGitHub()
	s := newTestClient(t, gh).NewSession(20)
	set := patterns.MustCompile(patterns.Pairs{{Category: "email", Source: `[\w.]+@[\w.]+`}})

	out, err := engine.ScanRemote(context.Background(), s, engine.RemoteConfig{
		Owner: "o", Repo: "r", Extensions: engine.NewExtensionSet("py"), Workers: 4,
	}, set)
	require.NoError(t, err)
	assert.Equal(t, []types.MatchResult{
		{Category: "email", File: "a.py", Occurrences: []string{"a@x.com"}},
		{Category: "email", File: "src/b.py", Occurrences: []string{"b@y.org"}},
	}, out.Vulnerabilities)
	assert.Equal(t, 20-3-3, *out.Remaining)
	assert.Equal(t, 3, out.FilesScanned)
}

func TestScanRemote_PartialWhenFetchBudgetRunsOut(t *testing.T) {
	gh := newFakeGitHub()
	s := newTestClient(t, gh).NewSession(4)
	set := patterns.MustCompile(patterns.Pairs{{Category: "email", Source: `[\w.]+@[\w.]+`}})

	out, err := engine.ScanRemote(context.Background(), s, engine.RemoteConfig{
		Owner: "o", Repo: "r", Extensions: engine.NewExtensionSet("py"), Workers: 4,
	}, set)
	require.NoError(t, err)
	require.Len(t, out.Vulnerabilities, 1)
	assert.Equal(t, "a.py", out.Vulnerabilities[0].File)
	assert.Equal(t, 0, *out.Remaining)
	assert.EqualValues(t, 4, gh.calls.Load())
}

func TestSessionWalk_NotFound(t *testing.T) {
	s := newTestClient(t, http.NotFoundHandler()).NewSession(5)
	_, err := s.Walk(context.Background(), "o", "missing", nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, errs.HTTPStatus(err))
}

func TestSessionWalk_RejectsEmptyNames(t *testing.T) {
	s := newTestClient(t, http.NotFoundHandler()).NewSession(5)
	_, err := s.Walk(context.Background(), "", "r", nil)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.Walk(context.Background(), "o", " ", nil)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func rateLimited(reset time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}
}

func TestSessionWalk_RateLimitedBeforeAnyData(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	s := newTestClient(t, rateLimited(reset)).NewSession(5)

	_, err := s.Walk(context.Background(), "o", "r", nil)
	require.ErrorIs(t, err, errs.ErrRateLimited)
	var rl *errs.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.True(t, rl.Reset.Equal(reset), "reset %v, want %v", rl.Reset, reset)
	assert.Equal(t, 0, s.Remaining())
}

func TestSessionWalk_RateLimitedAfterDataIsPartial(t *testing.T) {
	gh := newFakeGitHub()
	mux := http.NewServeMux()
	mux.Handle("GET /repos/o/r/contents/{$}", gh)
	mux.HandleFunc("GET /repos/o/r/contents/docs", rateLimited(time.Now().Add(time.Hour)))
	s := newTestClient(t, mux).NewSession(10)

	files, err := s.Walk(context.Background(), "o", "r", nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, 0, s.Remaining())
}

func TestSessionWalk_AbuseLimitCarriesRetryAfter(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"slow down","documentation_url":"https://developer.github.com/v3/#abuse-rate-limits"}`))
	})
	s := newTestClient(t, h).NewSession(5)

	_, err := s.Walk(context.Background(), "o", "r", nil)
	var rl *errs.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestSessionWalk_AdoptsLowerProviderQuota(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "2")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"file","path":"a.py","sha":"s-a"}]`))
	})
	s := newTestClient(t, h).NewSession(100)

	_, err := s.Walk(context.Background(), "o", "r", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Remaining())
}

func TestSessionFetch_MissingSHAReleasesUnit(t *testing.T) {
	s := newTestClient(t, http.NotFoundHandler()).NewSession(3)
	require.True(t, s.Reserve())
	_, err := s.Fetch(context.Background(), types.FileDescriptor{Path: "x.py"})
	require.Error(t, err)
	assert.Equal(t, 3, s.Remaining())
}

func TestSessionFetch_ExhaustedBudget(t *testing.T) {
	s := newTestClient(t, http.NotFoundHandler()).NewSession(1)
	require.True(t, s.Reserve())
	assert.False(t, s.Reserve())
	_, err := s.Fetch(context.Background(), types.FileDescriptor{Path: "x.py", SHA: "s"})
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Fetch(context.Background(), types.FileDescriptor{Path: "y.py", SHA: "s"})
	require.ErrorIs(t, err, errs.ErrBudgetExhausted)
}

// bigDirGitHub serves a directory whose contents listing stops at the API cap
// while its tree holds every entry.
func bigDirGitHub(files int) (*fakeGitHub, http.Handler) {
	f := &fakeGitHub{mux: http.NewServeMux()}
	f.mux.HandleFunc("GET /repos/o/r/contents/{$}", f.json(`[{"type":"dir","name":"big","path":"big","sha":"t-big"}]`))

	var contents, tree strings.Builder
	contents.WriteString("[")
	tree.WriteString(`{"sha":"t-big","truncated":false,"tree":[`)
	for i := 0; i < files; i++ {
		name := fmt.Sprintf("f%04d.txt", i)
		if i > 0 {
			tree.WriteString(",")
		}
		fmt.Fprintf(&tree, `{"path":%q,"mode":"100644","type":"blob","size":3,"sha":"b%d"}`, name, i)
		if i < contentsCap {
			if i > 0 {
				contents.WriteString(",")
			}
			fmt.Fprintf(&contents, `{"type":"file","name":%q,"path":"big/%s","size":3,"sha":"b%d"}`, name, name, i)
		}
	}
	tree.WriteString(`,{"path":"link.txt","mode":"120000","type":"blob","sha":"l1"}`)
	tree.WriteString(`,{"path":"sub","mode":"040000","type":"tree","sha":"t-sub"}]}`)
	contents.WriteString("]")

	f.mux.HandleFunc("GET /repos/o/r/contents/big", f.json(contents.String()))
	f.mux.HandleFunc("GET /repos/o/r/git/trees/t-big", f.json(tree.String()))
	f.mux.HandleFunc("GET /repos/o/r/contents/big/sub", f.json(`[{"type":"file","name":"deep.txt","path":"big/sub/deep.txt","size":1,"sha":"d"}]`))
	return f, f
}

func TestSessionWalk_RelistsCappedDirectoryFromTree(t *testing.T) {
	gh, h := bigDirGitHub(contentsCap + 5)
	s := newTestClient(t, h).NewSession(10)

	files, err := s.Walk(context.Background(), "o", "r", nil)
	require.NoError(t, err)
	require.Len(t, files, contentsCap+6)
	assert.Equal(t, "big/f0000.txt", files[0].Path)
	assert.Equal(t, fmt.Sprintf("big/f%04d.txt", contentsCap+4), files[contentsCap+4].Path)
	assert.Equal(t, "big/sub/deep.txt", files[len(files)-1].Path)
	assert.Equal(t, "b7", files[7].SHA)
	for _, fd := range files {
		assert.NotEqual(t, "big/link.txt", fd.Path)
	}
	// root, big, big's tree, big/sub
	assert.EqualValues(t, 4, gh.calls.Load())
	assert.Equal(t, 6, s.Remaining())
}

func TestSessionWalk_CappedDirectoryWithoutBudgetKeepsListing(t *testing.T) {
	gh, h := bigDirGitHub(contentsCap + 5)
	s := newTestClient(t, h).NewSession(2)

	files, err := s.Walk(context.Background(), "o", "r", nil)
	require.NoError(t, err)
	assert.Len(t, files, contentsCap)
	assert.EqualValues(t, 2, gh.calls.Load())
	assert.Equal(t, 0, s.Remaining())
}
