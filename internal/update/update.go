// Package update checks GitHub for a newer piiscan release and caches the
// answer for a day.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blang/semver/v4"

	"github.com/redactyl/piiscan/internal/config"
	"github.com/redactyl/piiscan/internal/remote"
)

const (
	Owner         = "redactyl"
	Repo          = "piiscan"
	cacheFileName = "update.json"
	cacheTTL      = 24 * time.Hour
)

type cache struct {
	LastChecked time.Time `json:"last_checked"`
	Latest      string    `json:"latest"`
}

// Releases is the subset of remote.Client used here.
type Releases interface {
	LatestRelease(ctx context.Context, owner, repo string) (string, error)
}

var _ Releases = (*remote.Client)(nil)

// Checker compares the running version against the latest release.
type Checker struct {
	Releases Releases
	// CacheDir defaults to config.GlobalDir().
	CacheDir string
	Now      func() time.Time
}

func (c Checker) dir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return config.GlobalDir()
}

func (c Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Checker) loadCache() (cache, error) {
	var ca cache
	dir := c.dir()
	if dir == "" {
		return ca, errors.New("no config dir")
	}
	b, err := os.ReadFile(filepath.Join(dir, cacheFileName))
	if err != nil {
		return ca, err
	}
	_ = json.Unmarshal(b, &ca)
	return ca, nil
}

func (c Checker) saveCache(ca cache) {
	dir := c.dir()
	if dir == "" {
		return
	}
	_ = os.MkdirAll(dir, 0755)
	b, _ := json.MarshalIndent(ca, "", "  ")
	_ = os.WriteFile(filepath.Join(dir, cacheFileName), b, 0644)
}

// Check returns (latest, isNewer, error). It is a no-op in CI or when
// noNetwork is set; lookup failures are not reported as errors.
func (c Checker) Check(ctx context.Context, current string, noNetwork bool) (string, bool, error) {
	if os.Getenv("CI") != "" || noNetwork {
		return "", false, nil
	}
	current = normalize(current)
	ca, _ := c.loadCache()
	latest := ca.Latest
	if c.now().Sub(ca.LastChecked) > cacheTTL || latest == "" {
		if c.Releases != nil {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			v, err := c.Releases.LatestRelease(ctx, Owner, Repo)
			cancel()
			if err == nil {
				latest = normalize(v)
				c.saveCache(cache{LastChecked: c.now(), Latest: latest})
			}
		}
	}
	if latest == "" || current == "" {
		return latest, false, nil
	}
	return latest, compare(latest, current) > 0, nil
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// compare orders semantic versions; unparsable input compares equal so that
// dev builds never nag.
func compare(a, b string) int {
	va, err := semver.ParseTolerant(a)
	if err != nil {
		return 0
	}
	vb, err := semver.ParseTolerant(b)
	if err != nil {
		return 0
	}
	return va.Compare(vb)
}
