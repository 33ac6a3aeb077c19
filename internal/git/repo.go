// Package git reads repository metadata for scan records. It opens the
// repository in-process with go-git, so no git binary is required.
package git

import (
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// RepoMetadata returns (repo, commit, branch) best-effort for the given root.
// The root may be any directory inside a work tree. Empty strings are
// returned on failure; branch is "HEAD" when detached.
func RepoMetadata(root string) (string, string, string) {
	r, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", ""
	}
	repo := ""
	if rem, err := r.Remote("origin"); err == nil {
		if urls := rem.Config().URLs; len(urls) > 0 {
			repo = ShortRepo(urls[0])
		}
	}
	commit, branch := "", ""
	if head, err := r.Head(); err == nil {
		commit = head.Hash().String()
		if head.Name().IsBranch() {
			branch = head.Name().Short()
		} else {
			branch = "HEAD"
		}
	}
	return repo, commit, branch
}

// ShortRepo reduces a remote URL to owner/name when it points at GitHub
// (https or scp-like ssh); other URLs are returned without a .git suffix.
func ShortRepo(url string) string {
	s := strings.TrimSuffix(strings.TrimSpace(url), "/")
	s = strings.TrimSuffix(s, ".git")
	if i := strings.Index(s, "github.com/"); i >= 0 {
		return s[i+len("github.com/"):]
	}
	if i := strings.Index(s, "github.com:"); i >= 0 {
		return s[i+len("github.com:"):]
	}
	return s
}

// SplitRepo parses "owner/name" as accepted by --repo, also taking full
// GitHub URLs.
func SplitRepo(s string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(ShortRepo(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}
