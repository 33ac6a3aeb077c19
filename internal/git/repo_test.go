package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestRepoMetadata(t *testing.T) {
	dir := t.TempDir()
	r, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"git@github.com:acme/widgets.git"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := r.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("init", &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "nested", "deeper")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	repo, commit, branch := RepoMetadata(sub)
	if repo != "acme/widgets" {
		t.Fatalf("expected acme/widgets, got %q", repo)
	}
	if commit != hash.String() {
		t.Fatalf("expected commit %s, got %q", hash, commit)
	}
	if branch == "" {
		t.Fatalf("expected non-empty branch")
	}
}

func TestRepoMetadata_NotARepo(t *testing.T) {
	repo, commit, branch := RepoMetadata(t.TempDir())
	if repo != "" || commit != "" || branch != "" {
		t.Fatalf("expected empty metadata, got %q %q %q", repo, commit, branch)
	}
}

func TestShortRepo(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widgets.git": "acme/widgets",
		"git@github.com:acme/widgets.git":     "acme/widgets",
		"https://github.com/acme/widgets/":    "acme/widgets",
		"https://gitlab.com/acme/widgets.git": "https://gitlab.com/acme/widgets",
	}
	for in, want := range cases {
		if got := ShortRepo(in); got != want {
			t.Errorf("ShortRepo(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitRepo(t *testing.T) {
	owner, name, ok := SplitRepo("acme/widgets")
	if !ok || owner != "acme" || name != "widgets" {
		t.Fatalf("got %q %q %v", owner, name, ok)
	}
	if _, _, ok := SplitRepo("https://github.com/acme/widgets"); !ok {
		t.Fatal("expected URL form to parse")
	}
	for _, bad := range []string{"", "acme", "acme/", "/widgets", "a/b/c"} {
		if _, _, ok := SplitRepo(bad); ok {
			t.Errorf("SplitRepo(%q) should fail", bad)
		}
	}
}
