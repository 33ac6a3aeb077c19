package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnoreMatch(t *testing.T) {
	dir := t.TempDir()
	ig := filepath.Join(dir, FileName)
	content := "node_modules/\n*.pem\n# comment\n\nsecret.env\nfixtures/**/*.json\n"
	if err := os.WriteFile(ig, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(ig)
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		"node_modules/pkg/index.js":  true,
		"web/node_modules/x/a.js":    true,
		"certs/key.pem":              true,
		"secret.env":                 true,
		"fixtures/users/list.json":   true,
		"src/app.go":                 false,
		"src/node_modules_helper.go": false,
	}
	for p, want := range cases {
		if got := m.Match(p); got != want {
			t.Fatalf("Match(%q)=%v want %v", p, got, want)
		}
	}
}

func TestLoad_MissingFileIgnoresNothing(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), FileName))
	if err == nil {
		t.Fatal("expected error for missing ignore file")
	}
	if !m.Empty() || m.Match("anything.txt") {
		t.Fatal("expected empty matcher")
	}
}
