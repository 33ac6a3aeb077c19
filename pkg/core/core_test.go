package core

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestScanLocal_Smoke(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "users.csv"), []byte("id,ssn\n1,123-45-6789\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := ScanLocal(context.Background(), LocalConfig{Root: dir}, DefaultPatterns())
	if err != nil {
		t.Fatalf("ScanLocal error: %v", err)
	}
	found := false
	for _, r := range out.Vulnerabilities {
		if r.Category == "ssn" && r.File == "users.csv" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ssn match, got %#v", out.Vulnerabilities)
	}
	if out.Remaining != nil {
		t.Fatal("local outcome must not carry a remaining budget")
	}
}

func TestCompilePatterns_Invalid(t *testing.T) {
	_, err := CompilePatterns(Pairs{{Category: "bad", Source: "("}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ErrorCode(err) != "INVALID_INPUT" {
		t.Fatalf("unexpected code %q", ErrorCode(err))
	}
}

func TestScanGitHub_AgainstFakeAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/contents/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"file","name":"a.py","path":"a.py","size":7,"sha":"s1"}]`))
	})
	mux.HandleFunc("GET /repos/o/r/git/blobs/s1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("a@x.com"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	set, err := CompilePatterns(Pairs{{Category: "email", Source: `[\w.]+@[\w.]+`}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := ScanGitHub(context.Background(), GitHub{BaseURL: srv.URL, Budget: 5},
		RemoteConfig{Owner: "o", Repo: "r", Extensions: Extensions(".py")}, set)
	if err != nil {
		t.Fatalf("ScanGitHub error: %v", err)
	}
	if len(out.Vulnerabilities) != 1 || out.Remaining == nil || *out.Remaining != 3 {
		t.Fatalf("unexpected outcome: %#v remaining=%v", out.Vulnerabilities, out.Remaining)
	}
}

func TestOutcomeJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := MarshalOutcome(&buf, Outcome{FilesScanned: 2}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"vulnerabilities": []`)) {
		t.Fatalf("expected empty array, got %s", buf.String())
	}
	out, err := UnmarshalOutcome(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if out.FilesScanned != 2 || out.Remaining != nil {
		t.Fatalf("unexpected decode: %#v", out)
	}
}
