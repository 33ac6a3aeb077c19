package core_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redactyl/piiscan/pkg/core"
)

// ExampleScanLocal scans the current directory for the built-in PII patterns.
func ExampleScanLocal() {
	cfg := core.LocalConfig{
		Root:            ".",
		Extensions:      core.Extensions(".go", ".py"),
		MaxBytes:        1 << 20,
		DefaultExcludes: true,
		Timeout:         30 * time.Second,
	}
	out, err := core.ScanLocal(context.Background(), cfg, core.DefaultPatterns())
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed (%s): %v\n", core.ErrorCode(err), err)
		return
	}
	fmt.Printf("Scanned %d files, %d results\n", out.FilesScanned, len(out.Vulnerabilities))
	_ = core.MarshalOutcome(os.Stdout, out)
}

// ExampleScanGitHub scans a hosted repository with a small API budget.
func ExampleScanGitHub() {
	set, err := core.CompilePatterns(core.Pairs{
		{Category: "email", Source: `[\w.]+@[\w.]+`},
	})
	if err != nil {
		panic(err)
	}
	gh := core.GitHub{Token: os.Getenv("GITHUB_TOKEN"), Budget: 50}
	out, err := core.ScanGitHub(context.Background(), gh, core.RemoteConfig{Owner: "acme", Repo: "widgets"}, set)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Printf("%d results, %d API calls left\n", len(out.Vulnerabilities), *out.Remaining)
}
