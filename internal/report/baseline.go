package report

import (
	"encoding/json"
	"fmt"
	"os"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/redactyl/piiscan/internal/types"
)

// Baseline records fingerprints of accepted occurrences. Raw values are never
// stored.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(f, &b); err != nil {
		return Baseline{Items: map[string]bool{}}, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

func SaveBaseline(path string, results []types.MatchResult) error {
	b := Baseline{Items: map[string]bool{}}
	for _, r := range results {
		for _, o := range r.Occurrences {
			b.Items[Fingerprint(r.File, r.Category, o)] = true
		}
	}
	return WriteBaseline(path, b)
}

// WriteBaseline stores b as indented JSON at path.
func WriteBaseline(path string, b Baseline) error {
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	buf, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// FilterNew drops occurrences already in base; results left without
// occurrences are dropped too.
func FilterNew(results []types.MatchResult, base Baseline) []types.MatchResult {
	out := []types.MatchResult{}
	for _, r := range results {
		var keep []string
		for _, o := range r.Occurrences {
			if !base.Items[Fingerprint(r.File, r.Category, o)] {
				keep = append(keep, o)
			}
		}
		if len(keep) > 0 {
			out = append(out, types.MatchResult{Category: r.Category, File: r.File, Occurrences: keep})
		}
	}
	return out
}

// Fingerprint hashes one occurrence with its location and category.
func Fingerprint(file, category, occurrence string) string {
	d := xxhash.New()
	_, _ = d.WriteString(file)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(category)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(occurrence)
	return fmt.Sprintf("%016x", d.Sum64())
}

// ShouldFail reports whether any result belongs to one of the given
// categories; an empty list means any result fails.
func ShouldFail(results []types.MatchResult, categories []string) bool {
	if len(categories) == 0 {
		return len(results) > 0
	}
	want := map[string]bool{}
	for _, c := range categories {
		want[c] = true
	}
	for _, r := range results {
		if want[r.Category] {
			return true
		}
	}
	return false
}
