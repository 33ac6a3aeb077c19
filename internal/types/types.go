package types

import "time"

// FileDescriptor identifies one file produced by a walker. Path is relative to
// the scanned root and always uses forward slashes. Content stays nil until a
// fetcher materializes it.
type FileDescriptor struct {
	Path      string `json:"path"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	SHA       string `json:"sha,omitempty"` // blob id for remote files
	Content   []byte `json:"-"`
}

// MatchResult holds every occurrence of one category's pattern within one
// file, in order of appearance.
type MatchResult struct {
	Category    string   `json:"category"`
	File        string   `json:"file"`
	Occurrences []string `json:"occurrences"`
}

// Count returns the number of occurrences recorded.
func (m MatchResult) Count() int { return len(m.Occurrences) }

// ScanOutcome is the aggregated result of one scan. Remaining is only set for
// remote scans and reports the API budget left afterwards.
type ScanOutcome struct {
	Vulnerabilities []MatchResult `json:"vulnerabilities"`
	Remaining       *int          `json:"remaining"`
	FilesScanned    int           `json:"filesScanned"`
	FilesSkipped    int           `json:"filesSkipped"`
	Duration        time.Duration `json:"-"`
}

// LanguageStats maps a language name to its share of the scanned bytes, in
// percent.
type LanguageStats map[string]float64
