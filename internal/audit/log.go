// Package audit keeps a JSONL history of scans. Records hold counts and file
// locations only; matched values are never written.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/redactyl/piiscan/internal/git"
	"github.com/redactyl/piiscan/internal/types"
)

const maxRecordBytes = 1 << 20

type ScanRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	ScanID         string         `json:"scan_id"`
	Source         string         `json:"source"` // "local" or "github"
	Target         string         `json:"target"`
	Repo           string         `json:"repo,omitempty"`
	Commit         string         `json:"commit,omitempty"`
	Branch         string         `json:"branch,omitempty"`
	TotalMatches   int            `json:"total_matches"`
	NewMatches     int            `json:"new_matches"`
	BaselinedCount int            `json:"baselined_count"`
	CategoryCounts map[string]int `json:"category_counts"`
	FilesScanned   int            `json:"files_scanned"`
	FilesSkipped   int            `json:"files_skipped"`
	Remaining      *int           `json:"remaining,omitempty"`
	Duration       string         `json:"duration"`
	BaselineFile   string         `json:"baseline_file,omitempty"`
	TopFiles       []FileSummary  `json:"top_files,omitempty"`
}

type FileSummary struct {
	File        string `json:"file"`
	Category    string `json:"category"`
	Occurrences int    `json:"occurrences"`
}

type AuditLog struct {
	logPath string
}

// NewAuditLog stores the history inside .git when root is a work tree, next
// to the scanned files otherwise. Remote scans pass a directory of their own.
func NewAuditLog(root string) *AuditLog {
	gitDir := filepath.Join(root, ".git")
	logPath := filepath.Join(root, ".piiscan_audit.jsonl")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		logPath = filepath.Join(gitDir, "piiscan_audit.jsonl")
	}
	return &AuditLog{logPath: logPath}
}

// Path returns the history file location.
func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns records newest first. Corrupt lines are skipped.
func (a *AuditLog) LoadHistory() ([]ScanRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ScanRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var record ScanRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (a *AuditLog) LogScan(record ScanRecord) error {
	if record.ScanID == "" {
		record.ScanID = scanID(record)
	}
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}

	// owner-only: records name files that hold personal data
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// DeleteRecord removes the record at index, counted newest first as returned
// by LoadHistory. Unreadable lines are not carried over.
func (a *AuditLog) DeleteRecord(index int) error {
	records, err := a.LoadHistory()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("invalid index: %d", index)
	}
	records = append(records[:index], records[index+1:]...)

	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to rewrite audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for i := len(records) - 1; i >= 0; i-- {
		if err := encoder.Encode(records[i]); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	return nil
}

// WithRepo fills repository metadata for local scans of a git work tree.
func (r ScanRecord) WithRepo(root string) ScanRecord {
	r.Repo, r.Commit, r.Branch = git.RepoMetadata(root)
	return r
}

func scanID(r ScanRecord) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%s|%s|%d", r.Source, r.Target, r.Timestamp.UnixNano()))
	return fmt.Sprintf("scan_%d_%08x", r.Timestamp.Unix(), uint32(sum))
}

// CreateScanRecord summarizes one outcome. newResults is the baseline-filtered
// subset of out.Vulnerabilities.
func CreateScanRecord(source, target string, out types.ScanOutcome, newResults []types.MatchResult, baselineFile string) ScanRecord {
	counts := make(map[string]int)
	total := 0
	for _, r := range out.Vulnerabilities {
		counts[r.Category] += r.Count()
		total += r.Count()
	}
	newCount := 0
	for _, r := range newResults {
		newCount += r.Count()
	}

	top := make([]FileSummary, 0, len(newResults))
	for _, r := range newResults {
		top = append(top, FileSummary{File: r.File, Category: r.Category, Occurrences: r.Count()})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Occurrences > top[j].Occurrences })
	if len(top) > 10 {
		top = top[:10]
	}

	return ScanRecord{
		Timestamp:      time.Now(),
		Source:         source,
		Target:         target,
		TotalMatches:   total,
		NewMatches:     newCount,
		BaselinedCount: total - newCount,
		CategoryCounts: counts,
		FilesScanned:   out.FilesScanned,
		FilesSkipped:   out.FilesSkipped,
		Remaining:      out.Remaining,
		Duration:       out.Duration.String(),
		BaselineFile:   baselineFile,
		TopFiles:       top,
	}
}
