package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/redactyl/piiscan/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID    string         `json:"ruleId"`
	RuleIndex int            `json:"ruleIndex"`
	Level     string         `json:"level"`
	Message   sarifMessage   `json:"message"`
	Locations []sarifLoc     `json:"locations"`
	Props     map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt `json:"artifactLocation"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

// WriteSARIF writes the outcome as SARIF 2.1.0: one rule per category, one
// result per file and category.
func WriteSARIF(w io.Writer, out types.ScanOutcome, version string) error {
	if version == "" {
		version = "dev"
	}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "piiscan", Version: version}},
		Results: []sarifResult{},
	}
	ruleIdx := map[string]int{}
	for _, r := range out.Vulnerabilities {
		idx, ok := ruleIdx[r.Category]
		if !ok {
			idx = len(run.Tool.Driver.Rules)
			ruleIdx[r.Category] = idx
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:               r.Category,
				ShortDescription: sarifMessage{Text: "Text matching the " + r.Category + " pattern"},
			})
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    r.Category,
			RuleIndex: idx,
			Level:     "warning",
			Message:   sarifMessage{Text: fmt.Sprintf("%d %s occurrence(s)", r.Count(), r.Category)},
			Locations: []sarifLoc{{PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: r.File}}}},
			Props:     map[string]any{"occurrences": r.Count()},
		})
	}
	props := map[string]any{"filesScanned": out.FilesScanned, "filesSkipped": out.FilesSkipped}
	if out.Remaining != nil {
		props["remaining"] = *out.Remaining
	}
	run.Properties = props

	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
