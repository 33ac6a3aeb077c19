package core

import (
	"encoding/json"
	"io"
)

// MarshalOutcome pretty-prints an outcome as JSON for humans or pipelines.
func MarshalOutcome(w io.Writer, out Outcome) error {
	if out.Vulnerabilities == nil {
		out.Vulnerabilities = []MatchResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// UnmarshalOutcome decodes outcome JSON, useful for ingestion tests.
func UnmarshalOutcome(r io.Reader) (Outcome, error) {
	var out Outcome
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return Outcome{}, err
	}
	return out, nil
}
