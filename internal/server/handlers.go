package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/redactyl/piiscan/internal/engine"
	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/language"
	"github.com/redactyl/piiscan/internal/patterns"
)

const maxBodyBytes = 1 << 20

// body is a request object decoded lazily so each field can be type checked
// on its own.
type body map[string]json.RawMessage

func readBody(r *http.Request) (body, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errs.Wrap(errs.ErrValidation, err, "request body")
	}
	var b body
	if err := json.Unmarshal(raw, &b); err != nil || b == nil {
		return nil, errs.Validation("body", "expected a JSON object")
	}
	return b, nil
}

// str returns a required, non-empty string field.
func (b body) str(name string) (string, error) {
	raw, ok := b[name]
	if !ok {
		return "", errs.Validation(name, "invalid or missing value in request body")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", errs.Validation(name, "invalid or missing value in request body")
	}
	return s, nil
}

// list returns a string array field. A missing optional field yields nil.
func (b body) list(name string, required bool) ([]string, error) {
	raw, ok := b[name]
	if !ok || isNull(raw) {
		if required {
			return nil, errs.Validation(name, "%s must be an array", name)
		}
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errs.Validation(name, "%s must be an array of strings", name)
	}
	return out, nil
}

// patternSet compiles the regexPairs object in document order.
func (b body) patternSet(name string) (*patterns.Set, error) {
	raw, ok := b[name]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, errs.Validation(name, "invalid or missing value in request body")
	}
	var pairs patterns.Pairs
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, errs.Wrap(errs.ErrValidation, err, name)
	}
	return patterns.Compile(pairs)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(r.Context(), s.cfg.Timeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) handleScanGitHub(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, err := b.str("owner")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	repo, err := b.str("repo")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	set, err := b.patternSet("regexPairs")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exts, err := b.list("fileExtensions", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	sess := s.cfg.GitHub.NewSession(s.cfg.Budget)
	out, err := engine.ScanRemote(ctx, sess, engine.RemoteConfig{
		Owner:      owner,
		Repo:       repo,
		Extensions: engine.NewExtensionSet(exts...),
		Workers:    s.cfg.Workers,
		Timeout:    s.cfg.Timeout,
		Logger:     s.log,
	}, set)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScanDirectory(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	root, err := b.str("directoryPath")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exts, err := b.list("extensionArray", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	set, err := b.patternSet("regexPairs")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	out, err := engine.ScanLocal(ctx, engine.LocalConfig{
		Root:            root,
		Extensions:      engine.NewExtensionSet(exts...),
		DefaultExcludes: s.cfg.DefaultExcludes,
		IgnoreFile:      true,
		Workers:         s.cfg.Workers,
		Timeout:         s.cfg.Timeout,
		Logger:          s.log,
	}, set)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnalyzeGitHub(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, err := b.str("owner")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	repo, err := b.str("repo")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	stats, err := language.AnalyzeRemote(ctx, s.cfg.GitHub, owner, repo)
	if err != nil {
		s.writeError(w, r, errs.Deadline(ctx, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAnalyzeLocal(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	root, err := b.str("directoryPath")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	stats, err := language.AnalyzeLocal(ctx, root, s.cfg.Table, s.log)
	if err != nil {
		s.writeError(w, r, errs.Deadline(ctx, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
