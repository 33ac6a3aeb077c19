// Package patterns holds the named, compiled text patterns a scan searches
// for. A Set is built once per scan request, fails fast on an invalid pattern
// and is read-only afterwards, so it can be shared across workers.
package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/redactyl/piiscan/internal/errs"
)

// Pair is one uncompiled category -> pattern source entry.
type Pair struct {
	Category string
	Source   string
}

// Pairs is an ordered list of category -> pattern entries as supplied by a
// caller. Decoding from YAML or JSON keeps document order.
type Pairs []Pair

// Pattern is a compiled pattern identified by its category name.
type Pattern struct {
	Category string
	Source   string
	re       *regexp.Regexp
}

// FindAll returns every non-empty match of p in s, in order of appearance.
func (p Pattern) FindAll(s string) []string {
	all := p.re.FindAllString(s, -1)
	out := all[:0]
	for _, m := range all {
		if m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Set is an immutable, ordered collection of compiled patterns with unique
// category names.
type Set struct {
	patterns []Pattern
	index    map[string]int
}

// Compile validates and compiles pairs in order. Empty sets, empty or
// duplicate category names and patterns that do not compile are rejected with
// errs.ErrValidation.
func Compile(pairs Pairs) (*Set, error) {
	if len(pairs) == 0 {
		return nil, errs.Validation("patterns", "at least one pattern is required")
	}
	s := &Set{
		patterns: make([]Pattern, 0, len(pairs)),
		index:    make(map[string]int, len(pairs)),
	}
	for _, p := range pairs {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			return nil, errs.Validation("patterns", "category name must not be empty")
		}
		if _, dup := s.index[name]; dup {
			return nil, errs.Validation("patterns", "duplicate category %q", name)
		}
		if p.Source == "" {
			return nil, errs.Validation("patterns", "pattern for %q is empty", name)
		}
		re, err := regexp.Compile(p.Source)
		if err != nil {
			return nil, errs.Wrap(errs.ErrValidation, err, fmt.Sprintf("patterns: category %q", name))
		}
		s.index[name] = len(s.patterns)
		s.patterns = append(s.patterns, Pattern{Category: name, Source: p.Source, re: re})
	}
	return s, nil
}

// FromMap compiles a map of category -> pattern. Go maps carry no order, so
// categories are sorted lexicographically.
func FromMap(m map[string]string) (*Set, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	pairs := make(Pairs, 0, len(names))
	for _, n := range names {
		pairs = append(pairs, Pair{Category: n, Source: m[n]})
	}
	return Compile(pairs)
}

// MustCompile is like Compile but panics on error. Intended for built-in sets.
func MustCompile(pairs Pairs) *Set {
	s, err := Compile(pairs)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of patterns.
func (s *Set) Len() int { return len(s.patterns) }

// Patterns returns the compiled patterns in set order.
func (s *Set) Patterns() []Pattern {
	out := make([]Pattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// Categories returns the category names in set order.
func (s *Set) Categories() []string {
	out := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		out[i] = p.Category
	}
	return out
}

// Lookup returns the pattern registered under category.
func (s *Set) Lookup(category string) (Pattern, bool) {
	i, ok := s.index[category]
	if !ok {
		return Pattern{}, false
	}
	return s.patterns[i], true
}

// Pairs returns the uncompiled form of the set, in order.
func (s *Set) Pairs() Pairs {
	out := make(Pairs, len(s.patterns))
	for i, p := range s.patterns {
		out[i] = Pair{Category: p.Category, Source: p.Source}
	}
	return out
}

// ParsePair parses the CLI form "category=pattern". Only the first '='
// separates the two, so patterns may contain '='.
func ParsePair(s string) (Pair, error) {
	name, src, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" || src == "" {
		return Pair{}, errs.Validation("pattern", "expected category=regex, got %q", s)
	}
	return Pair{Category: strings.TrimSpace(name), Source: src}, nil
}

// defaultPairs are common PII shapes: US SSN, card numbers, emails, US phone
// numbers, IPv4 addresses and long hex keys.
var defaultPairs = Pairs{
	{Category: "email", Source: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`},
	{Category: "phone", Source: `\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`},
	{Category: "ssn", Source: `\b\d{3}-\d{2}-\d{4}\b`},
	{Category: "credit_card", Source: `\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`},
	{Category: "ipv4", Source: `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`},
	{Category: "api_key", Source: `\b[a-fA-F0-9]{32,64}\b`},
}

// Default returns the built-in PII pattern set.
func Default() *Set { return MustCompile(defaultPairs) }
