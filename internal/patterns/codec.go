package patterns

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/redactyl/piiscan/internal/errs"
)

// UnmarshalYAML decodes a mapping of category -> pattern, keeping key order.
func (p *Pairs) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return errs.Validation("patterns", "expected a mapping of category to pattern (line %d)", n.Line)
	}
	out := make(Pairs, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return errs.Validation("patterns", "pattern for %q must be a string (line %d)", k.Value, v.Line)
		}
		out = append(out, Pair{Category: k.Value, Source: v.Value})
	}
	*p = out
	return nil
}

// MarshalYAML encodes the pairs as an ordered mapping.
func (p Pairs) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, pair := range p {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: pair.Category},
			&yaml.Node{Kind: yaml.ScalarNode, Value: pair.Source, Style: yaml.SingleQuotedStyle},
		)
	}
	return n, nil
}

// UnmarshalJSON decodes an object of category -> pattern, keeping key order.
func (p *Pairs) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return errs.Wrap(errs.ErrValidation, err, "patterns")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errs.Validation("patterns", "expected an object of category to pattern")
	}
	out := Pairs{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return errs.Wrap(errs.ErrValidation, err, "patterns")
		}
		key, _ := kt.(string)
		var src string
		if err := dec.Decode(&src); err != nil {
			return errs.Validation("patterns", "pattern for %q must be a string", key)
		}
		out = append(out, Pair{Category: key, Source: src})
	}
	if _, err := dec.Token(); err != nil {
		return errs.Wrap(errs.ErrValidation, err, "patterns")
	}
	*p = out
	return nil
}

// MarshalJSON encodes the pairs as an object with keys in order.
func (p Pairs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(pair.Category)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(pair.Source)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%s:%s", k, v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
