package siteconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entry is one field rule: the output field name and its encoded selector
// string ("css path" or "css path@attribute").
type Entry struct {
	Field    string
	Selector string
}

// Selectors is an ordered field → selector mapping.
//
// It is encoded as a JSON object / YAML mapping. Decoding keeps the key order
// of the document, which is also the order fields appear in extraction
// results. A key repeated in the input keeps its first position and its last
// value.
type Selectors []Entry

// Len returns the number of entries.
func (s Selectors) Len() int { return len(s) }

// Get returns the selector configured for field.
func (s Selectors) Get(field string) (string, bool) {
	for _, e := range s {
		if e.Field == field {
			return e.Selector, true
		}
	}
	return "", false
}

// Set replaces the selector for field in place, or appends a new entry.
func (s *Selectors) Set(field, selector string) {
	for i := range *s {
		if (*s)[i].Field == field {
			(*s)[i].Selector = selector
			return
		}
	}
	*s = append(*s, Entry{Field: field, Selector: selector})
}

// Delete removes field. It reports whether the field existed.
func (s *Selectors) Delete(field string) bool {
	for i := range *s {
		if (*s)[i].Field == field {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// Fields returns the field names in order.
func (s Selectors) Fields() []string {
	out := make([]string, 0, len(s))
	for _, e := range s {
		out = append(out, e.Field)
	}
	return out
}

// MarshalJSON encodes the entries as one JSON object in entry order.
func (s Selectors) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(e.Field)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Selector)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of string values, keeping key order.
func (s *Selectors) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("selectors: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("selectors: expected object, got %v", tok)
	}

	out := Selectors{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("selectors: %w", err)
		}
		key, _ := tok.(string)

		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("selectors: field %q: %w", key, err)
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("selectors: %w", err)
	}

	*s = out
	return nil
}

// MarshalYAML encodes the entries as an ordered YAML mapping.
func (s Selectors) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range s {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Field},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Selector},
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping of scalars, keeping key order.
func (s *Selectors) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("selectors: line %d: expected mapping", value.Line)
	}
	out := Selectors{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("selectors: line %d: field %q must be a string", v.Line, k.Value)
		}
		out.Set(k.Value, v.Value)
	}
	*s = out
	return nil
}
