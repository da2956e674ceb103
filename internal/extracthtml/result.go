package extracthtml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lingyjava/page-parser/internal/siteconfig"
)

// TimestampLayout is the ISO-8601 layout used for Meta.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Kind is the shape of a field value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindList
)

// Value is one field's extracted value: null, one string, or a list.
type Value struct {
	kind  Kind
	items []string
}

// Null is the value of a field that matched nothing or failed.
func Null() Value { return Value{} }

// String is the value of a field that matched exactly one element.
func String(s string) Value { return Value{kind: KindString, items: []string{s}} }

// List is the value of a field that matched several elements.
func List(items []string) Value {
	return Value{kind: KindList, items: append([]string(nil), items...)}
}

// fold maps per-element strings to a value: none is null, one is a plain
// string, more is a list in document order.
func fold(vals []string) Value {
	switch len(vals) {
	case 0:
		return Null()
	case 1:
		return String(vals[0])
	default:
		return List(vals)
	}
}

// Kind returns the value's shape.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the single string of a KindString value.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.items[0], true
}

// Strings returns every string in the value: nil for null, one element for
// a single string.
func (v Value) Strings() []string {
	return append([]string(nil), v.items...)
}

// Any returns nil, a string or a []string.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.items[0]
	case KindList:
		return v.Strings()
	default:
		return nil
	}
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if v.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	return marshalRaw(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Null()
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = List(items)
	default:
		return fmt.Errorf("field value must be null, a string or a list of strings, got %s", data)
	}
	return nil
}

// Field is one named entry of a Result.
type Field struct {
	Name  string
	Value Value
}

// Meta describes where and when a result was extracted.
type Meta struct {
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// NewMeta builds a Meta stamped with at in UTC.
func NewMeta(url, domain, title string, at time.Time) *Meta {
	return &Meta{
		URL:       url,
		Domain:    domain,
		Title:     title,
		Timestamp: at.UTC().Format(TimestampLayout),
	}
}

// Result is one extraction record: one field per configured selector, in
// configuration order, plus an optional metadata sidecar.
//
// It encodes as a single JSON object whose last key is "_meta".
type Result struct {
	Fields []Field
	Meta   *Meta
}

// Get returns the value of field name.
func (r *Result) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Names returns field names in order.
func (r *Result) Names() []string {
	out := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Domain returns the metadata domain, or "" without metadata.
func (r *Result) Domain() string {
	if r.Meta == nil {
		return ""
	}
	return r.Meta.Domain
}

func (r *Result) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeMember(&b, f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	if r.Meta != nil {
		if len(r.Fields) > 0 {
			b.WriteByte(',')
		}
		if err := writeMember(&b, siteconfig.MetaField, r.Meta); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeMember(b *bytes.Buffer, key string, v any) error {
	k, err := marshalRaw(key)
	if err != nil {
		return err
	}
	val, err := marshalRaw(v)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	b.Write(k)
	b.WriteByte(':')
	b.Write(val)
	return nil
}

// marshalRaw is json.Marshal without HTML escaping: extracted text is
// emitted as-is. The outer encoder must also disable escaping.
func marshalRaw(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("result must be a JSON object, got %v", tok)
	}

	out := Result{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		if key == siteconfig.MetaField {
			var m Meta
			if err := dec.Decode(&m); err != nil {
				return fmt.Errorf("%s: %w", siteconfig.MetaField, err)
			}
			out.Meta = &m
			continue
		}

		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		out.Fields = append(out.Fields, Field{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}
