package siteconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Bundle maps domain → configuration. It is the shape of the store as a
// whole and of every export/import file.
type Bundle map[string]*Site

// Domains returns the bundle's domains sorted.
func (b Bundle) Domains() []string {
	out := make([]string, 0, len(b))
	for d := range b {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Validate checks every entry and reports all problems, prefixed by domain.
func (b Bundle) Validate() error {
	var errs []error
	for _, d := range b.Domains() {
		if strings.TrimSpace(d) == "" {
			errs = append(errs, errors.New("empty domain key"))
			continue
		}
		if err := b[d].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
		}
	}
	return errors.Join(errs...)
}

// DecodeBundle reads an import file.
//
// Only structural checks happen here: the root must be an object, every value
// must be an object with a "selectors" object. Semantic validation is left to
// Bundle.Validate so callers can report both kinds separately.
func DecodeBundle(r io.Reader) (Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var root map[string]json.RawMessage
	if !isJSONObject(data) {
		return nil, errors.New("bundle root must be an object of domain: configuration")
	}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}

	out := make(Bundle, len(root))
	for domain, raw := range root {
		if !isJSONObject(raw) {
			return nil, fmt.Errorf("configuration %s is not an object", domain)
		}
		var shape struct {
			Selectors json.RawMessage `json:"selectors"`
		}
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("configuration %s: %w", domain, err)
		}
		if !isJSONObject(shape.Selectors) {
			return nil, fmt.Errorf("configuration %s is missing the selectors object", domain)
		}

		var site Site
		if err := json.Unmarshal(raw, &site); err != nil {
			return nil, fmt.Errorf("configuration %s: %w", domain, err)
		}
		out[domain] = &site
	}
	return out, nil
}

// EncodeBundle writes b as 2-space indented JSON with domains sorted.
func EncodeBundle(w io.Writer, b Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if b == nil {
		b = Bundle{}
	}
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return nil
}

// ExportFileName is the file name used when exporting every configuration.
func ExportFileName(now time.Time) string {
	return "page-parser-configs-" + now.Format("20060102") + ".json"
}

// SingleExportFileName is the file name used when exporting one domain.
func SingleExportFileName(domain string) string {
	return "page-parser-config-" + domain + ".json"
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
