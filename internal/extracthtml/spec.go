package extracthtml

import (
	"regexp"
	"strings"
)

// reAttrSuffix splits "path@attr". The greedy path anchors the split at the
// last '@' whose suffix is made only of word characters.
var reAttrSuffix = regexp.MustCompile(`^(.+)@(\w+)$`)

// Spec is a decoded selector string.
type Spec struct {
	// Path is the CSS selector, trimmed.
	Path string

	// Attr is the attribute to read. Empty means text extraction.
	Attr string
}

// ParseSpec decodes "path@attr" into (path, attr). Any string that does not
// end in '@' followed by word characters is a path alone.
func ParseSpec(raw string) Spec {
	if m := reAttrSuffix.FindStringSubmatch(raw); m != nil {
		return Spec{Path: strings.TrimSpace(m[1]), Attr: m[2]}
	}
	return Spec{Path: strings.TrimSpace(raw)}
}

// HasAttr reports whether the spec extracts an attribute value.
func (s Spec) HasAttr() bool { return s.Attr != "" }

// String re-encodes the spec.
func (s Spec) String() string {
	if s.Attr == "" {
		return s.Path
	}
	return s.Path + "@" + s.Attr
}
