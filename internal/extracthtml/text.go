package extracthtml

import "strings"

// ignoredContent is removed from a cloned subtree before its text is read.
const ignoredContent = "script, style"

// NormalizeText trims s and collapses every internal whitespace run,
// newlines included, to one ASCII space. It is idempotent.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ElementText returns the normalized text of el without script and style
// content. It works on a clone; el is never modified.
func ElementText(el Element) (string, error) {
	clone := el.Clone()
	if err := clone.RemoveMatching(ignoredContent); err != nil {
		return "", err
	}
	return NormalizeText(clone.Text()), nil
}
