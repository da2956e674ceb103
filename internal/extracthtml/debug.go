package extracthtml

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector prints either the outer HTML or the normalized text of
// every element matched by selector, each followed by a blank line. It is
// the "selector" debug command used while authoring configurations.
//
// selector may carry an "@attr" suffix, in which case the attribute value of
// each match is printed instead.
func DebugPrintSelector(w io.Writer, doc *HTMLDocument, selector string, textOnly bool) error {
	spec := ParseSpec(selector)
	m, err := compileSelector(spec.Path)
	if err != nil {
		return err
	}

	var printErr error
	doc.Selection().FindMatcher(m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var out string
		switch {
		case spec.HasAttr():
			out, _ = (&htmlElement{sel: s}).Attr(spec.Attr)
		case textOnly:
			out, printErr = ElementText(&htmlElement{sel: s})
		default:
			out, printErr = goquery.OuterHtml(s)
		}
		if printErr != nil {
			return false
		}
		_, printErr = fmt.Fprintf(w, "%s\n\n", out)
		return printErr == nil
	})
	return printErr
}
