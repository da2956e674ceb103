// Package fetch turns a URL, a file or stdin into a parsed page: the
// document sources of the parser.
package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lingyjava/page-parser/internal/extracthtml"
)

// ErrUnsupportedPage is returned for URLs whose scheme cannot be parsed
// (browser-internal pages, about:, non-http schemes).
var ErrUnsupportedPage = errors.New("page not supported")

// HTMLPage is a loaded page. It satisfies pageparser.Page.
type HTMLPage struct {
	url   string
	title string
	doc   *extracthtml.HTMLDocument
}

// NewPage wraps doc. An empty title falls back to the document's <title>.
func NewPage(rawURL, title string, doc *extracthtml.HTMLDocument) *HTMLPage {
	if title == "" {
		title = doc.Title()
	}
	return &HTMLPage{url: rawURL, title: title, doc: doc}
}

func (p *HTMLPage) URL() string   { return p.url }
func (p *HTMLPage) Title() string { return p.title }

// Document returns the page as the engine's DOM capability.
func (p *HTMLPage) Document() extracthtml.Document { return p.doc }

// HTML returns the concrete goquery-backed document.
func (p *HTMLPage) HTML() *extracthtml.HTMLDocument { return p.doc }

// CheckSupported rejects URLs the parser cannot handle. Only http and https
// pages are supported.
func CheckSupported(rawURL string) error {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedPage, raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%w: %s has no host", ErrUnsupportedPage, raw)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPage, raw)
	}
}
