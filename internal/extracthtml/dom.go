package extracthtml

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// ErrEmptySelector is returned when a query is issued with a blank selector.
var ErrEmptySelector = errors.New("empty selector")

// Document is the DOM query capability the engine needs.
//
// QueryAll returns matches in document order and must return an error, not
// an empty result, for a malformed selector.
type Document interface {
	QueryAll(selector string) ([]Element, error)
}

// Element is one matched node.
type Element interface {
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool)

	// Clone returns a detached deep copy of the element's subtree.
	Clone() Element

	// Text returns the concatenated text of all descendant text nodes.
	Text() string

	// RemoveMatching removes every descendant matching selector.
	RemoveMatching(selector string) error
}

// HTMLDocument is a Document backed by a parsed goquery document.
type HTMLDocument struct {
	doc *goquery.Document
}

// NewDocument parses HTML from r.
func NewDocument(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

// NewDocumentFromString parses an HTML string.
func NewDocumentFromString(html string) (*HTMLDocument, error) {
	return NewDocument(strings.NewReader(html))
}

// FromGoquery wraps an already parsed goquery document.
func FromGoquery(doc *goquery.Document) *HTMLDocument {
	return &HTMLDocument{doc: doc}
}

// QueryAll implements Document.
func (d *HTMLDocument) QueryAll(selector string) ([]Element, error) {
	return queryAll(d.doc.Selection, selector)
}

// Title returns the text of the first <title>, whitespace collapsed, the
// same value a browser reports as document.title.
func (d *HTMLDocument) Title() string {
	return NormalizeText(d.doc.Find("title").First().Text())
}

// Selection exposes the underlying goquery root for debug tooling.
func (d *HTMLDocument) Selection() *goquery.Selection {
	return d.doc.Selection
}

type htmlElement struct {
	sel *goquery.Selection
}

// Attr implements Element. HTML attribute names are case-insensitive and the
// parser stores them lowercased.
func (e *htmlElement) Attr(name string) (string, bool) {
	return e.sel.Attr(strings.ToLower(name))
}

func (e *htmlElement) Clone() Element {
	return &htmlElement{sel: e.sel.Clone()}
}

func (e *htmlElement) Text() string {
	return e.sel.Text()
}

func (e *htmlElement) RemoveMatching(selector string) error {
	m, err := compileSelector(selector)
	if err != nil {
		return err
	}
	e.sel.FindMatcher(m).Remove()
	return nil
}

func queryAll(root *goquery.Selection, selector string) ([]Element, error) {
	m, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}
	found := root.FindMatcher(m)

	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &htmlElement{sel: s})
	})
	return out, nil
}

// compileSelector compiles with cascadia directly: goquery's Find swallows
// parse errors and silently matches nothing.
func compileSelector(selector string) (goquery.Matcher, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, ErrEmptySelector
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return m, nil
}
