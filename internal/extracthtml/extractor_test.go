package extracthtml

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/lingyjava/page-parser/internal/siteconfig"
)

func mustDoc(t *testing.T, html string) *HTMLDocument {
	t.Helper()
	doc, err := NewDocumentFromString(html)
	if err != nil {
		t.Fatalf("NewDocumentFromString: %v", err)
	}
	return doc
}

func site(entries ...siteconfig.Entry) *siteconfig.Site {
	return &siteconfig.Site{Name: "test", Selectors: entries}
}

// TestExtract_SingleMatchIsString covers the plain-string fold together with
// whitespace collapsing.
func TestExtract_SingleMatchIsString(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<h1>Hello  World</h1>`)
	res := Extract(doc, site(siteconfig.Entry{Field: "title", Selector: "h1"}))

	v, ok := res.Get("title")
	if !ok {
		t.Fatalf("title missing: %#v", res)
	}
	if v.Kind() != KindString {
		t.Fatalf("expected a plain string, got kind %v", v.Kind())
	}
	if s, _ := v.Str(); s != "Hello World" {
		t.Fatalf("title: want %q got %q", "Hello World", s)
	}
}

// TestExtract_AttrManyMatchesIsList covers attribute mode and the list fold
// in document order.
func TestExtract_AttrManyMatchesIsList(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<a href="/x">X</a><p><a href="/y">Y</a></p>`)
	res := Extract(doc, site(siteconfig.Entry{Field: "link", Selector: "a@href"}))

	v, _ := res.Get("link")
	if v.Kind() != KindList {
		t.Fatalf("expected a list, got kind %v", v.Kind())
	}
	if got := v.Strings(); !reflect.DeepEqual(got, []string{"/x", "/y"}) {
		t.Fatalf("link: got %#v", got)
	}
}

// TestExtract_NoMatchIsNull verifies a missing element is a null value, not
// an omitted field.
func TestExtract_NoMatchIsNull(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<p>nothing here</p>`)
	res := Extract(doc, site(siteconfig.Entry{Field: "missing", Selector: ".nope"}))

	if len(res.Fields) != 1 {
		t.Fatalf("want 1 field, got %d", len(res.Fields))
	}
	if v, _ := res.Get("missing"); !v.IsNull() {
		t.Fatalf("missing: want null, got %#v", v.Any())
	}
}

// TestExtract_MissingAttributeIsEmptyString verifies matched elements
// without the attribute contribute "".
func TestExtract_MissingAttributeIsEmptyString(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<img src="a.png"><img>`)
	res := Extract(doc, site(siteconfig.Entry{Field: "img", Selector: "img@src"}))

	v, _ := res.Get("img")
	if got := v.Strings(); !reflect.DeepEqual(got, []string{"a.png", ""}) {
		t.Fatalf("img: got %#v", got)
	}
}

// TestExtract_AttrNameIsCaseInsensitive mirrors DOM getAttribute.
func TestExtract_AttrNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<a HREF="/x">X</a>`)
	res := Extract(doc, site(siteconfig.Entry{Field: "link", Selector: "a@HREF"}))

	if v, _ := res.Get("link"); v.Any() != "/x" {
		t.Fatalf("link: got %#v", v.Any())
	}
}

// TestExtract_BadSelectorIsolated verifies a malformed selector nulls only
// its own field.
func TestExtract_BadSelectorIsolated(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<h1>T</h1><p>P</p>`)
	res := Extract(doc, site(
		siteconfig.Entry{Field: "title", Selector: "h1"},
		siteconfig.Entry{Field: "broken", Selector: "div[["},
		siteconfig.Entry{Field: "para", Selector: "p"},
	))

	if got := res.Names(); !reflect.DeepEqual(got, []string{"title", "broken", "para"}) {
		t.Fatalf("field order: got %#v", got)
	}
	if v, _ := res.Get("broken"); !v.IsNull() {
		t.Fatalf("broken: want null, got %#v", v.Any())
	}
	if v, _ := res.Get("para"); v.Any() != "P" {
		t.Fatalf("para: got %#v", v.Any())
	}
}

// TestExtract_StripsScriptAndStyle verifies script/style descendants never
// reach the text and that the live document keeps them.
func TestExtract_StripsScriptAndStyle(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<div id="c">Hello<script>var x = 1;</script>
		<style>.a{color:red}</style>
		<b>World</b></div>`)
	res := Extract(doc, site(siteconfig.Entry{Field: "c", Selector: "#c"}))

	if v, _ := res.Get("c"); v.Any() != "Hello World" {
		t.Fatalf("c: got %#v", v.Any())
	}

	scripts, err := doc.QueryAll("#c script")
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	if len(scripts) != 1 {
		t.Fatalf("live document was modified: %d scripts left", len(scripts))
	}
}

// TestExtract_NilSite returns an empty result.
func TestExtract_NilSite(t *testing.T) {
	t.Parallel()

	res := Extract(mustDoc(t, `<p>x</p>`), nil)
	if len(res.Fields) != 0 {
		t.Fatalf("want no fields, got %#v", res.Fields)
	}
}

type panicDoc struct{}

func (panicDoc) QueryAll(string) ([]Element, error) { panic("dom exploded") }

type errDoc struct{}

func (errDoc) QueryAll(string) ([]Element, error) { return nil, errors.New("dom unavailable") }

// TestExtract_DocumentFailuresAreRecovered verifies that neither a DOM error
// nor a panic escapes Extract.
func TestExtract_DocumentFailuresAreRecovered(t *testing.T) {
	t.Parallel()

	for _, doc := range []Document{panicDoc{}, errDoc{}} {
		res := Extract(doc, site(
			siteconfig.Entry{Field: "a", Selector: "h1"},
			siteconfig.Entry{Field: "b", Selector: "p"},
		))
		if len(res.Fields) != 2 {
			t.Fatalf("%T: want 2 fields, got %d", doc, len(res.Fields))
		}
		for _, f := range res.Fields {
			if !f.Value.IsNull() {
				t.Fatalf("%T: %s want null, got %#v", doc, f.Name, f.Value.Any())
			}
		}
	}
}

// TestExtract_ManyMatchesCount checks N>1 matches give exactly N strings.
func TestExtract_ManyMatchesCount(t *testing.T) {
	t.Parallel()

	for n := 2; n <= 6; n++ {
		html := strings.Repeat("<li> item </li>", n)
		res := Extract(mustDoc(t, "<ul>"+html+"</ul>"), site(siteconfig.Entry{Field: "items", Selector: "li"}))
		v, _ := res.Get("items")
		if got := len(v.Strings()); got != n || v.Kind() != KindList {
			t.Fatalf("n=%d: got %d strings, kind %v", n, got, v.Kind())
		}
	}
}
