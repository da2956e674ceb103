package pageparser

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingyjava/page-parser/internal/extracthtml"
	"github.com/lingyjava/page-parser/internal/siteconfig"
)

type mapLookup struct {
	sites map[string]*siteconfig.Site
	err   error
	calls []string
}

func (m *mapLookup) Get(_ context.Context, domain string) (*siteconfig.Site, error) {
	m.calls = append(m.calls, domain)
	if m.err != nil {
		return nil, m.err
	}
	return m.sites[domain], nil
}

type panicLookup struct{}

func (panicLookup) Get(context.Context, string) (*siteconfig.Site, error) {
	panic("storage exploded")
}

// spyDoc counts queries so tests can assert the engine never ran.
type spyDoc struct {
	queries int
}

func (d *spyDoc) QueryAll(string) ([]extracthtml.Element, error) {
	d.queries++
	return nil, nil
}

type testPage struct {
	url, title string
	doc        extracthtml.Document
}

func (p testPage) URL() string { return p.url }
func (p testPage) Title() string { return p.title }
func (p testPage) Document() extracthtml.Document { return p.doc }

func htmlPage(t *testing.T, url, html string) testPage {
	t.Helper()
	doc, err := extracthtml.NewDocumentFromString(html)
	require.NoError(t, err)
	return testPage{url: url, title: doc.Title(), doc: doc}
}

func newParser(t *testing.T, lookup ConfigLookup, now time.Time) *Parser {
	t.Helper()
	p, err := New(lookup, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return p
}

func bloombergSite() *siteconfig.Site {
	return &siteconfig.Site{
		Name: "Bloomberg",
		Selectors: siteconfig.Selectors{
			{Field: "title", Selector: "h1"},
			{Field: "author", Selector: ".byline"},
		},
	}
}

func TestParsePage_Success(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	lookup := &mapLookup{sites: map[string]*siteconfig.Site{"www.bloomberg.com": bloombergSite()}}
	p := newParser(t, lookup, now)

	page := htmlPage(t, "https://www.bloomberg.com/news/x?a=1",
		`<html><head><title>Story</title></head><body><h1> Big  News </h1></body></html>`)

	out := p.ParsePage(context.Background(), page)
	require.True(t, out.Success, out.Error)
	require.NotNil(t, out.Data)
	assert.Equal(t, []string{"www.bloomberg.com"}, lookup.calls)

	assert.Equal(t, []string{"title", "author"}, out.Data.Names())
	title, _ := out.Data.Get("title")
	assert.Equal(t, "Big News", title.Any())
	author, _ := out.Data.Get("author")
	assert.True(t, author.IsNull())

	require.NotNil(t, out.Data.Meta)
	assert.Equal(t, "https://www.bloomberg.com/news/x?a=1", out.Data.Meta.URL)
	assert.Equal(t, "www.bloomberg.com", out.Data.Meta.Domain)
	assert.Equal(t, "Story", out.Data.Meta.Title)
	assert.Equal(t, "2026-03-04T05:06:07.000Z", out.Data.Meta.Timestamp)
}

// TestParsePage_NoConfig: no configuration means a failure and the engine is
// never invoked.
func TestParsePage_NoConfig(t *testing.T) {
	t.Parallel()

	lookup := &mapLookup{sites: map[string]*siteconfig.Site{}}
	p := newParser(t, lookup, time.Now())
	doc := &spyDoc{}

	out := p.ParsePage(context.Background(), testPage{url: "https://unknown.example/", doc: doc})
	assert.False(t, out.Success)
	assert.Equal(t, NoConfigMessage, out.Error)
	assert.Nil(t, out.Data)
	assert.Zero(t, doc.queries)
}

func TestParsePage_LookupError(t *testing.T) {
	t.Parallel()

	p := newParser(t, &mapLookup{err: errors.New("db down")}, time.Now())
	doc := &spyDoc{}

	out := p.ParsePage(context.Background(), testPage{url: "https://a.com/", doc: doc})
	assert.False(t, out.Success)
	assert.Equal(t, "db down", out.Error)
	assert.Zero(t, doc.queries)
}

func TestParsePage_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	p := newParser(t, panicLookup{}, time.Now())

	var out Outcome
	require.NotPanics(t, func() {
		out = p.ParsePage(context.Background(), testPage{url: "https://a.com/"})
	})
	assert.False(t, out.Success)
	assert.Equal(t, "storage exploded", out.Error)
}

func TestParsePage_DomainOverride(t *testing.T) {
	t.Parallel()

	lookup := &mapLookup{sites: map[string]*siteconfig.Site{"www.bloomberg.com": bloombergSite()}}
	p := newParser(t, lookup, time.Now())
	page := htmlPage(t, "file:///tmp/saved.html", `<h1>Saved</h1>`)

	out := p.ParsePage(context.Background(), page, WithDomain(" www.bloomberg.com "))
	require.True(t, out.Success, out.Error)
	assert.Equal(t, "www.bloomberg.com", out.Data.Meta.Domain)
	assert.Equal(t, "file:///tmp/saved.html", out.Data.Meta.URL)
}

func TestParsePage_NoHostname(t *testing.T) {
	t.Parallel()

	lookup := &mapLookup{}
	p := newParser(t, lookup, time.Now())

	out := p.ParsePage(context.Background(), testPage{url: "file:///tmp/x.html", doc: &spyDoc{}})
	assert.Equal(t, NoConfigMessage, out.Error)
	assert.Empty(t, lookup.calls)
}

func TestOutcome_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Failed(NoConfigMessage))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"no configuration found for this site"}`, string(b))

	res := &extracthtml.Result{Fields: []extracthtml.Field{{Name: "t", Value: extracthtml.String("x")}}}
	b, err = json.Marshal(Succeeded(res))
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"data":{"t":"x"}}`, string(b))
}

func TestStatus(t *testing.T) {
	t.Parallel()

	p := newParser(t, &mapLookup{sites: map[string]*siteconfig.Site{"a.com": bloombergSite()}}, time.Now())

	ok, err := p.Status(context.Background(), "a.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Status(context.Background(), "b.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Status(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://www.bloomberg.com/a?b=c": "www.bloomberg.com",
		"http://Example.com:8080/":        "Example.com",
		"file:///tmp/a.html":              "",
		"::not a url":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, DomainOf(in), in)
	}
}

func TestNew_NilLookup(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)
}
