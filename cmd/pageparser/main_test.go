package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<html><head><title>Article</title></head><body>
<h1>  Markets   rally </h1>
<p class="by">Jane</p>
<a class="tag" href="/t/a">A</a><a class="tag" href="/t/b">B</a>
</body></html>`

// cli runs commands against one jsonfile store so state survives between
// run calls.
type cli struct {
	t          *testing.T
	dir        string
	configPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	return &cli{t: t, dir: t.TempDir()}
}

func (c *cli) writeConfig(yaml string) {
	c.t.Helper()
	c.configPath = filepath.Join(c.dir, "pageparser.yaml")
	require.NoError(c.t, os.WriteFile(c.configPath, []byte(yaml), 0o600))
}

func (c *cli) run(stdin string, args ...string) (code int, stdout, stderr string) {
	c.t.Helper()

	args = append(args,
		"--store-kind=jsonfile",
		"--store-dsn="+filepath.Join(c.dir, "configs.json"),
		"--log-level=error",
	)
	if c.configPath != "" {
		args = append(args, "--config="+c.configPath)
	}

	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut, http.DefaultClient)
	return code, out.String(), errOut.String()
}

func (c *cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(stdin, args...)
	require.Equal(c.t, 0, code, "args=%v stderr=%s", args, errOut)
	return out
}

func (c *cli) setArticleConfig(domain string) {
	c.t.Helper()
	c.mustRun("", "config", "set", domain,
		"--name", "Test",
		"--selector", "title=h1",
		"--selector", "author=p.by",
		"--selector", "tags=a.tag@href",
		"--selector", "missing=.nope",
	)
}

func decodeOutcome(t *testing.T, s string) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &got), "stdout=%s", s)
	return got
}

func TestRun_ParseStdin(t *testing.T) {
	t.Parallel()
	c := newCLI(t)
	c.setArticleConfig("news.test")

	out := c.mustRun(articleHTML, "parse", "--domain", "news.test", "--base-url", "https://news.test/a/1")

	got := decodeOutcome(t, out)
	require.Equal(t, true, got["success"])
	data := got["data"].(map[string]any)
	assert.Equal(t, "Markets rally", data["title"])
	assert.Equal(t, "Jane", data["author"])
	assert.Equal(t, []any{"/t/a", "/t/b"}, data["tags"])
	assert.Nil(t, data["missing"])

	meta := data["_meta"].(map[string]any)
	assert.Equal(t, "https://news.test/a/1", meta["url"])
	assert.Equal(t, "news.test", meta["domain"])
	assert.Equal(t, "Article", meta["title"])

	// Field order follows the configuration and _meta comes last.
	iTitle := strings.Index(out, `"title": "Markets rally"`)
	iTags := strings.Index(out, `"tags"`)
	iMeta := strings.Index(out, `"_meta"`)
	assert.True(t, iTitle < iTags && iTags < iMeta, out)
}

func TestRun_ParseNoConfig(t *testing.T) {
	t.Parallel()
	c := newCLI(t)

	code, out, _ := c.run(articleHTML, "parse", "--domain", "unknown.test")
	assert.Equal(t, 1, code)
	assert.JSONEq(t, `{"success":false,"error":"no configuration found for this site"}`, out)
}

func TestRun_ParseURL_SaveCheckSend(t *testing.T) {
	t.Parallel()

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, articleHTML)
	}))
	t.Cleanup(page.Close)

	var (
		mu       sync.Mutex
		received []map[string]any
	)
	sinkSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sinkSrv.Close)

	exists := false
	existsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": exists})
	}))
	t.Cleanup(existsSrv.Close)

	c := newCLI(t)
	c.writeConfig("sink:\n  endpoint: " + sinkSrv.URL + "\n  exists_url: " + existsSrv.URL + "\n")
	c.setArticleConfig("127.0.0.1")

	outDir := filepath.Join(c.dir, "results")
	url := page.URL + "/article?id=1"

	_, _, errOut := c.run("", "parse", "--url", url, "--save", "--out-dir", outDir, "--send", "--check")
	assert.Contains(t, errOut, "saved ")

	files, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "127.0.0.1_"), files[0].Name())

	mu.Lock()
	require.Len(t, received, 1)
	assert.Equal(t, "Markets rally", received[0]["title"])
	exists = true
	mu.Unlock()

	// Already collected: parse still prints, but nothing is sent.
	code, out, errOut := c.run("", "parse", "--url", url, "--send", "--check")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "page already collected: "+page.URL+"/article")
	assert.Equal(t, true, decodeOutcome(t, out)["success"])

	mu.Lock()
	assert.Len(t, received, 1)
	mu.Unlock()
}

func TestRun_ParseDir(t *testing.T) {
	t.Parallel()
	c := newCLI(t)
	c.setArticleConfig("news.test")

	pages := filepath.Join(c.dir, "pages")
	require.NoError(t, os.MkdirAll(pages, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pages, "b.html"), []byte(`<h1>Second</h1>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(pages, "a.html"), []byte(articleHTML), 0o600))

	out := c.mustRun("", "parse", "--dir", pages, "--domain", "news.test")

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Len(t, got, 2)
	assert.Equal(t, "Markets rally", got[0]["title"])
	assert.Equal(t, "Second", got[1]["title"])
}

func TestRun_Selector(t *testing.T) {
	t.Parallel()
	c := newCLI(t)

	out := c.mustRun(`<div id="x">  A  </div><div id="x">B</div>`, "selector", "div#x", "--text")
	assert.Equal(t, "A\n\nB\n\n", out)

	code, _, errOut := c.run(`<p>x</p>`, "selector", "p[[")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "debug selector")
}

func TestRun_ConfigLifecycle(t *testing.T) {
	t.Parallel()
	c := newCLI(t)
	c.setArticleConfig("news.test")

	// Merge keeps existing fields and appends new ones.
	out := c.mustRun("", "config", "set", "news.test", "--selector", "body=article")
	assert.Contains(t, out, `"body": "article"`)
	assert.Contains(t, out, `"title": "h1"`)

	out = c.mustRun("", "config", "list")
	assert.Contains(t, out, "news.test")
	assert.Contains(t, out, "5")

	exported := c.mustRun("", "config", "export", "--stdout")
	bundlePath := filepath.Join(c.dir, "bundle.json")
	require.NoError(t, os.WriteFile(bundlePath, []byte(exported), 0o600))

	out = c.mustRun("", "config", "delete", "news.test")
	assert.Equal(t, "deleted news.test\n", out)

	code, _, errOut := c.run("", "config", "get", "news.test")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")

	out = c.mustRun("", "config", "import", bundlePath)
	assert.Equal(t, "imported 1 configurations\n", out)

	out = c.mustRun("", "config", "get", "news.test")
	var site map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &site))
	assert.Equal(t, "Test", site["name"])

	exportDir := filepath.Join(c.dir, "exports")
	c.mustRun("", "config", "export", "news.test", "--out-dir", exportDir)
	_, err := os.Stat(filepath.Join(exportDir, "page-parser-config-news.test.json"))
	assert.NoError(t, err)
}

func TestRun_ConfigImportInvalid(t *testing.T) {
	t.Parallel()
	c := newCLI(t)

	code, _, errOut := c.run(`{"a.test":{"name":"A","selectors":{"t":"h1"}},"b.test":{"selectors":{}}}`, "config", "import", "-")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, errOut)

	out := c.mustRun("", "config", "export", "--stdout")
	assert.JSONEq(t, `{}`, out, "a failed import writes nothing")
}

func TestRun_ConfigSeed(t *testing.T) {
	t.Parallel()
	c := newCLI(t)

	assert.Equal(t, "seeded built-in configurations\n", c.mustRun("", "config", "seed"))
	assert.Equal(t, "store is not empty; nothing seeded\n", c.mustRun("", "config", "seed"))
	assert.Contains(t, c.mustRun("", "config", "list"), "www.bloomberg.com")
}

func TestRun_Exists(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"data":true}`)
	}))
	t.Cleanup(srv.Close)

	c := newCLI(t)
	c.writeConfig("sink:\n  exists_url: " + srv.URL + "\n")
	assert.Equal(t, "true\n", c.mustRun("", "exists", "https://a.test/x?y=1"))
}

func TestRun_Send(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	t.Cleanup(srv.Close)

	c := newCLI(t)
	c.writeConfig("sink:\n  endpoint: " + srv.URL + "\n")

	path := filepath.Join(c.dir, "result.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"T","_meta":{"url":"https://a.test/","domain":"a.test","title":"","timestamp":"2024-01-01T00:00:00.000Z"}}`), 0o600))

	out := c.mustRun("", "send", path)
	assert.Contains(t, out, "sent ")
	mu.Lock()
	assert.Equal(t, "T", got["title"])
	mu.Unlock()
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown_flag", args: []string{"parse", "--nope"}},
		{name: "unknown_command", args: []string{"frobnicate"}},
		{name: "dir_without_domain", args: []string{"parse", "--dir", "."}},
		{name: "check_without_url", args: []string{"parse", "--check"}},
		{name: "get_without_domain", args: []string{"config", "get"}},
		{name: "bad_selector_flag", args: []string{"config", "set", "a.test", "--selector", "nofield"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newCLI(t)
			code, _, _ := c.run("", tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestRun_BadConfigFile(t *testing.T) {
	t.Parallel()
	c := newCLI(t)
	c.writeConfig("store:\n  kinds: sqlite\n")

	code, _, errOut := c.run("", "config", "list")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "kinds")
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	code := run(context.Background(), []string{"version"}, strings.NewReader(""), &out, io.Discard, http.DefaultClient)
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out.String(), "pageparser "), out.String())
}
