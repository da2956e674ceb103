package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/lingyjava/page-parser/internal/extracthtml"
	"github.com/lingyjava/page-parser/internal/metrics"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "page-parser/1.0"

// Input describes where HTML should come from. The first non-empty of URL
// and Path wins; otherwise Stdin is read.
type Input struct {
	// URL, if provided, is fetched via HTTP GET.
	URL string

	// Path is a local HTML file.
	Path string

	// Stdin is used when URL and Path are empty. If nil, stdin reads as empty.
	Stdin io.Reader

	// BaseURL is reported as the page URL for stdin input.
	BaseURL string
}

// Loader fetches or reads HTML with a consistent timeout policy.
type Loader struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

func WithUserAgent(ua string) LoaderOption {
	return func(l *Loader) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

func WithLogger(lg *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader creates a Loader. If client is nil, http.DefaultClient is used.
func NewLoader(client *http.Client, timeout time.Duration, opts ...LoaderOption) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	l := &Loader{
		client:    client,
		timeout:   timeout,
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the parsed page for input.
//
// Bodies are decoded to UTF-8 from the declared or sniffed charset. On
// non-2xx HTTP responses, Load returns an error that includes the status
// code and up to 4KB of the response body for debugging.
func (l *Loader) Load(ctx context.Context, input Input) (*HTMLPage, error) {
	switch {
	case strings.TrimSpace(input.URL) != "":
		return l.loadURL(ctx, strings.TrimSpace(input.URL))
	case input.Path != "":
		return l.loadFile(input.Path)
	default:
		r := input.Stdin
		if r == nil {
			r = strings.NewReader("")
		}
		doc, err := parseUTF8(r, "")
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return NewPage(input.BaseURL, "", doc), nil
	}
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (*HTMLPage, error) {
	if err := CheckSupported(rawURL); err != nil {
		return nil, err
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		metrics.ObserveHTTP("fetch", 0, time.Since(start), err)
		l.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveHTTP("fetch", resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	doc, err := parseUTF8(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Report the post-redirect location, as a browser would.
	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	l.logger.Debug("fetched", zap.String("url", final), zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return NewPage(final, "", doc), nil
}

func (l *Loader) loadFile(path string) (*HTMLPage, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := parseUTF8(f, "")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewPage("file://"+filepath.ToSlash(abs), "", doc), nil
}

// parseUTF8 decodes r to UTF-8 and parses it.
func parseUTF8(r io.Reader, contentType string) (*extracthtml.HTMLDocument, error) {
	br := bufio.NewReader(r)
	e := DetermineEncoding(br, contentType)
	return extracthtml.NewDocument(transform.NewReader(br, e.NewDecoder()))
}

// DetermineEncoding sniffs the encoding from the first 1KB and the
// Content-Type header. It falls back to UTF-8.
func DetermineEncoding(r *bufio.Reader, contentType string) encoding.Encoding {
	b, err := r.Peek(1024)
	if err != nil && len(b) == 0 {
		return unicode.UTF8
	}
	e, _, _ := charset.DetermineEncoding(b, contentType)
	return e
}
