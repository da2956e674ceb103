package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/extracthtml"
)

// Browser loads pages in headless Chrome and snapshots the rendered DOM.
// Scripts run in the browser; the snapshot handed to the parser is static.
type Browser struct {
	// Timeout bounds the whole load. If <= 0, no extra deadline is applied.
	Timeout time.Duration

	// Wait is slept after navigation so late scripts can settle.
	Wait time.Duration

	UserAgent string
	Logger    *zap.Logger

	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// Load navigates to rawURL and returns the rendered page. The page URL is
// the browser's final location and the title is document.title.
func (b *Browser) Load(ctx context.Context, rawURL string) (*HTMLPage, error) {
	if err := CheckSupported(rawURL); err != nil {
		return nil, err
	}
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	if b.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.UserAgent))
	}
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var location, title, html string
	tasks := []chromedp.Action{chromedp.Navigate(rawURL)}
	if b.Wait > 0 {
		tasks = append(tasks, chromedp.Sleep(b.Wait))
	}
	tasks = append(tasks,
		chromedp.Location(&location),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	start := time.Now()
	if err := chromedp.Run(browserCtx, tasks...); err != nil {
		logger.Warn("browser load failed", zap.String("url", rawURL), zap.Error(err))
		return nil, fmt.Errorf("browser load %s: %w", rawURL, err)
	}
	logger.Debug("browser loaded", zap.String("url", location), zap.Duration("duration", time.Since(start)))

	doc, err := extracthtml.NewDocumentFromString(html)
	if err != nil {
		return nil, err
	}
	if location == "" {
		location = rawURL
	}
	return NewPage(location, extracthtml.NormalizeText(title), doc), nil
}
