// Package pageparser runs one extraction against one page: resolve the
// page's domain, look up its configuration, apply the selector engine and
// wrap the record in an Outcome.
package pageparser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/extracthtml"
	"github.com/lingyjava/page-parser/internal/metrics"
	"github.com/lingyjava/page-parser/internal/siteconfig"
)

// NoConfigMessage is the failure reason when the page's domain has no
// configuration.
const NoConfigMessage = "no configuration found for this site"

// Page is a loaded document plus its location.
type Page interface {
	URL() string
	Title() string
	Document() extracthtml.Document
}

// ConfigLookup resolves a domain to its configuration. It returns (nil, nil)
// when the domain has none.
type ConfigLookup interface {
	Get(ctx context.Context, domain string) (*siteconfig.Site, error)
}

// Parser is safe for concurrent use.
type Parser struct {
	store  ConfigLookup
	logger *zap.Logger
	now    func() time.Time
	node   *snowflake.Node
}

// Option configures a Parser.
type Option func(*Parser)

func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the clock used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithNode sets the snowflake node that issues request ids.
func WithNode(n *snowflake.Node) Option {
	return func(p *Parser) {
		if n != nil {
			p.node = n
		}
	}
}

// New returns a Parser backed by store.
func New(store ConfigLookup, opts ...Option) (*Parser, error) {
	if store == nil {
		return nil, fmt.Errorf("pageparser: nil config lookup")
	}
	p := &Parser{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.node == nil {
		n, err := snowflake.NewNode(1)
		if err != nil {
			return nil, fmt.Errorf("pageparser: snowflake node: %w", err)
		}
		p.node = n
	}
	return p, nil
}

// ParseOption adjusts a single ParsePage call.
type ParseOption func(*parseOptions)

type parseOptions struct {
	domain string
}

// WithDomain overrides the domain derived from the page URL. File and stdin
// sources have no meaningful hostname.
func WithDomain(domain string) ParseOption {
	return func(o *parseOptions) { o.domain = strings.TrimSpace(domain) }
}

// DomainOf returns the hostname of rawURL, or "" when it has none.
func DomainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ParsePage extracts page with the configuration of its domain.
//
// It never returns an error and never panics: a missing configuration, a
// lookup error or any fault during extraction becomes a failed Outcome. The
// config lookup is the only blocking step.
func (p *Parser) ParsePage(ctx context.Context, page Page, opts ...ParseOption) (out Outcome) {
	start := time.Now()
	reqID := p.node.Generate().String()

	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	domain := ""
	status := "error"
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Sprint(r))
			status = "error"
			p.logger.Error("parse panic", zap.String("request_id", reqID), zap.Any("panic", r))
		}

		labels := metrics.Labels{"status": status}
		metrics.IncCounter(metrics.ParseTotal, 1, labels)
		metrics.ObserveHistogram(metrics.ParseDurationSeconds, time.Since(start).Seconds(), labels)

		fields := 0
		if out.Data != nil {
			fields = len(out.Data.Fields)
		}
		p.logger.Info("parse",
			zap.String("request_id", reqID),
			zap.String("domain", domain),
			zap.String("status", status),
			zap.Int("fields", fields),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	if page == nil {
		return Failed("no page")
	}

	domain = o.domain
	if domain == "" {
		domain = DomainOf(page.URL())
	}
	if domain == "" {
		status = "no_config"
		return Failed(NoConfigMessage)
	}

	site, err := p.store.Get(ctx, domain)
	if err != nil {
		return Failed(err.Error())
	}
	if site == nil {
		status = "no_config"
		return Failed(NoConfigMessage)
	}

	res := extracthtml.Extract(page.Document(), site, extracthtml.WithLogger(p.logger))
	res.Meta = extracthtml.NewMeta(page.URL(), domain, page.Title(), p.now())

	status = "ok"
	return Succeeded(res)
}

// Status reports whether domain has a configuration.
func (p *Parser) Status(ctx context.Context, domain string) (bool, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return false, nil
	}
	site, err := p.store.Get(ctx, domain)
	if err != nil {
		return false, err
	}
	return site != nil, nil
}
