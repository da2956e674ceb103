package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lingyjava/page-parser/internal/siteconfig"
)

var (
	ErrEmptyDomain = errors.New("domain is empty")
	ErrNotFound    = errors.New("configuration not found")
)

// Store wraps a Backend and enforces the configuration rules on every
// mutator: nothing invalid reaches the backend.
type Store struct {
	b Backend
}

// NewStore wraps b.
func NewStore(b Backend) *Store {
	return &Store{b: b}
}

func normalizeDomain(domain string) string {
	return strings.TrimSpace(domain)
}

// Get returns the configuration of domain, or (nil, nil) when there is none.
func (s *Store) Get(ctx context.Context, domain string) (*siteconfig.Site, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return nil, nil
	}
	site, err := s.b.Get(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", domain, err)
	}
	return site, nil
}

// Save validates site and stores it under domain, replacing any previous
// configuration. An empty name defaults to the domain.
func (s *Store) Save(ctx context.Context, domain string, site *siteconfig.Site) error {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ErrEmptyDomain
	}
	if site == nil {
		return siteconfig.ErrNilSite
	}

	site = site.Clone()
	site.Normalize(domain)
	if err := site.Validate(); err != nil {
		return fmt.Errorf("%s: %w", domain, err)
	}
	if err := s.b.Put(ctx, domain, site); err != nil {
		return fmt.Errorf("save %s: %w", domain, err)
	}
	return nil
}

// Delete removes domain.
func (s *Store) Delete(ctx context.Context, domain string) error {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ErrEmptyDomain
	}
	if err := s.b.Delete(ctx, domain); err != nil {
		return fmt.Errorf("delete %s: %w", domain, err)
	}
	return nil
}

// All returns every configuration.
func (s *Store) All(ctx context.Context) (siteconfig.Bundle, error) {
	b, err := s.b.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	if b == nil {
		b = siteconfig.Bundle{}
	}
	return b, nil
}

// Import merges bundle into the store. Every entry is validated first; if
// any is invalid nothing is written. Imported domains overwrite existing
// ones, other domains are untouched. It returns the number of entries
// written.
func (s *Store) Import(ctx context.Context, bundle siteconfig.Bundle) (int, error) {
	clean := make(siteconfig.Bundle, len(bundle))
	for domain, site := range bundle {
		d := normalizeDomain(domain)
		if d == "" {
			return 0, ErrEmptyDomain
		}
		if site == nil {
			return 0, fmt.Errorf("%s: %w", d, siteconfig.ErrNilSite)
		}
		c := site.Clone()
		c.Normalize(d)
		clean[d] = c
	}
	if err := clean.Validate(); err != nil {
		return 0, fmt.Errorf("invalid import: %w", err)
	}

	if bp, ok := s.b.(BatchPutter); ok {
		if err := bp.PutAll(ctx, clean); err != nil {
			return 0, fmt.Errorf("import: %w", err)
		}
		return len(clean), nil
	}
	for _, d := range clean.Domains() {
		if err := s.b.Put(ctx, d, clean[d]); err != nil {
			return 0, fmt.Errorf("import %s: %w", d, err)
		}
	}
	return len(clean), nil
}

// Export returns the configurations of domains, or all of them when no
// domain is given. A requested domain that is absent is ErrNotFound.
func (s *Store) Export(ctx context.Context, domains ...string) (siteconfig.Bundle, error) {
	if len(domains) == 0 {
		return s.All(ctx)
	}
	out := make(siteconfig.Bundle, len(domains))
	for _, d := range domains {
		site, err := s.Get(ctx, d)
		if err != nil {
			return nil, err
		}
		if site == nil {
			return nil, fmt.Errorf("%s: %w", d, ErrNotFound)
		}
		out[normalizeDomain(d)] = site
	}
	return out, nil
}

// SeedDefaults writes the built-in configurations when the store is empty.
// It reports whether anything was written.
func (s *Store) SeedDefaults(ctx context.Context) (bool, error) {
	all, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	if len(all) > 0 {
		return false, nil
	}
	if _, err := s.Import(ctx, siteconfig.Defaults()); err != nil {
		return false, fmt.Errorf("seed defaults: %w", err)
	}
	return true, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.b.Close()
}
