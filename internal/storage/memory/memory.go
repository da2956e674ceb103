// Package memory is an in-process Config Store backend. Contents are lost
// when the process exits.
package memory

import (
	"context"
	"sync"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

func init() {
	storage.Register("memory", func(context.Context, storage.Config) (storage.Backend, error) {
		return New(), nil
	})
}

// Backend is safe for concurrent use. It stores clones, so callers can keep
// mutating what they passed in.
type Backend struct {
	mu    sync.RWMutex
	sites map[string]*siteconfig.Site
}

func New() *Backend {
	return &Backend{sites: map[string]*siteconfig.Site{}}
}

func (b *Backend) Get(_ context.Context, domain string) (*siteconfig.Site, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sites[domain].Clone(), nil
}

func (b *Backend) Put(_ context.Context, domain string, site *siteconfig.Site) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sites[domain] = site.Clone()
	return nil
}

func (b *Backend) PutAll(_ context.Context, bundle siteconfig.Bundle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for d, s := range bundle {
		b.sites[d] = s.Clone()
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, domain string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sites, domain)
	return nil
}

func (b *Backend) All(context.Context) (siteconfig.Bundle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(siteconfig.Bundle, len(b.sites))
	for d, s := range b.sites {
		out[d] = s.Clone()
	}
	return out, nil
}

func (b *Backend) Close() error { return nil }
