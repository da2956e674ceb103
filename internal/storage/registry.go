// Package storage is the Config Store: a domain → configuration map with
// pluggable backends.
//
// Backends live in sub-packages and register themselves from init(). Import
// storage/all (or a single backend package) for its side effect, then call
// Open.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lingyjava/page-parser/internal/siteconfig"
)

// Config is the minimal configuration needed to open a store.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; its meaning is
//     backend-specific (file path, connection string, ignored).
type Config struct {
	Kind string
	DSN  string
}

// Backend persists configurations.
//
// Backends store what they are given. Validation and normalization happen
// in Store, so every backend honors the same rules.
type Backend interface {
	// Get returns (nil, nil) when domain has no configuration.
	Get(ctx context.Context, domain string) (*siteconfig.Site, error)

	// Put inserts or replaces the configuration of domain.
	Put(ctx context.Context, domain string, site *siteconfig.Site) error

	// Delete removes domain. Deleting an absent domain is not an error.
	Delete(ctx context.Context, domain string) error

	// All returns every stored configuration.
	All(ctx context.Context) (siteconfig.Bundle, error)

	// Close releases backend resources. Call once.
	Close() error
}

// BatchPutter is implemented by backends that can write several
// configurations atomically. Store.Import uses it when available.
type BatchPutter interface {
	PutAll(ctx context.Context, b siteconfig.Bundle) error
}

// Factory opens a backend.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under kind (e.g. "sqlite", "postgres").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered. Failing fast
//     avoids ambiguous backend selection.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open constructs a Store on the registered backend for cfg.Kind.
//
// Errors:
//   - cfg.Kind is empty or not registered.
//   - whatever the backend factory returns.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	b, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Kind, err)
	}
	return NewStore(b), nil
}
