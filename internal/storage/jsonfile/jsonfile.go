// Package jsonfile keeps every configuration in one JSON file, in the same
// format as an export bundle. It is the closest analog of extension-local
// storage: one document holding the whole domain → configuration map.
package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

func init() {
	storage.Register("jsonfile", func(_ context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(cfg.DSN)
	})
}

// Backend serializes access within one process. Every write replaces the
// file atomically (temp file + rename).
type Backend struct {
	mu   sync.Mutex
	path string
}

// New returns a backend on path. The file is created on first write.
func New(path string) (*Backend, error) {
	if path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	return &Backend{path: path}, nil
}

func (b *Backend) load() (siteconfig.Bundle, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return siteconfig.Bundle{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return siteconfig.Bundle{}, nil
	}
	bundle, err := siteconfig.DecodeBundle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.path, err)
	}
	return bundle, nil
}

func (b *Backend) save(bundle siteconfig.Bundle) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := siteconfig.EncodeBundle(tmp, bundle); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *Backend) update(fn func(siteconfig.Bundle)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bundle, err := b.load()
	if err != nil {
		return err
	}
	fn(bundle)
	return b.save(bundle)
}

func (b *Backend) Get(_ context.Context, domain string) (*siteconfig.Site, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bundle, err := b.load()
	if err != nil {
		return nil, err
	}
	return bundle[domain], nil
}

func (b *Backend) Put(_ context.Context, domain string, site *siteconfig.Site) error {
	return b.update(func(bundle siteconfig.Bundle) { bundle[domain] = site.Clone() })
}

// PutAll writes every entry in one file replacement.
func (b *Backend) PutAll(_ context.Context, in siteconfig.Bundle) error {
	return b.update(func(bundle siteconfig.Bundle) {
		for d, s := range in {
			bundle[d] = s.Clone()
		}
	})
}

func (b *Backend) Delete(_ context.Context, domain string) error {
	return b.update(func(bundle siteconfig.Bundle) { delete(bundle, domain) })
}

func (b *Backend) All(context.Context) (siteconfig.Bundle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

func (b *Backend) Close() error { return nil }
