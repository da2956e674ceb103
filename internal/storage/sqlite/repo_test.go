package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

func openTemp(t *testing.T) *Repo {
	t.Helper()
	r, err := New(context.Background(), filepath.Join(t.TempDir(), "pp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRepo_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := openTemp(t)
	r.now = func() time.Time { return time.Date(2026, 1, 27, 12, 17, 8, 123, time.UTC) }

	got, err := r.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	site := &siteconfig.Site{Name: "A", Selectors: siteconfig.Selectors{
		{Field: "title", Selector: "h1"},
		{Field: "author", Selector: ".byline"},
		{Field: "link", Selector: "a@href"},
	}}
	require.NoError(t, r.Put(ctx, "a.com", site))

	got, err = r.Get(ctx, "a.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, site, got)

	// Upsert replaces in place.
	site2 := &siteconfig.Site{Name: "A2", Selectors: siteconfig.Selectors{{Field: "t", Selector: "h2"}}}
	require.NoError(t, r.Put(ctx, "a.com", site2))
	got, err = r.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Equal(t, site2, got)

	require.NoError(t, r.Delete(ctx, "a.com"))
	require.NoError(t, r.Delete(ctx, "a.com"))
	got, err = r.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepo_PutAllAndAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := openTemp(t)

	require.NoError(t, r.PutAll(ctx, siteconfig.Bundle{
		"b.com": {Name: "B", Selectors: siteconfig.Selectors{{Field: "t", Selector: "h1"}}},
		"a.com": {Name: "A", Selectors: siteconfig.Selectors{{Field: "t", Selector: "h1"}}},
	}))

	all, err := r.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com"}, all.Domains())
	assert.Equal(t, "B", all["b.com"].Name)
}

// TestRepo_ViaStore exercises the registered factory and Store rules.
func TestRepo_ViaStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := storage.Open(ctx, storage.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	defer s.Close()

	err = s.Save(ctx, "a.com", &siteconfig.Site{Selectors: siteconfig.Selectors{}})
	assert.ErrorIs(t, err, siteconfig.ErrNoSelectors)

	seeded, err := s.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.bloomberg.com"}, all.Domains())
}

func TestNew_EmptyDSN(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), "")
	require.Error(t, err)
}
