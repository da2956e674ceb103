package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

func TestBackend_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "configs.json")

	s, err := storage.Open(ctx, storage.Config{Kind: "jsonfile", DSN: path})
	require.NoError(t, err)
	defer s.Close()

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	site := &siteconfig.Site{Name: "A", Selectors: siteconfig.Selectors{
		{Field: "z", Selector: "h1"},
		{Field: "a", Selector: "a@href"},
	}}
	require.NoError(t, s.Save(ctx, "a.com", site))

	got, err := s.Get(ctx, "a.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"z", "a"}, got.Selectors.Fields())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"a.com\": {"), string(data))

	require.NoError(t, s.Delete(ctx, "a.com"))
	got, err = s.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestBackend_ImportUsesOneWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, err := New(filepath.Join(t.TempDir(), "c.json"))
	require.NoError(t, err)

	require.NoError(t, b.PutAll(ctx, siteconfig.Bundle{
		"a.com": {Name: "A", Selectors: siteconfig.Selectors{{Field: "t", Selector: "h1"}}},
		"b.com": {Name: "B", Selectors: siteconfig.Selectors{{Field: "t", Selector: "h2"}}},
	}))

	all, err := b.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com"}, all.Domains())
}

func TestBackend_CorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2]`), 0o600))

	b, err := New(path)
	require.NoError(t, err)
	_, err = b.All(context.Background())
	require.Error(t, err)
}

func TestNew_EmptyPath(t *testing.T) {
	t.Parallel()
	_, err := New("")
	require.Error(t, err)
}
