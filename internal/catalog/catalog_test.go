package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/kbsearch/internal/repository"
	"github.com/knoguchi/kbsearch/internal/repository/file"
)

type fakeLister struct {
	datasets []*repository.Dataset
	err      error
	calls    int
	limit    int
}

func (f *fakeLister) ListDatasets(ctx context.Context, limit int) ([]*repository.Dataset, error) {
	f.calls++
	f.limit = limit
	return f.datasets, f.err
}

func newCatalog(t *testing.T, lister Lister) (*Catalog, *file.DatasetRepo) {
	t.Helper()
	repo := file.NewDatasetRepo(filepath.Join(t.TempDir(), "datasets.json"))
	c, err := New(lister, repo, 4, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c, repo
}

func TestCatalog_ListFetchesWhenEmpty(t *testing.T) {
	lister := &fakeLister{datasets: []*repository.Dataset{
		{ID: "ds-1", Name: "Ruby"},
		{ID: "ds-2", Name: "Go"},
	}}
	c, repo := newCatalog(t, lister)
	ctx := context.Background()

	datasets, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, datasets, 2)
	assert.Equal(t, 1, lister.calls)
	assert.Equal(t, 40, lister.limit)

	saved, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	_, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls, "second list should be served from the repository")
}

func TestCatalog_Resolve(t *testing.T) {
	lister := &fakeLister{datasets: []*repository.Dataset{{ID: "ds-1", Name: "Ruby"}}}
	c, _ := newCatalog(t, lister)
	ctx := context.Background()

	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	ds, err := c.Resolve(ctx, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "Ruby", ds.Name)

	_, err = c.Resolve(ctx, "unknown")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCatalog_ResolveFromRepositoryAfterRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "datasets.json")
	repo := file.NewDatasetRepo(path)
	require.NoError(t, repo.ReplaceAll(ctx, []*repository.Dataset{{ID: "ds-9", Name: "Cached"}}))

	c, err := New(nil, repo, 0)
	require.NoError(t, err)

	ds, err := c.Resolve(ctx, "ds-9")
	require.NoError(t, err)
	assert.Equal(t, "Cached", ds.Name)
}

func TestCatalog_RefreshReplacesListing(t *testing.T) {
	lister := &fakeLister{datasets: []*repository.Dataset{{ID: "old"}}}
	c, _ := newCatalog(t, lister)
	ctx := context.Background()

	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	lister.datasets = []*repository.Dataset{{ID: "new"}}
	_, err = c.Refresh(ctx)
	require.NoError(t, err)

	_, err = c.Resolve(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = c.Resolve(ctx, "new")
	assert.NoError(t, err)
}

func TestCatalog_RefreshError(t *testing.T) {
	c, _ := newCatalog(t, &fakeLister{err: errors.New("HTTP Error: 401")})

	_, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	c, _ = newCatalog(t, nil)
	_, err = c.List(context.Background())
	assert.Error(t, err)
}
