// Package catalog resolves dataset identifiers against a cached copy of the knowledge
// service's dataset listing.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/knoguchi/kbsearch/internal/repository"
)

// DefaultCacheSize is the number of datasets kept in memory.
const DefaultCacheSize = 128

// Lister fetches the dataset listing from the knowledge service.
type Lister interface {
	ListDatasets(ctx context.Context, limit int) ([]*repository.Dataset, error)
}

// Catalog serves datasets from memory, then the repository, and fetches the listing
// from the knowledge service when the repository is empty.
type Catalog struct {
	lister    Lister
	repo      repository.DatasetRepository
	cache     *lru.Cache[string, *repository.Dataset]
	listLimit int
	logger    *slog.Logger
}

// Option is a functional option for configuring Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithListLimit sets the page size used when refreshing.
func WithListLimit(limit int) Option {
	return func(c *Catalog) {
		c.listLimit = limit
	}
}

// New creates a catalog. cacheSize <= 0 uses DefaultCacheSize.
func New(lister Lister, repo repository.DatasetRepository, cacheSize int, opts ...Option) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *repository.Dataset](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset cache: %w", err)
	}

	c := &Catalog{
		lister:    lister,
		repo:      repo,
		cache:     cache,
		listLimit: 40,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns the cached listing, fetching it first if nothing is cached yet.
func (c *Catalog) List(ctx context.Context) ([]*repository.Dataset, error) {
	datasets, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	if len(datasets) > 0 {
		c.remember(datasets)
		return datasets, nil
	}

	c.logger.Info("dataset cache empty, fetching listing")
	return c.Refresh(ctx)
}

// Refresh fetches the listing from the knowledge service and replaces the cache.
func (c *Catalog) Refresh(ctx context.Context) ([]*repository.Dataset, error) {
	if c.lister == nil {
		return nil, errors.New("no dataset lister configured")
	}

	datasets, err := c.lister.ListDatasets(ctx, c.listLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch datasets: %w", err)
	}
	if err := c.repo.ReplaceAll(ctx, datasets); err != nil {
		return nil, fmt.Errorf("failed to save datasets: %w", err)
	}

	c.cache.Purge()
	c.remember(datasets)

	c.logger.Info("fetched and saved datasets", slog.Int("count", len(datasets)))
	return datasets, nil
}

// Resolve returns the dataset with the given ID, or repository.ErrNotFound.
func (c *Catalog) Resolve(ctx context.Context, id string) (*repository.Dataset, error) {
	if ds, ok := c.cache.Get(id); ok {
		return ds, nil
	}

	ds, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, ds)
	return ds, nil
}

func (c *Catalog) remember(datasets []*repository.Dataset) {
	for _, ds := range datasets {
		c.cache.Add(ds.ID, ds)
	}
}
