// Package repository defines the dataset model and the storage interface used to cache
// the knowledge service's dataset listing.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Dataset is a named, independently queryable knowledge-base collection.
// Only the fields needed to resolve and describe a dataset are kept.
type Dataset struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	Description            string          `json:"description"`
	EmbeddingModel         string          `json:"embedding_model"`
	EmbeddingModelProvider string          `json:"embedding_model_provider"`
	RetrievalModel         json.RawMessage `json:"retrieval_model_dict,omitempty"`
	TopK                   int             `json:"top_k,omitempty"`
	FetchedAt              time.Time       `json:"fetched_at"`
}

// DisplayName returns the dataset name, or its ID when the name is empty.
func (d *Dataset) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// DatasetRepository defines operations for the cached dataset listing
type DatasetRepository interface {
	// List returns every cached dataset in listing order.
	List(ctx context.Context) ([]*Dataset, error)

	// GetByID returns a cached dataset or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Dataset, error)

	// ReplaceAll atomically replaces the cached listing.
	ReplaceAll(ctx context.Context, datasets []*Dataset) error
}
