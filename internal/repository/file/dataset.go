// Package file stores the dataset listing as a pretty-printed JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/knoguchi/kbsearch/internal/repository"
)

// DatasetRepo implements repository.DatasetRepository on top of a local JSON file.
// A missing file is an empty listing.
type DatasetRepo struct {
	path string
	mu   sync.RWMutex
}

// NewDatasetRepo creates a file-backed dataset repository.
func NewDatasetRepo(path string) *DatasetRepo {
	return &DatasetRepo{path: path}
}

// List returns the cached datasets.
func (r *DatasetRepo) List(ctx context.Context) ([]*repository.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load()
}

// GetByID retrieves a dataset by ID
func (r *DatasetRepo) GetByID(ctx context.Context, id string) (*repository.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	datasets, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, ds := range datasets {
		if ds.ID == id {
			return ds, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ReplaceAll writes the listing to a temporary file and renames it over the old one.
func (r *DatasetRepo) ReplaceAll(ctx context.Context, datasets []*repository.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if datasets == nil {
		datasets = []*repository.Dataset{}
	}
	data, err := json.MarshalIndent(datasets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal datasets: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write datasets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}
	return nil
}

func (r *DatasetRepo) load() ([]*repository.Dataset, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*repository.Dataset{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}

	var datasets []*repository.Dataset
	if err := json.Unmarshal(data, &datasets); err != nil {
		return nil, fmt.Errorf("failed to parse %s (delete it and refresh): %w", r.path, err)
	}
	return datasets, nil
}

var _ repository.DatasetRepository = (*DatasetRepo)(nil)
