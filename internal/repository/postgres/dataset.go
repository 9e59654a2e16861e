package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/kbsearch/internal/repository"
)

// DatasetRepo implements repository.DatasetRepository
type DatasetRepo struct {
	db *DB
}

// NewDatasetRepo creates a new dataset repository
func NewDatasetRepo(db *DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

const datasetColumns = `id, name, description, embedding_model, embedding_model_provider, retrieval_model, top_k, fetched_at`

// List retrieves the cached datasets in listing order
func (r *DatasetRepo) List(ctx context.Context) ([]*repository.Dataset, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]*repository.Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate datasets: %w", err)
	}
	return datasets, nil
}

// GetByID retrieves a dataset by ID
func (r *DatasetRepo) GetByID(ctx context.Context, id string) (*repository.Dataset, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
	ds, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ds, nil
}

// ReplaceAll swaps the cached listing inside a single transaction
func (r *DatasetRepo) ReplaceAll(ctx context.Context, datasets []*repository.Dataset) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM datasets`); err != nil {
		return fmt.Errorf("failed to clear datasets: %w", err)
	}

	batch := &pgx.Batch{}
	for i, ds := range datasets {
		var retrievalModel []byte
		if len(ds.RetrievalModel) > 0 {
			retrievalModel = ds.RetrievalModel
		}
		batch.Queue(`
			INSERT INTO datasets (id, position, name, description, embedding_model,
				embedding_model_provider, retrieval_model, top_k, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, ds.ID, i, ds.Name, ds.Description, ds.EmbeddingModel,
			ds.EmbeddingModelProvider, retrievalModel, ds.TopK, ds.FetchedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert datasets: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit datasets: %w", err)
	}
	return nil
}

func scanDataset(row pgx.Row) (*repository.Dataset, error) {
	var ds repository.Dataset
	var retrievalModel []byte

	err := row.Scan(&ds.ID, &ds.Name, &ds.Description, &ds.EmbeddingModel,
		&ds.EmbeddingModelProvider, &retrievalModel, &ds.TopK, &ds.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dataset: %w", err)
	}
	ds.RetrievalModel = retrievalModel
	return &ds, nil
}

var _ repository.DatasetRepository = (*DatasetRepo)(nil)
