package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/database"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// DatasetRepository defines the interface for dataset data access.
type DatasetRepository interface {
	Create(ctx context.Context, dataset *models.Dataset) error
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetByName(ctx context.Context, name string) (*models.Dataset, error)
	List(ctx context.Context) ([]*models.Dataset, error)
	Update(ctx context.Context, dataset *models.Dataset) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByLinkedService(ctx context.Context, linkedServiceID uuid.UUID) (int, error)
}

// datasetRepository implements DatasetRepository using PostgreSQL.
type datasetRepository struct {
	db *database.DB
}

// NewDatasetRepository creates a new dataset repository.
func NewDatasetRepository(db *database.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

func (r *datasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}
	now := time.Now()
	dataset.CreatedAt = now
	dataset.UpdatedAt = now

	schema, err := marshalSchema(dataset.CachedSchema)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO datasets (id, name, linked_service_id, table_ref, cached_schema, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		dataset.ID,
		dataset.Name,
		dataset.LinkedServiceID,
		dataset.TableRef,
		schema,
		dataset.CreatedAt,
		dataset.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

func (r *datasetRepository) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	query := `
		SELECT id, name, linked_service_id, table_ref, cached_schema, created_at, updated_at
		FROM datasets
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *datasetRepository) GetByName(ctx context.Context, name string) (*models.Dataset, error) {
	query := `
		SELECT id, name, linked_service_id, table_ref, cached_schema, created_at, updated_at
		FROM datasets
		WHERE name = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, name))
}

func (r *datasetRepository) List(ctx context.Context) ([]*models.Dataset, error) {
	query := `
		SELECT id, name, linked_service_id, table_ref, cached_schema, created_at, updated_at
		FROM datasets
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*models.Dataset
	for rows.Next() {
		dataset, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	return datasets, rows.Err()
}

func (r *datasetRepository) Update(ctx context.Context, dataset *models.Dataset) error {
	dataset.UpdatedAt = time.Now()

	schema, err := marshalSchema(dataset.CachedSchema)
	if err != nil {
		return err
	}

	query := `
		UPDATE datasets
		SET name = $2, table_ref = $3, cached_schema = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, dataset.ID, dataset.Name, dataset.TableRef, schema, dataset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *datasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *datasetRepository) CountByLinkedService(ctx context.Context, linkedServiceID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM datasets WHERE linked_service_id = $1`,
		linkedServiceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	return count, nil
}

func marshalSchema(schema []models.ColumnSchema) ([]byte, error) {
	if schema == nil {
		return nil, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cached schema: %w", err)
	}
	return data, nil
}

func (r *datasetRepository) scanOne(row rowScanner) (*models.Dataset, error) {
	var dataset models.Dataset
	var schema []byte

	err := row.Scan(
		&dataset.ID,
		&dataset.Name,
		&dataset.LinkedServiceID,
		&dataset.TableRef,
		&schema,
		&dataset.CreatedAt,
		&dataset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	if schema != nil {
		if err := json.Unmarshal(schema, &dataset.CachedSchema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached schema: %w", err)
		}
	}
	return &dataset, nil
}
