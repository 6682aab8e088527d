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

// PipelineRepository defines the interface for pipeline data access.
type PipelineRepository interface {
	Create(ctx context.Context, pipeline *models.Pipeline) error
	Get(ctx context.Context, id uuid.UUID) (*models.Pipeline, error)
	List(ctx context.Context) ([]*models.Pipeline, error)
	Update(ctx context.Context, pipeline *models.Pipeline) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountReferencingDataset(ctx context.Context, datasetID uuid.UUID) (int, error)
}

// pipelineRepository implements PipelineRepository using PostgreSQL.
// Nodes and edges are stored as JSONB documents; the graph is only ever
// read and written whole.
type pipelineRepository struct {
	db *database.DB
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *database.DB) PipelineRepository {
	return &pipelineRepository{db: db}
}

func (r *pipelineRepository) Create(ctx context.Context, pipeline *models.Pipeline) error {
	if pipeline.ID == uuid.Nil {
		pipeline.ID = uuid.New()
	}
	now := time.Now()
	pipeline.CreatedAt = now
	pipeline.UpdatedAt = now

	nodes, edges, err := marshalGraph(pipeline)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pipelines (id, name, nodes, edges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		pipeline.ID,
		pipeline.Name,
		nodes,
		edges,
		pipeline.CreatedAt,
		pipeline.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	return nil
}

func (r *pipelineRepository) Get(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	query := `
		SELECT id, name, nodes, edges, created_at, updated_at
		FROM pipelines
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *pipelineRepository) List(ctx context.Context) ([]*models.Pipeline, error) {
	query := `
		SELECT id, name, nodes, edges, created_at, updated_at
		FROM pipelines
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []*models.Pipeline
	for rows.Next() {
		pipeline, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, pipeline)
	}
	return pipelines, rows.Err()
}

func (r *pipelineRepository) Update(ctx context.Context, pipeline *models.Pipeline) error {
	pipeline.UpdatedAt = time.Now()

	nodes, edges, err := marshalGraph(pipeline)
	if err != nil {
		return err
	}

	query := `
		UPDATE pipelines
		SET name = $2, nodes = $3, edges = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, pipeline.ID, pipeline.Name, nodes, edges, pipeline.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update pipeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *pipelineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *pipelineRepository) CountReferencingDataset(ctx context.Context, datasetID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM pipelines p
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(p.nodes) AS node
			WHERE node->>'dataset_id' = $1
		)`

	var count int
	if err := r.db.QueryRow(ctx, query, datasetID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pipelines referencing dataset: %w", err)
	}
	return count, nil
}

func marshalGraph(pipeline *models.Pipeline) (nodes, edges []byte, err error) {
	nodes, err = json.Marshal(pipeline.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edges, err = json.Marshal(pipeline.Edges)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal edges: %w", err)
	}
	return nodes, edges, nil
}

func (r *pipelineRepository) scanOne(row rowScanner) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	var nodes, edges []byte

	err := row.Scan(
		&pipeline.ID,
		&pipeline.Name,
		&nodes,
		&edges,
		&pipeline.CreatedAt,
		&pipeline.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	if err := json.Unmarshal(nodes, &pipeline.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &pipeline.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}
	return &pipeline, nil
}
