package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/database"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// ExecutionRepository defines the interface for execution history access.
// Records are append-only from the caller's point of view: Update only
// ever moves a record forward (status, node results, finish time), and
// nothing deletes them.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	Get(ctx context.Context, id uuid.UUID) (*models.Execution, error)
	Update(ctx context.Context, execution *models.Execution) error
	ListByPipeline(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*models.Execution, error)
}

// executionRepository implements ExecutionRepository using PostgreSQL.
type executionRepository struct {
	db *database.DB
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *database.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

func (r *executionRepository) Create(ctx context.Context, execution *models.Execution) error {
	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}

	results, err := json.Marshal(execution.NodeResults)
	if err != nil {
		return fmt.Errorf("failed to marshal node results: %w", err)
	}

	query := `
		INSERT INTO executions (id, pipeline_id, status, started_at, finished_at, node_results, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		execution.ID,
		execution.PipelineID,
		execution.Status,
		execution.StartedAt,
		execution.FinishedAt,
		results,
		execution.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (r *executionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	query := `
		SELECT id, pipeline_id, status, started_at, finished_at, node_results, error_message
		FROM executions
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *executionRepository) Update(ctx context.Context, execution *models.Execution) error {
	results, err := json.Marshal(execution.NodeResults)
	if err != nil {
		return fmt.Errorf("failed to marshal node results: %w", err)
	}

	query := `
		UPDATE executions
		SET status = $2, finished_at = $3, node_results = $4, error_message = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		execution.ID,
		execution.Status,
		execution.FinishedAt,
		results,
		execution.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *executionRepository) ListByPipeline(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*models.Execution, error) {
	query := `
		SELECT id, pipeline_id, status, started_at, finished_at, node_results, error_message
		FROM executions
		WHERE pipeline_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, pipelineID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*models.Execution
	for rows.Next() {
		execution, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}

func (r *executionRepository) scanOne(row rowScanner) (*models.Execution, error) {
	var execution models.Execution
	var results []byte

	err := row.Scan(
		&execution.ID,
		&execution.PipelineID,
		&execution.Status,
		&execution.StartedAt,
		&execution.FinishedAt,
		&results,
		&execution.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	if err := json.Unmarshal(results, &execution.NodeResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node results: %w", err)
	}
	return &execution, nil
}
