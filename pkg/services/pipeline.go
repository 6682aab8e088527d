package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/repositories"
)

// PipelineService defines the interface for pipeline graph operations.
type PipelineService interface {
	// Save persists a pipeline and returns the validation result for
	// it. Validation problems do not block the save; invalid pipelines
	// are kept as drafts and refuse only execution.
	Save(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, *models.ValidationResult, error)

	// Get retrieves a pipeline by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.Pipeline, error)

	// List retrieves all pipelines.
	List(ctx context.Context) ([]*models.Pipeline, error)

	// Delete removes a pipeline.
	Delete(ctx context.Context, id uuid.UUID) error

	// Validate checks the full graph and reports every problem found,
	// not just the first.
	Validate(ctx context.Context, pipeline *models.Pipeline) *models.ValidationResult

	// ExecutionOrder returns the deterministic node order execution
	// will use, or a CycleError.
	ExecutionOrder(pipeline *models.Pipeline) ([]string, error)
}

// pipelineService implements PipelineService.
type pipelineService struct {
	repo        repositories.PipelineRepository
	datasetRepo repositories.DatasetRepository
	logger      *zap.Logger
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(
	repo repositories.PipelineRepository,
	datasetRepo repositories.DatasetRepository,
	logger *zap.Logger,
) PipelineService {
	return &pipelineService{
		repo:        repo,
		datasetRepo: datasetRepo,
		logger:      logger,
	}
}

func (s *pipelineService) Save(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, *models.ValidationResult, error) {
	if pipeline.Name == "" {
		return nil, nil, apperrors.NewValidationError("name", "name is required")
	}

	result := s.Validate(ctx, pipeline)

	if pipeline.ID == uuid.Nil {
		if err := s.repo.Create(ctx, pipeline); err != nil {
			return nil, nil, err
		}
	} else {
		if err := s.repo.Update(ctx, pipeline); err != nil {
			return nil, nil, err
		}
	}

	s.logger.Info("saved pipeline",
		zap.String("id", pipeline.ID.String()),
		zap.String("name", pipeline.Name),
		zap.Int("nodes", len(pipeline.Nodes)),
		zap.Int("validation_errors", len(result.Errors)))
	return pipeline, result, nil
}

func (s *pipelineService) Get(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	return s.repo.Get(ctx, id)
}

func (s *pipelineService) List(ctx context.Context) ([]*models.Pipeline, error) {
	return s.repo.List(ctx)
}

func (s *pipelineService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted pipeline", zap.String("id", id.String()))
	return nil
}

// Validate runs every check and accumulates all failures: node shape,
// id uniqueness, edge endpoints, per-kind degree rules, dataset
// existence, source column selection, approved transform code, and
// acyclicity.
func (s *pipelineService) Validate(ctx context.Context, pipeline *models.Pipeline) *models.ValidationResult {
	result := &models.ValidationResult{}

	seen := make(map[string]bool, len(pipeline.Nodes))
	for i := range pipeline.Nodes {
		node := &pipeline.Nodes[i]
		if err := node.Validate(); err != nil {
			result.Add(node.ID, "%v", err)
		}
		if node.ID != "" {
			if seen[node.ID] {
				result.Add(node.ID, "duplicate node id %q", node.ID)
			}
			seen[node.ID] = true
		}
	}

	for _, edge := range pipeline.Edges {
		if !seen[edge.FromNodeID] {
			result.Add(edge.FromNodeID, "edge references unknown node %q", edge.FromNodeID)
		}
		if !seen[edge.ToNodeID] {
			result.Add(edge.ToNodeID, "edge references unknown node %q", edge.ToNodeID)
		}
	}

	for i := range pipeline.Nodes {
		node := &pipeline.Nodes[i]
		in := len(pipeline.Incoming(node.ID))
		out := len(pipeline.Outgoing(node.ID))

		switch node.Kind {
		case models.NodeSource:
			if in > 0 {
				result.Add(node.ID, "source node must not have incoming edges")
			}
			if len(node.SelectedColumns) == 0 {
				result.Add(node.ID, "source node selects no columns")
			}
		case models.NodeTransform:
			if in == 0 {
				result.Add(node.ID, "transform node has no inputs")
			}
			if node.GeneratedCode == "" {
				result.Add(node.ID, "transform node has no approved code")
			}
		case models.NodeSink:
			if in != 1 {
				result.Add(node.ID, "sink node needs exactly one input, has %d", in)
			}
			if out > 0 {
				result.Add(node.ID, "sink node must not have outgoing edges")
			}
		}

		if node.DatasetID != nil {
			dataset, err := s.datasetRepo.Get(ctx, *node.DatasetID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					result.Add(node.ID, "dataset %s does not exist", node.DatasetID)
				} else {
					result.Add(node.ID, "dataset %s could not be checked: %v", node.DatasetID, err)
				}
				continue
			}
			if node.Kind == models.NodeSource && dataset.HasCachedSchema() {
				known := make(map[string]bool, len(dataset.CachedSchema))
				for _, col := range dataset.CachedSchema {
					known[col.Name] = true
				}
				for _, name := range node.SelectedColumns {
					if !known[name] {
						result.Add(node.ID, "selected column %q is not in dataset %q schema", name, dataset.Name)
					}
				}
			}
		}
	}

	if _, err := topoSort(pipeline); err != nil {
		var cycle *apperrors.CycleError
		if errors.As(err, &cycle) {
			for _, id := range cycle.NodeIDs {
				result.Add(id, "node is part of a cycle")
			}
		}
	}

	return result
}

func (s *pipelineService) ExecutionOrder(pipeline *models.Pipeline) ([]string, error) {
	return topoSort(pipeline)
}
