package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/logging"
	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/repositories"
)

// ExecutionService defines the interface for pipeline execution.
type ExecutionService interface {
	// Run starts an asynchronous execution of a pipeline and returns
	// the pending execution record. Invalid pipelines refuse to run;
	// the refusal is recorded as a failed execution carrying every
	// validation error.
	Run(ctx context.Context, pipelineID uuid.UUID) (*models.Execution, error)

	// Get retrieves an execution by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.Execution, error)

	// ListForPipeline retrieves recent executions, newest first.
	ListForPipeline(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*models.ExecutionSummary, error)
}

// executionService implements ExecutionService.
type executionService struct {
	repo        repositories.ExecutionRepository
	pipelines   PipelineService
	datasets    DatasetService
	nodeTimeout time.Duration
	logger      *zap.Logger
}

// NewExecutionService creates a new execution service.
func NewExecutionService(
	repo repositories.ExecutionRepository,
	pipelines PipelineService,
	datasets DatasetService,
	nodeTimeout time.Duration,
	logger *zap.Logger,
) ExecutionService {
	return &executionService{
		repo:        repo,
		pipelines:   pipelines,
		datasets:    datasets,
		nodeTimeout: nodeTimeout,
		logger:      logger,
	}
}

func (s *executionService) Run(ctx context.Context, pipelineID uuid.UUID) (*models.Execution, error) {
	pipeline, err := s.pipelines.Get(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if result := s.pipelines.Validate(ctx, pipeline); !result.Valid() {
		summary := result.Summary()
		now := time.Now()
		execution := &models.Execution{
			PipelineID:   pipeline.ID,
			Status:       models.ExecutionFailed,
			StartedAt:    now,
			FinishedAt:   &now,
			NodeResults:  make(map[string]models.NodeResult, len(pipeline.Nodes)),
			ErrorMessage: summary,
		}
		for _, node := range pipeline.Nodes {
			execution.NodeResults[node.ID] = models.NodeResult{Status: models.NodeNotStarted}
		}
		if err := s.repo.Create(ctx, execution); err != nil {
			return nil, err
		}
		s.logger.Warn("pipeline refused to run",
			zap.String("pipeline_id", pipeline.ID.String()),
			zap.Int("validation_errors", len(result.Errors)))
		return nil, apperrors.NewValidationError("pipeline", "%s", summary)
	}
	order, err := s.pipelines.ExecutionOrder(pipeline)
	if err != nil {
		return nil, err
	}

	execution := &models.Execution{
		PipelineID:  pipeline.ID,
		Status:      models.ExecutionPending,
		StartedAt:   time.Now(),
		NodeResults: make(map[string]models.NodeResult, len(pipeline.Nodes)),
	}
	for _, node := range pipeline.Nodes {
		execution.NodeResults[node.ID] = models.NodeResult{Status: models.NodeNotStarted}
	}
	if err := s.repo.Create(ctx, execution); err != nil {
		return nil, err
	}

	s.logger.Info("starting pipeline execution",
		zap.String("execution_id", execution.ID.String()),
		zap.String("pipeline_id", pipeline.ID.String()),
		zap.Int("nodes", len(order)))

	// The run outlives the request; detach from its cancellation.
	go s.execute(context.WithoutCancel(ctx), pipeline, order, execution)

	return execution, nil
}

func (s *executionService) Get(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	return s.repo.Get(ctx, id)
}

func (s *executionService) ListForPipeline(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*models.ExecutionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	executions, err := s.repo.ListByPipeline(ctx, pipelineID, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.ExecutionSummary, len(executions))
	for i, e := range executions {
		summaries[i] = &models.ExecutionSummary{
			ID:           e.ID,
			PipelineID:   e.PipelineID,
			Status:       e.Status,
			StartedAt:    e.StartedAt,
			FinishedAt:   e.FinishedAt,
			ErrorMessage: e.ErrorMessage,
		}
	}
	return summaries, nil
}

// execute walks the pipeline in topological order, fail-fast: the first
// node failure marks every remaining node skipped with the failed node
// as root cause. The execution record is persisted after every node
// transition and always reaches a terminal status.
func (s *executionService) execute(ctx context.Context, pipeline *models.Pipeline, order []string, execution *models.Execution) {
	execution.Status = models.ExecutionRunning
	s.persist(ctx, execution)

	frames := make(map[string]*dataflow.Frame, len(order))
	rootCause := ""

	for _, nodeID := range order {
		if rootCause != "" {
			execution.NodeResults[nodeID] = models.NodeResult{
				Status:         models.NodeSkipped,
				SkippedBecause: rootCause,
			}
			continue
		}

		node := pipeline.NodeByID(nodeID)
		execution.NodeResults[nodeID] = models.NodeResult{Status: models.NodeRunning}
		s.persist(ctx, execution)

		nodeCtx, cancel := context.WithTimeout(ctx, s.nodeTimeout)
		frame, rows, err := s.runNode(nodeCtx, pipeline, node, frames)
		cancel()

		if err != nil {
			message := logging.SanitizeError(err)
			execution.NodeResults[nodeID] = models.NodeResult{
				Status:       models.NodeFailed,
				ErrorMessage: message,
			}
			execution.ErrorMessage = fmt.Sprintf("node %s failed: %s", nodeID, message)
			rootCause = nodeID

			s.logger.Error("pipeline node failed",
				zap.String("execution_id", execution.ID.String()),
				zap.String("node_id", nodeID),
				zap.Error(err))
			s.persist(ctx, execution)
			continue
		}

		execution.NodeResults[nodeID] = models.NodeResult{
			Status:   models.NodeSucceeded,
			RowCount: &rows,
		}
		if frame != nil {
			frames[nodeID] = frame
			// Source frames are also visible under the dataset's name,
			// which is how generated programs reference their inputs.
			if node.Kind == models.NodeSource {
				if alias := s.datasetAlias(ctx, node); alias != "" && pipeline.NodeByID(alias) == nil {
					frames[alias] = frame
				}
			}
		}
		s.persist(ctx, execution)
	}

	now := time.Now()
	execution.FinishedAt = &now
	if rootCause == "" {
		execution.Status = models.ExecutionCompleted
	} else {
		execution.Status = models.ExecutionFailed
	}
	s.persist(ctx, execution)

	s.logger.Info("pipeline execution finished",
		zap.String("execution_id", execution.ID.String()),
		zap.String("status", string(execution.Status)),
		zap.Duration("elapsed", now.Sub(execution.StartedAt)))
}

func (s *executionService) runNode(ctx context.Context, pipeline *models.Pipeline, node *models.PipelineNode, frames map[string]*dataflow.Frame) (*dataflow.Frame, int64, error) {
	switch node.Kind {
	case models.NodeSource:
		return s.runSource(ctx, node)
	case models.NodeTransform:
		return s.runTransform(ctx, node, frames)
	case models.NodeSink:
		return s.runSink(ctx, pipeline, node, frames)
	default:
		return nil, 0, fmt.Errorf("node %s has unknown kind %q", node.ID, node.Kind)
	}
}

func (s *executionService) runSource(ctx context.Context, node *models.PipelineNode) (*dataflow.Frame, int64, error) {
	dataset, err := s.datasets.Get(ctx, *node.DatasetID)
	if err != nil {
		return nil, 0, err
	}

	conn, err := s.datasets.OpenConnector(ctx, dataset)
	if err != nil {
		return nil, 0, &apperrors.ConnectorError{Op: apperrors.OpRead, Cause: err}
	}
	defer conn.Close()

	frame, err := conn.Read(ctx, dataset.TableRef, node.SelectedColumns, 0)
	if err != nil {
		return nil, 0, &apperrors.ConnectorError{Op: apperrors.OpRead, Timeout: ctx.Err() != nil, Cause: err}
	}
	return frame, int64(frame.RowCount()), nil
}

func (s *executionService) runTransform(ctx context.Context, node *models.PipelineNode, frames map[string]*dataflow.Frame) (*dataflow.Frame, int64, error) {
	if node.GeneratedCode == "" {
		return nil, 0, fmt.Errorf("transform node %s has no approved code", node.ID)
	}

	program, err := dataflow.ParseProgram(node.GeneratedCode)
	if err != nil {
		return nil, 0, apperrors.NewTransformationError(apperrors.StageGeneration, err, "stored program is invalid: %v", err)
	}

	frame, err := dataflow.Execute(program, frames)
	if err != nil {
		return nil, 0, apperrors.NewTransformationError(apperrors.StageExecution, err, "%v", err)
	}
	return frame, int64(frame.RowCount()), nil
}

func (s *executionService) runSink(ctx context.Context, pipeline *models.Pipeline, node *models.PipelineNode, frames map[string]*dataflow.Frame) (*dataflow.Frame, int64, error) {
	upstream := pipeline.Incoming(node.ID)
	frame, ok := frames[upstream[0]]
	if !ok {
		return nil, 0, fmt.Errorf("sink node %s has no input frame", node.ID)
	}

	dataset, err := s.datasets.Get(ctx, *node.DatasetID)
	if err != nil {
		return nil, 0, err
	}

	conn, err := s.datasets.OpenConnector(ctx, dataset)
	if err != nil {
		return nil, 0, &apperrors.ConnectorError{Op: apperrors.OpWrite, Cause: err}
	}
	defer conn.Close()

	written, err := conn.Write(ctx, node.TableRef, frame, node.WriteMode)
	if err != nil {
		return nil, 0, &apperrors.ConnectorError{Op: apperrors.OpWrite, Timeout: ctx.Err() != nil, Cause: err}
	}
	return nil, written, nil
}

func (s *executionService) datasetAlias(ctx context.Context, node *models.PipelineNode) string {
	dataset, err := s.datasets.Get(ctx, *node.DatasetID)
	if err != nil {
		return ""
	}
	return dataset.Name
}

// persist writes the execution record. History persistence failure never
// interrupts a run; it is logged and the run continues.
func (s *executionService) persist(ctx context.Context, execution *models.Execution) {
	if err := s.repo.Update(ctx, execution); err != nil {
		s.logger.Warn("failed to persist execution state",
			zap.String("execution_id", execution.ID.String()),
			zap.Error(err))
	}
}
