package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/repositories"
)

// DatasetService defines the interface for dataset catalog operations.
type DatasetService interface {
	// Create registers a dataset pointing at a table reference. The
	// schema is not resolved here; resolution is lazy.
	Create(ctx context.Context, name string, linkedServiceID uuid.UUID, tableRef string) (*models.Dataset, error)

	// Get retrieves a dataset by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)

	// List retrieves all datasets.
	List(ctx context.Context) ([]*models.Dataset, error)

	// Delete removes a dataset unless pipelines still reference it.
	Delete(ctx context.Context, id uuid.UUID) error

	// ResolveSchema returns the dataset's column schema, introspecting
	// and caching it on first use. refresh forces re-introspection.
	ResolveSchema(ctx context.Context, id uuid.UUID, refresh bool) ([]models.ColumnSchema, error)

	// OpenConnector opens a connector for the dataset's linked service.
	// The caller owns the returned connector and must close it.
	OpenConnector(ctx context.Context, dataset *models.Dataset) (connectors.Connector, error)
}

// datasetService implements DatasetService.
type datasetService struct {
	repo         repositories.DatasetRepository
	pipelineRepo repositories.PipelineRepository
	services     LinkedServiceService
	opener       connectors.Opener
	resolving    singleflight.Group
	logger       *zap.Logger
}

// NewDatasetService creates a new dataset service.
func NewDatasetService(
	repo repositories.DatasetRepository,
	pipelineRepo repositories.PipelineRepository,
	services LinkedServiceService,
	opener connectors.Opener,
	logger *zap.Logger,
) DatasetService {
	return &datasetService{
		repo:         repo,
		pipelineRepo: pipelineRepo,
		services:     services,
		opener:       opener,
		logger:       logger,
	}
}

func (s *datasetService) Create(ctx context.Context, name string, linkedServiceID uuid.UUID, tableRef string) (*models.Dataset, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	if tableRef == "" {
		return nil, apperrors.NewValidationError("table_ref", "table reference is required")
	}

	if _, err := s.services.Get(ctx, linkedServiceID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError("linked_service_id", "linked service %s does not exist", linkedServiceID)
		}
		return nil, err
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, &apperrors.ConflictError{Message: fmt.Sprintf("dataset %q already exists", name)}
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	dataset := &models.Dataset{
		Name:            name,
		LinkedServiceID: linkedServiceID,
		TableRef:        tableRef,
	}
	if err := s.repo.Create(ctx, dataset); err != nil {
		return nil, err
	}

	s.logger.Info("created dataset",
		zap.String("id", dataset.ID.String()),
		zap.String("name", name),
		zap.String("table_ref", tableRef))
	return dataset, nil
}

func (s *datasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.repo.Get(ctx, id)
}

func (s *datasetService) List(ctx context.Context) ([]*models.Dataset, error) {
	return s.repo.List(ctx)
}

func (s *datasetService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.pipelineRepo.CountReferencingDataset(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &apperrors.ConflictError{Message: fmt.Sprintf("dataset is referenced by %d pipeline(s)", count)}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted dataset", zap.String("id", id.String()))
	return nil
}

func (s *datasetService) ResolveSchema(ctx context.Context, id uuid.UUID, refresh bool) ([]models.ColumnSchema, error) {
	dataset, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if dataset.HasCachedSchema() && !refresh {
		return dataset.CachedSchema, nil
	}

	// Concurrent resolutions of the same dataset share one introspection.
	result, err, _ := s.resolving.Do(id.String(), func() (any, error) {
		return s.introspect(ctx, dataset)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.ColumnSchema), nil
}

func (s *datasetService) introspect(ctx context.Context, dataset *models.Dataset) ([]models.ColumnSchema, error) {
	conn, err := s.OpenConnector(ctx, dataset)
	if err != nil {
		return nil, &apperrors.SchemaResolutionError{Reference: dataset.TableRef, Cause: err}
	}
	defer conn.Close()

	schema, err := conn.IntrospectSchema(ctx, dataset.TableRef)
	if err != nil {
		return nil, &apperrors.SchemaResolutionError{Reference: dataset.TableRef, Cause: err}
	}

	dataset.CachedSchema = schema
	if err := s.repo.Update(ctx, dataset); err != nil {
		return nil, fmt.Errorf("failed to cache schema: %w", err)
	}

	s.logger.Info("resolved dataset schema",
		zap.String("id", dataset.ID.String()),
		zap.Int("columns", len(schema)))
	return schema, nil
}

func (s *datasetService) OpenConnector(ctx context.Context, dataset *models.Dataset) (connectors.Connector, error) {
	service, err := s.services.Get(ctx, dataset.LinkedServiceID)
	if err != nil {
		return nil, err
	}
	return s.opener.Open(ctx, service.ServiceType, service.Config)
}
