package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// mockLinkedServiceService delegates to function fields; unset fields
// return zero values.
type mockLinkedServiceService struct {
	CreateFunc     func(ctx context.Context, name string, serviceType models.ServiceType, config map[string]string) (*models.LinkedService, error)
	GetFunc        func(ctx context.Context, id uuid.UUID) (*models.LinkedService, error)
	ListFunc       func(ctx context.Context) ([]*models.LinkedService, error)
	UpdateFunc     func(ctx context.Context, id uuid.UUID, name string, config map[string]string) (*models.LinkedService, error)
	DeleteFunc     func(ctx context.Context, id uuid.UUID) error
	TestFunc       func(ctx context.Context, id uuid.UUID) (*models.ConnectionTestResult, error)
	TestConfigFunc func(ctx context.Context, serviceType models.ServiceType, config map[string]string) *models.ConnectionTestResult
}

func (m *mockLinkedServiceService) Create(ctx context.Context, name string, serviceType models.ServiceType, config map[string]string) (*models.LinkedService, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, name, serviceType, config)
	}
	return nil, nil
}

func (m *mockLinkedServiceService) Get(ctx context.Context, id uuid.UUID) (*models.LinkedService, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockLinkedServiceService) List(ctx context.Context) ([]*models.LinkedService, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockLinkedServiceService) Update(ctx context.Context, id uuid.UUID, name string, config map[string]string) (*models.LinkedService, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, name, config)
	}
	return nil, nil
}

func (m *mockLinkedServiceService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *mockLinkedServiceService) Test(ctx context.Context, id uuid.UUID) (*models.ConnectionTestResult, error) {
	if m.TestFunc != nil {
		return m.TestFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockLinkedServiceService) TestConfig(ctx context.Context, serviceType models.ServiceType, config map[string]string) *models.ConnectionTestResult {
	if m.TestConfigFunc != nil {
		return m.TestConfigFunc(ctx, serviceType, config)
	}
	return &models.ConnectionTestResult{}
}

// mockDatasetService delegates to function fields.
type mockDatasetService struct {
	CreateFunc        func(ctx context.Context, name string, linkedServiceID uuid.UUID, tableRef string) (*models.Dataset, error)
	GetFunc           func(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	ListFunc          func(ctx context.Context) ([]*models.Dataset, error)
	DeleteFunc        func(ctx context.Context, id uuid.UUID) error
	ResolveSchemaFunc func(ctx context.Context, id uuid.UUID, refresh bool) ([]models.ColumnSchema, error)
}

func (m *mockDatasetService) Create(ctx context.Context, name string, linkedServiceID uuid.UUID, tableRef string) (*models.Dataset, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, name, linkedServiceID, tableRef)
	}
	return nil, nil
}

func (m *mockDatasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockDatasetService) List(ctx context.Context) ([]*models.Dataset, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockDatasetService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *mockDatasetService) ResolveSchema(ctx context.Context, id uuid.UUID, refresh bool) ([]models.ColumnSchema, error) {
	if m.ResolveSchemaFunc != nil {
		return m.ResolveSchemaFunc(ctx, id, refresh)
	}
	return nil, nil
}

func (m *mockDatasetService) OpenConnector(ctx context.Context, dataset *models.Dataset) (connectors.Connector, error) {
	return nil, nil
}

// mockTransformService delegates to a function field.
type mockTransformService struct {
	GeneratePreviewFunc func(ctx context.Context, req *models.TransformRequest) (*models.TransformPreview, error)
}

func (m *mockTransformService) GeneratePreview(ctx context.Context, req *models.TransformRequest) (*models.TransformPreview, error) {
	if m.GeneratePreviewFunc != nil {
		return m.GeneratePreviewFunc(ctx, req)
	}
	return nil, nil
}

// mockPipelineService delegates to function fields.
type mockPipelineService struct {
	SaveFunc           func(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, *models.ValidationResult, error)
	GetFunc            func(ctx context.Context, id uuid.UUID) (*models.Pipeline, error)
	ListFunc           func(ctx context.Context) ([]*models.Pipeline, error)
	DeleteFunc         func(ctx context.Context, id uuid.UUID) error
	ValidateFunc       func(ctx context.Context, pipeline *models.Pipeline) *models.ValidationResult
	ExecutionOrderFunc func(pipeline *models.Pipeline) ([]string, error)
}

func (m *mockPipelineService) Save(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, *models.ValidationResult, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, pipeline)
	}
	return pipeline, &models.ValidationResult{}, nil
}

func (m *mockPipelineService) Get(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPipelineService) List(ctx context.Context) ([]*models.Pipeline, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockPipelineService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *mockPipelineService) Validate(ctx context.Context, pipeline *models.Pipeline) *models.ValidationResult {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, pipeline)
	}
	return &models.ValidationResult{}
}

func (m *mockPipelineService) ExecutionOrder(pipeline *models.Pipeline) ([]string, error) {
	if m.ExecutionOrderFunc != nil {
		return m.ExecutionOrderFunc(pipeline)
	}
	return nil, nil
}

// mockExecutionService delegates to function fields.
type mockExecutionService struct {
	RunFunc             func(ctx context.Context, pipelineID uuid.UUID) (*models.Execution, error)
	GetFunc             func(ctx context.Context, id uuid.UUID) (*models.Execution, error)
	ListForPipelineFunc func(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*models.ExecutionSummary, error)
}

func (m *mockExecutionService) Run(ctx context.Context, pipelineID uuid.UUID) (*models.Execution, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, pipelineID)
	}
	return nil, nil
}

func (m *mockExecutionService) Get(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockExecutionService) ListForPipeline(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*models.ExecutionSummary, error) {
	if m.ListForPipelineFunc != nil {
		return m.ListForPipelineFunc(ctx, pipelineID, limit)
	}
	return nil, nil
}
