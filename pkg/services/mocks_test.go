package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// Test encryption key (32 bytes, base64 encoded).
const testEncryptionKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

// mockLinkedServiceRepo is a configurable in-memory repository mock.
type mockLinkedServiceRepo struct {
	services map[uuid.UUID]*models.LinkedService

	createErr error
	getErr    error
	updateErr error
	deleteErr error

	updated *models.LinkedService
	deleted []uuid.UUID
}

func newMockLinkedServiceRepo() *mockLinkedServiceRepo {
	return &mockLinkedServiceRepo{services: make(map[uuid.UUID]*models.LinkedService)}
}

func (m *mockLinkedServiceRepo) Create(ctx context.Context, service *models.LinkedService) error {
	if m.createErr != nil {
		return m.createErr
	}
	if service.ID == uuid.Nil {
		service.ID = uuid.New()
	}
	stored := *service
	stored.Config = copyConfig(service.Config)
	m.services[service.ID] = &stored
	return nil
}

func (m *mockLinkedServiceRepo) Get(ctx context.Context, id uuid.UUID) (*models.LinkedService, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	service, ok := m.services[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *service
	out.Config = copyConfig(service.Config)
	return &out, nil
}

func (m *mockLinkedServiceRepo) GetByName(ctx context.Context, name string) (*models.LinkedService, error) {
	for _, service := range m.services {
		if service.Name == name {
			out := *service
			out.Config = copyConfig(service.Config)
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockLinkedServiceRepo) List(ctx context.Context) ([]*models.LinkedService, error) {
	var out []*models.LinkedService
	for _, service := range m.services {
		copied := *service
		copied.Config = copyConfig(service.Config)
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockLinkedServiceRepo) Update(ctx context.Context, service *models.LinkedService) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.services[service.ID]; !ok {
		return apperrors.ErrNotFound
	}
	stored := *service
	stored.Config = copyConfig(service.Config)
	m.services[service.ID] = &stored
	m.updated = &stored
	return nil
}

func (m *mockLinkedServiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.services[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.services, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func copyConfig(config map[string]string) map[string]string {
	out := make(map[string]string, len(config))
	for k, v := range config {
		out[k] = v
	}
	return out
}

// mockDatasetRepo is a configurable in-memory repository mock.
type mockDatasetRepo struct {
	datasets map[uuid.UUID]*models.Dataset

	createErr error
	getErr    error
	updateErr error
	deleteErr error

	countByService int
	countErr       error

	updateCalls int
}

func newMockDatasetRepo() *mockDatasetRepo {
	return &mockDatasetRepo{datasets: make(map[uuid.UUID]*models.Dataset)}
}

func (m *mockDatasetRepo) Create(ctx context.Context, dataset *models.Dataset) error {
	if m.createErr != nil {
		return m.createErr
	}
	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}
	stored := *dataset
	m.datasets[dataset.ID] = &stored
	return nil
}

func (m *mockDatasetRepo) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	dataset, ok := m.datasets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *dataset
	return &out, nil
}

func (m *mockDatasetRepo) GetByName(ctx context.Context, name string) (*models.Dataset, error) {
	for _, dataset := range m.datasets {
		if dataset.Name == name {
			out := *dataset
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDatasetRepo) List(ctx context.Context) ([]*models.Dataset, error) {
	var out []*models.Dataset
	for _, dataset := range m.datasets {
		copied := *dataset
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockDatasetRepo) Update(ctx context.Context, dataset *models.Dataset) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.datasets[dataset.ID]; !ok {
		return apperrors.ErrNotFound
	}
	stored := *dataset
	m.datasets[dataset.ID] = &stored
	return nil
}

func (m *mockDatasetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.datasets[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.datasets, id)
	return nil
}

func (m *mockDatasetRepo) CountByLinkedService(ctx context.Context, linkedServiceID uuid.UUID) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countByService, nil
}

// mockPipelineRepo is a configurable in-memory repository mock.
type mockPipelineRepo struct {
	pipelines map[uuid.UUID]*models.Pipeline

	createErr error
	getErr    error
	updateErr error
	deleteErr error

	countReferencing int
	countErr         error
}

func newMockPipelineRepo() *mockPipelineRepo {
	return &mockPipelineRepo{pipelines: make(map[uuid.UUID]*models.Pipeline)}
}

func (m *mockPipelineRepo) Create(ctx context.Context, pipeline *models.Pipeline) error {
	if m.createErr != nil {
		return m.createErr
	}
	if pipeline.ID == uuid.Nil {
		pipeline.ID = uuid.New()
	}
	stored := *pipeline
	m.pipelines[pipeline.ID] = &stored
	return nil
}

func (m *mockPipelineRepo) Get(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	pipeline, ok := m.pipelines[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *pipeline
	return &out, nil
}

func (m *mockPipelineRepo) List(ctx context.Context) ([]*models.Pipeline, error) {
	var out []*models.Pipeline
	for _, pipeline := range m.pipelines {
		copied := *pipeline
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockPipelineRepo) Update(ctx context.Context, pipeline *models.Pipeline) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.pipelines[pipeline.ID]; !ok {
		return apperrors.ErrNotFound
	}
	stored := *pipeline
	m.pipelines[pipeline.ID] = &stored
	return nil
}

func (m *mockPipelineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.pipelines[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.pipelines, id)
	return nil
}

func (m *mockPipelineRepo) CountReferencingDataset(ctx context.Context, datasetID uuid.UUID) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countReferencing, nil
}

// mockExecutionRepo is a configurable in-memory repository mock. Runs
// persist from a background goroutine, so access is serialized.
type mockExecutionRepo struct {
	mu         sync.Mutex
	executions map[uuid.UUID]*models.Execution

	createErr error
	updateErr error

	updateCalls int
}

func newMockExecutionRepo() *mockExecutionRepo {
	return &mockExecutionRepo{executions: make(map[uuid.UUID]*models.Execution)}
}

func (m *mockExecutionRepo) Create(ctx context.Context, execution *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}
	m.executions[execution.ID] = copyExecution(execution)
	return nil
}

func (m *mockExecutionRepo) Get(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	execution, ok := m.executions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyExecution(execution), nil
}

func (m *mockExecutionRepo) Update(ctx context.Context, execution *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.executions[execution.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.executions[execution.ID] = copyExecution(execution)
	return nil
}

func (m *mockExecutionRepo) ListByPipeline(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*models.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Execution
	for _, execution := range m.executions {
		if execution.PipelineID == pipelineID && len(out) < limit {
			out = append(out, copyExecution(execution))
		}
	}
	return out, nil
}

func copyExecution(e *models.Execution) *models.Execution {
	out := *e
	out.NodeResults = make(map[string]models.NodeResult, len(e.NodeResults))
	for k, v := range e.NodeResults {
		out.NodeResults[k] = v
	}
	return &out
}

// mockOpener hands out a fixed connector.
type mockOpener struct {
	conn connectors.Connector
	err  error

	opened   int
	lastType models.ServiceType
}

func (m *mockOpener) Open(ctx context.Context, serviceType models.ServiceType, config map[string]string) (connectors.Connector, error) {
	m.opened++
	m.lastType = serviceType
	if m.err != nil {
		return nil, m.err
	}
	return m.conn, nil
}

// mockLinkedServices implements LinkedServiceService over canned data.
type mockLinkedServices struct {
	services map[uuid.UUID]*models.LinkedService
	getErr   error
}

func newMockLinkedServices() *mockLinkedServices {
	return &mockLinkedServices{services: make(map[uuid.UUID]*models.LinkedService)}
}

func (m *mockLinkedServices) Create(ctx context.Context, name string, serviceType models.ServiceType, config map[string]string) (*models.LinkedService, error) {
	return nil, nil
}

func (m *mockLinkedServices) Get(ctx context.Context, id uuid.UUID) (*models.LinkedService, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	service, ok := m.services[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return service, nil
}

func (m *mockLinkedServices) List(ctx context.Context) ([]*models.LinkedService, error) {
	return nil, nil
}

func (m *mockLinkedServices) Update(ctx context.Context, id uuid.UUID, name string, config map[string]string) (*models.LinkedService, error) {
	return nil, nil
}

func (m *mockLinkedServices) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (m *mockLinkedServices) Test(ctx context.Context, id uuid.UUID) (*models.ConnectionTestResult, error) {
	return nil, nil
}

func (m *mockLinkedServices) TestConfig(ctx context.Context, serviceType models.ServiceType, config map[string]string) *models.ConnectionTestResult {
	return nil
}

// mockDatasets implements DatasetService over canned data.
type mockDatasets struct {
	datasets map[uuid.UUID]*models.Dataset
	schemas  map[uuid.UUID][]models.ColumnSchema
	conn     connectors.Connector

	getErr    error
	schemaErr error
	openErr   error
}

func newMockDatasets() *mockDatasets {
	return &mockDatasets{
		datasets: make(map[uuid.UUID]*models.Dataset),
		schemas:  make(map[uuid.UUID][]models.ColumnSchema),
	}
}

func (m *mockDatasets) Create(ctx context.Context, name string, linkedServiceID uuid.UUID, tableRef string) (*models.Dataset, error) {
	return nil, nil
}

func (m *mockDatasets) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	dataset, ok := m.datasets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return dataset, nil
}

func (m *mockDatasets) List(ctx context.Context) ([]*models.Dataset, error) {
	return nil, nil
}

func (m *mockDatasets) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (m *mockDatasets) ResolveSchema(ctx context.Context, id uuid.UUID, refresh bool) ([]models.ColumnSchema, error) {
	if m.schemaErr != nil {
		return nil, m.schemaErr
	}
	return m.schemas[id], nil
}

func (m *mockDatasets) OpenConnector(ctx context.Context, dataset *models.Dataset) (connectors.Connector, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.conn, nil
}
