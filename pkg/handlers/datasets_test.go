package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

func newDatasetsServer(svc *mockDatasetService) *http.ServeMux {
	mux := http.NewServeMux()
	NewDatasetsHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestDatasetsHandler_Create(t *testing.T) {
	linkedServiceID := uuid.New()
	svc := &mockDatasetService{
		CreateFunc: func(ctx context.Context, name string, lsID uuid.UUID, tableRef string) (*models.Dataset, error) {
			assert.Equal(t, linkedServiceID, lsID)
			return &models.Dataset{ID: uuid.New(), Name: name, LinkedServiceID: lsID, TableRef: tableRef}, nil
		},
	}
	mux := newDatasetsServer(svc)

	body := `{"name":"orders","linked_service_id":"` + linkedServiceID.String() + `","table_ref":"public.orders"}`
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var response DatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "orders", response.Name)
	assert.Equal(t, "public.orders", response.TableRef)
}

func TestDatasetsHandler_CreateInvalidLinkedServiceID(t *testing.T) {
	mux := newDatasetsServer(&mockDatasetService{})

	body := `{"name":"orders","linked_service_id":"nope","table_ref":"public.orders"}`
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_linked_service_id")
}

func TestDatasetsHandler_Schema(t *testing.T) {
	var gotRefresh bool
	svc := &mockDatasetService{
		ResolveSchemaFunc: func(ctx context.Context, id uuid.UUID, refresh bool) ([]models.ColumnSchema, error) {
			gotRefresh = refresh
			return []models.ColumnSchema{{Name: "id", DataType: "bigint"}}, nil
		},
	}
	mux := newDatasetsServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+uuid.New().String()+"/schema?refresh=true", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotRefresh)
	var response SchemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Columns, 1)
	assert.Equal(t, "id", response.Columns[0].Name)
}

func TestDatasetsHandler_SchemaResolutionFailure(t *testing.T) {
	svc := &mockDatasetService{
		ResolveSchemaFunc: func(ctx context.Context, id uuid.UUID, refresh bool) ([]models.ColumnSchema, error) {
			return nil, &apperrors.SchemaResolutionError{Reference: "public.orders", Cause: errors.New("table does not exist")}
		},
	}
	mux := newDatasetsServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+uuid.New().String()+"/schema", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "schema_resolution_failed")
}

func TestDatasetsHandler_DeleteConflict(t *testing.T) {
	svc := &mockDatasetService{
		DeleteFunc: func(ctx context.Context, id uuid.UUID) error {
			return &apperrors.ConflictError{Message: "dataset is referenced by 1 pipeline(s)"}
		},
	}
	mux := newDatasetsServer(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/datasets/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDatasetsHandler_List(t *testing.T) {
	svc := &mockDatasetService{
		ListFunc: func(ctx context.Context) ([]*models.Dataset, error) {
			return []*models.Dataset{
				{ID: uuid.New(), Name: "orders"},
				{ID: uuid.New(), Name: "customers"},
			}, nil
		},
	}
	mux := newDatasetsServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response []DatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response, 2)
}
