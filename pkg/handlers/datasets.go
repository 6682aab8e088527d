package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/services"
)

// DatasetResponse is the API shape of a dataset.
type DatasetResponse struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	LinkedServiceID string                `json:"linked_service_id"`
	TableRef        string                `json:"table_ref"`
	CachedSchema    []models.ColumnSchema `json:"cached_schema,omitempty"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at"`
}

func toDatasetResponse(d *models.Dataset) DatasetResponse {
	return DatasetResponse{
		ID:              d.ID.String(),
		Name:            d.Name,
		LinkedServiceID: d.LinkedServiceID.String(),
		TableRef:        d.TableRef,
		CachedSchema:    d.CachedSchema,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       d.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateDatasetRequest is the POST body.
type CreateDatasetRequest struct {
	Name            string `json:"name"`
	LinkedServiceID string `json:"linked_service_id"`
	TableRef        string `json:"table_ref"`
}

// SchemaResponse carries a resolved schema.
type SchemaResponse struct {
	Columns []models.ColumnSchema `json:"columns"`
}

// DatasetsHandler handles dataset catalog requests.
type DatasetsHandler struct {
	datasets services.DatasetService
	logger   *zap.Logger
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(datasets services.DatasetService, logger *zap.Logger) *DatasetsHandler {
	return &DatasetsHandler{datasets: datasets, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *DatasetsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasets", h.List)
	mux.HandleFunc("POST /api/datasets", h.Create)
	mux.HandleFunc("GET /api/datasets/{id}", h.Get)
	mux.HandleFunc("DELETE /api/datasets/{id}", h.Delete)
	mux.HandleFunc("GET /api/datasets/{id}/schema", h.Schema)
}

// List handles GET /api/datasets.
func (h *DatasetsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.datasets.List(r.Context())
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	response := make([]DatasetResponse, len(list))
	for i, d := range list {
		response[i] = toDatasetResponse(d)
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/datasets.
func (h *DatasetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	linkedServiceID, err := uuid.Parse(req.LinkedServiceID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_linked_service_id", "Invalid linked service ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	dataset, err := h.datasets.Create(r.Context(), req.Name, linkedServiceID, req.TableRef)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, toDatasetResponse(dataset)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/datasets/{id}.
func (h *DatasetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	dataset, err := h.datasets.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, toDatasetResponse(dataset)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/datasets/{id}.
func (h *DatasetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.datasets.Delete(r.Context(), id); err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Schema handles GET /api/datasets/{id}/schema. Pass refresh=true to
// bypass the cached schema and re-introspect the source.
func (h *DatasetsHandler) Schema(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	refresh := r.URL.Query().Get("refresh") == "true"
	schema, err := h.datasets.ResolveSchema(r.Context(), id, refresh)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, SchemaResponse{Columns: schema}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
