package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/services"
)

// SavePipelineRequest is the POST/PUT body: the whole graph, every time.
type SavePipelineRequest struct {
	Name  string                `json:"name"`
	Nodes []models.PipelineNode `json:"nodes"`
	Edges []models.PipelineEdge `json:"edges"`
}

// SavePipelineResponse pairs the saved pipeline with its validation
// result. Validation problems do not block saving a draft.
type SavePipelineResponse struct {
	Pipeline   *models.Pipeline         `json:"pipeline"`
	Validation *models.ValidationResult `json:"validation"`
}

// PipelinesHandler handles pipeline graph requests.
type PipelinesHandler struct {
	pipelines services.PipelineService
	logger    *zap.Logger
}

// NewPipelinesHandler creates a new pipelines handler.
func NewPipelinesHandler(pipelines services.PipelineService, logger *zap.Logger) *PipelinesHandler {
	return &PipelinesHandler{pipelines: pipelines, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *PipelinesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pipelines", h.List)
	mux.HandleFunc("POST /api/pipelines", h.Create)
	mux.HandleFunc("GET /api/pipelines/{id}", h.Get)
	mux.HandleFunc("PUT /api/pipelines/{id}", h.Update)
	mux.HandleFunc("DELETE /api/pipelines/{id}", h.Delete)
	mux.HandleFunc("POST /api/pipelines/{id}/validate", h.Validate)
}

// List handles GET /api/pipelines.
func (h *PipelinesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.pipelines.List(r.Context())
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, list); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/pipelines.
func (h *PipelinesHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, uuid.Nil, http.StatusCreated)
}

// Update handles PUT /api/pipelines/{id}. The stored graph is replaced
// wholesale; nodes and edges omitted from the body are gone.
func (h *PipelinesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}
	h.save(w, r, id, http.StatusOK)
}

func (h *PipelinesHandler) save(w http.ResponseWriter, r *http.Request, id uuid.UUID, statusCode int) {
	var req SavePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	pipeline := &models.Pipeline{
		ID:    id,
		Name:  req.Name,
		Nodes: req.Nodes,
		Edges: req.Edges,
	}
	saved, validation, err := h.pipelines.Save(r.Context(), pipeline)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, statusCode, SavePipelineResponse{Pipeline: saved, Validation: validation}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/pipelines/{id}.
func (h *PipelinesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	pipeline, err := h.pipelines.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, pipeline); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/pipelines/{id}.
func (h *PipelinesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.pipelines.Delete(r.Context(), id); err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate handles POST /api/pipelines/{id}/validate. Every problem in
// the graph is reported, not just the first.
func (h *PipelinesHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	pipeline, err := h.pipelines.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	result := h.pipelines.Validate(r.Context(), pipeline)
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
