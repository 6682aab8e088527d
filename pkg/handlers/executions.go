package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/services"
)

// ExecutionsHandler handles pipeline run and history requests.
type ExecutionsHandler struct {
	executions services.ExecutionService
	logger     *zap.Logger
}

// NewExecutionsHandler creates a new executions handler.
func NewExecutionsHandler(executions services.ExecutionService, logger *zap.Logger) *ExecutionsHandler {
	return &ExecutionsHandler{executions: executions, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *ExecutionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pipelines/{id}/executions", h.Run)
	mux.HandleFunc("GET /api/pipelines/{id}/executions", h.ListForPipeline)
	mux.HandleFunc("GET /api/executions/{id}", h.Get)
}

// Run handles POST /api/pipelines/{id}/executions. The run is
// asynchronous: the response is the pending execution record, polled
// to completion via GET /api/executions/{id}.
func (h *ExecutionsHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	execution, err := h.executions.Run(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusAccepted, execution); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListForPipeline handles GET /api/pipelines/{id}/executions, newest
// first; limit is bounded by the ?limit query parameter.
func (h *ExecutionsHandler) ListForPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "Invalid limit parameter"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	summaries, err := h.executions.ListForPipeline(r.Context(), id, limit)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, summaries); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/executions/{id}.
func (h *ExecutionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	execution, err := h.executions.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, execution); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
