package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/logging"
	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/services"
)

// LinkedServiceResponse is the API shape of a linked service. Config is
// sanitized: secret values never leave the service layer in clear text.
type LinkedServiceResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ServiceType string            `json:"service_type"`
	Config      map[string]string `json:"config"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

func toLinkedServiceResponse(s *models.LinkedService) LinkedServiceResponse {
	return LinkedServiceResponse{
		ID:          s.ID.String(),
		Name:        s.Name,
		ServiceType: string(s.ServiceType),
		Config:      logging.SanitizeConnectionConfig(s.Config),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateLinkedServiceRequest is the POST body.
type CreateLinkedServiceRequest struct {
	Name        string            `json:"name"`
	ServiceType string            `json:"service_type"`
	Config      map[string]string `json:"config"`
}

// UpdateLinkedServiceRequest is the PUT body. The service type is
// immutable and therefore absent.
type UpdateLinkedServiceRequest struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
}

// TestLinkedServiceRequest probes an unsaved configuration.
type TestLinkedServiceRequest struct {
	ServiceType string            `json:"service_type"`
	Config      map[string]string `json:"config"`
}

// LinkedServicesHandler handles linked service registry requests.
type LinkedServicesHandler struct {
	services services.LinkedServiceService
	logger   *zap.Logger
}

// NewLinkedServicesHandler creates a new linked services handler.
func NewLinkedServicesHandler(linkedServices services.LinkedServiceService, logger *zap.Logger) *LinkedServicesHandler {
	return &LinkedServicesHandler{services: linkedServices, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *LinkedServicesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/linked-services", h.List)
	mux.HandleFunc("POST /api/linked-services", h.Create)
	mux.HandleFunc("POST /api/linked-services/test", h.TestConfig)
	mux.HandleFunc("GET /api/linked-services/{id}", h.Get)
	mux.HandleFunc("PUT /api/linked-services/{id}", h.Update)
	mux.HandleFunc("DELETE /api/linked-services/{id}", h.Delete)
	mux.HandleFunc("POST /api/linked-services/{id}/test", h.Test)
}

// List handles GET /api/linked-services.
func (h *LinkedServicesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.services.List(r.Context())
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	response := make([]LinkedServiceResponse, len(list))
	for i, s := range list {
		response[i] = toLinkedServiceResponse(s)
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/linked-services.
func (h *LinkedServicesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkedServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	service, err := h.services.Create(r.Context(), req.Name, models.ServiceType(req.ServiceType), req.Config)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, toLinkedServiceResponse(service)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/linked-services/{id}.
func (h *LinkedServicesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	service, err := h.services.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, toLinkedServiceResponse(service)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/linked-services/{id}.
func (h *LinkedServicesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateLinkedServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	service, err := h.services.Update(r.Context(), id, req.Name, req.Config)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, toLinkedServiceResponse(service)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/linked-services/{id}.
func (h *LinkedServicesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.services.Delete(r.Context(), id); err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/linked-services/{id}/test.
func (h *LinkedServicesHandler) Test(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.services.Test(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// TestConfig handles POST /api/linked-services/test for configurations
// that have not been saved yet.
func (h *LinkedServicesHandler) TestConfig(w http.ResponseWriter, r *http.Request) {
	var req TestLinkedServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result := h.services.TestConfig(r.Context(), models.ServiceType(req.ServiceType), req.Config)
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parseID extracts and parses the {id} path value, writing the error
// response itself when the value is not a UUID.
func parseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Invalid ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
