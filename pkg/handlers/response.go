package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError maps a service-layer error onto the HTTP taxonomy and
// writes it. Error messages pass through the log sanitizer so connection
// secrets never reach a response body.
func ServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		valErr       *apperrors.ValidationError
		conflictErr  *apperrors.ConflictError
		schemaErr    *apperrors.SchemaResolutionError
		transformErr *apperrors.TransformationError
		cycleErr     *apperrors.CycleError
		connErr      *apperrors.ConnectorError
	)

	var statusCode int
	var errorCode string
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		statusCode, errorCode = http.StatusNotFound, "not_found"
	case errors.As(err, &valErr):
		statusCode, errorCode = http.StatusBadRequest, "validation_failed"
	case errors.As(err, &cycleErr):
		statusCode, errorCode = http.StatusBadRequest, "cycle_detected"
	case errors.As(err, &conflictErr), errors.Is(err, apperrors.ErrConflict):
		statusCode, errorCode = http.StatusConflict, "conflict"
	case errors.As(err, &transformErr):
		statusCode, errorCode = http.StatusUnprocessableEntity, "transformation_failed"
	case errors.As(err, &schemaErr):
		statusCode, errorCode = http.StatusBadGateway, "schema_resolution_failed"
	case errors.As(err, &connErr):
		statusCode, errorCode = http.StatusBadGateway, "connector_failed"
	default:
		statusCode, errorCode = http.StatusInternalServerError, "internal_error"
		logger.Error("request failed", zap.Error(err))
	}

	if writeErr := ErrorResponse(w, statusCode, errorCode, logging.SanitizeError(err)); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
