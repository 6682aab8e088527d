package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
)

func TestServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{"validation", apperrors.NewValidationError("name", "name is required"), http.StatusBadRequest, "validation_failed"},
		{"cycle", &apperrors.CycleError{NodeIDs: []string{"a", "b"}}, http.StatusBadRequest, "cycle_detected"},
		{"conflict", &apperrors.ConflictError{Message: "taken"}, http.StatusConflict, "conflict"},
		{"transformation", apperrors.NewTransformationError(apperrors.StageExecution, nil, "column missing"), http.StatusUnprocessableEntity, "transformation_failed"},
		{"schema resolution", &apperrors.SchemaResolutionError{Reference: "t", Cause: errors.New("boom")}, http.StatusBadGateway, "schema_resolution_failed"},
		{"connector", &apperrors.ConnectorError{Op: apperrors.OpRead, Cause: errors.New("down")}, http.StatusBadGateway, "connector_failed"},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ServiceError(rec, zap.NewNop(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestServiceError_SanitizesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("dial failed: password=hunter2 host=db")
	ServiceError(rec, zap.NewNop(), err)

	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "[REDACTED]")
}

func TestWriteJSON_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]string{"id": "1"}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
