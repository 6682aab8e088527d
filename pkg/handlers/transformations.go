package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/services"
)

// PreviewSource names one input dataset for a preview, optionally
// narrowed to a subset of its columns.
type PreviewSource struct {
	DatasetID       string   `json:"dataset_id"`
	SelectedColumns []string `json:"selected_columns,omitempty"`
}

// PreviewRequest asks for a transformation program to be generated and
// executed against sampled input data.
type PreviewRequest struct {
	Sources  []PreviewSource `json:"sources"`
	Prompt   string          `json:"prompt"`
	Model    string          `json:"model,omitempty"`
	RowLimit int             `json:"row_limit,omitempty"`
}

// TransformationsHandler handles transformation preview requests.
type TransformationsHandler struct {
	transforms services.TransformService
	logger     *zap.Logger
}

// NewTransformationsHandler creates a new transformations handler.
func NewTransformationsHandler(transforms services.TransformService, logger *zap.Logger) *TransformationsHandler {
	return &TransformationsHandler{transforms: transforms, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *TransformationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/transformations/preview", h.Preview)
}

// Preview handles POST /api/transformations/preview. The response pairs
// the generated program with the rows it produced, so approval is always
// of code that actually ran.
func (h *TransformationsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sources := make([]models.TransformSource, len(req.Sources))
	for i, src := range req.Sources {
		id, err := uuid.Parse(src.DatasetID)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_dataset_id", "Invalid dataset ID format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		sources[i] = models.TransformSource{DatasetID: id, SelectedColumns: src.SelectedColumns}
	}

	preview, err := h.transforms.GeneratePreview(r.Context(), &models.TransformRequest{
		Sources:  sources,
		Prompt:   req.Prompt,
		Model:    req.Model,
		RowLimit: req.RowLimit,
	})
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, preview); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
