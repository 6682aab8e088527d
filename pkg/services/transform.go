package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/llm"
	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/prompts"
)

// defaultPreviewRowLimit bounds preview responses when the request does
// not name its own row limit.
const defaultPreviewRowLimit = 100

// TransformService defines the interface for transformation code
// generation and preview.
type TransformService interface {
	// GeneratePreview generates a transformation program from the
	// request prompt and executes it against sampled input data. The
	// returned code is exactly what ran to produce the preview.
	GeneratePreview(ctx context.Context, req *models.TransformRequest) (*models.TransformPreview, error)
}

// transformService implements TransformService.
type transformService struct {
	datasets   DatasetService
	factory    llm.GeneratorFactory
	sampleRows int
	logger     *zap.Logger
}

// NewTransformService creates a new transform service.
func NewTransformService(
	datasets DatasetService,
	factory llm.GeneratorFactory,
	sampleRows int,
	logger *zap.Logger,
) TransformService {
	return &transformService{
		datasets:   datasets,
		factory:    factory,
		sampleRows: sampleRows,
		logger:     logger,
	}
}

func (s *transformService) GeneratePreview(ctx context.Context, req *models.TransformRequest) (*models.TransformPreview, error) {
	if req.Prompt == "" {
		return nil, apperrors.NewValidationError("prompt", "prompt is required")
	}
	if len(req.Sources) == 0 {
		return nil, apperrors.NewValidationError("sources", "at least one input dataset is required")
	}
	rowLimit := req.RowLimit
	if rowLimit <= 0 {
		rowLimit = defaultPreviewRowLimit
	}

	tables, inputs, err := s.loadInputs(ctx, req)
	if err != nil {
		return nil, err
	}

	generator, err := s.factory.ForModel(req.Model)
	if err != nil {
		return nil, apperrors.NewTransformationError(apperrors.StageGeneration, err, "no generator for model %q: %v", req.Model, err)
	}

	prompt := prompts.BuildTransformPrompt(req.Prompt, tables)
	raw, err := generator.GenerateCode(ctx, prompts.TransformSystemMessage, prompt)
	if err != nil {
		return nil, apperrors.NewTransformationError(apperrors.StageGeneration, err, "model request failed: %v", err)
	}

	code, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, apperrors.NewTransformationError(apperrors.StageGeneration, err, "model output is not a program: %v", err)
	}

	program, err := dataflow.ParseProgram(code)
	if err != nil {
		return nil, apperrors.NewTransformationError(apperrors.StageGeneration, err, "invalid program: %v", err)
	}
	for _, name := range program.Inputs {
		if _, ok := inputs[name]; !ok {
			return nil, apperrors.NewTransformationError(apperrors.StageGeneration, nil, "program references unknown input %q", name)
		}
	}

	result, err := dataflow.Execute(program, inputs)
	if err != nil {
		return nil, apperrors.NewTransformationError(apperrors.StageExecution, err, "%v", err)
	}

	s.logger.Info("generated transformation preview",
		zap.String("model", generator.Model()),
		zap.Int("inputs", len(req.Sources)),
		zap.Int("result_rows", result.RowCount()))

	preview := result.Head(rowLimit)
	columns := make([]models.ColumnSchema, len(preview.Columns))
	for i, col := range preview.Columns {
		columns[i] = models.ColumnSchema{Name: col.Name, DataType: col.Type, Nullable: col.Nullable}
	}
	return &models.TransformPreview{
		GeneratedCode: code,
		Model:         generator.Model(),
		Columns:       columns,
		Rows:          preview.Rows,
		RowCount:      result.RowCount(),
	}, nil
}

// loadInputs resolves each source dataset's schema and reads a bounded
// sample of its selected columns, keyed by dataset name for the program
// to reference.
func (s *transformService) loadInputs(ctx context.Context, req *models.TransformRequest) ([]prompts.TableSchema, map[string]*dataflow.Frame, error) {
	tables := make([]prompts.TableSchema, 0, len(req.Sources))
	inputs := make(map[string]*dataflow.Frame, len(req.Sources))

	for _, source := range req.Sources {
		dataset, err := s.datasets.Get(ctx, source.DatasetID)
		if err != nil {
			return nil, nil, err
		}

		schema, err := s.datasets.ResolveSchema(ctx, source.DatasetID, false)
		if err != nil {
			return nil, nil, err
		}
		if len(source.SelectedColumns) > 0 {
			schema, err = selectColumns(schema, source.SelectedColumns, dataset.Name)
			if err != nil {
				return nil, nil, err
			}
		}

		conn, err := s.datasets.OpenConnector(ctx, dataset)
		if err != nil {
			return nil, nil, &apperrors.ConnectorError{Op: apperrors.OpRead, Cause: err}
		}
		sample, err := conn.Read(ctx, dataset.TableRef, source.SelectedColumns, s.sampleRows)
		conn.Close()
		if err != nil {
			return nil, nil, &apperrors.ConnectorError{Op: apperrors.OpRead, Timeout: ctx.Err() != nil, Cause: err}
		}

		if _, dup := inputs[dataset.Name]; dup {
			return nil, nil, apperrors.NewValidationError("sources", "dataset %q is listed twice", dataset.Name)
		}
		tables = append(tables, prompts.TableSchema{Name: dataset.Name, Columns: schema, Sample: sample})
		inputs[dataset.Name] = sample
	}
	return tables, inputs, nil
}

// selectColumns narrows a resolved schema to the selected columns,
// keeping the selection order the sample read uses.
func selectColumns(schema []models.ColumnSchema, selected []string, datasetName string) ([]models.ColumnSchema, error) {
	byName := make(map[string]models.ColumnSchema, len(schema))
	for _, col := range schema {
		byName[col.Name] = col
	}
	narrowed := make([]models.ColumnSchema, 0, len(selected))
	for _, name := range selected {
		col, ok := byName[name]
		if !ok {
			return nil, apperrors.NewValidationError("sources", "selected column %q is not in dataset %q schema", name, datasetName)
		}
		narrowed = append(narrowed, col)
	}
	return narrowed, nil
}

var _ TransformService = (*transformService)(nil)
