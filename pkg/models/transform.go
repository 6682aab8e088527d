package models

import "github.com/google/uuid"

// TransformSource names one input dataset for a preview, optionally
// narrowed to a subset of its columns. An empty SelectedColumns reads
// every column.
type TransformSource struct {
	DatasetID       uuid.UUID `json:"dataset_id"`
	SelectedColumns []string  `json:"selected_columns,omitempty"`
}

// TransformRequest asks for transformation code to be generated and
// previewed against sampled input data. RowLimit bounds how many result
// rows the preview response carries; zero means the default bound.
type TransformRequest struct {
	Sources  []TransformSource `json:"sources"`
	Prompt   string            `json:"prompt"`
	Model    string            `json:"model,omitempty"`
	RowLimit int               `json:"row_limit,omitempty"`
}

// TransformPreview carries the generated code together with the result
// of running it over sampled inputs. Approval decisions are made against
// exactly this code; it is stored verbatim on the transform node.
type TransformPreview struct {
	GeneratedCode string         `json:"generated_code"`
	Model         string         `json:"model"`
	Columns       []ColumnSchema `json:"columns"`
	Rows          [][]any        `json:"rows"`
	RowCount      int            `json:"row_count"`
}
