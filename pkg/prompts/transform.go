package prompts

import (
	"fmt"
	"strings"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// TransformSystemMessage instructs the model to emit a transformation
// program and nothing else. The DSL reference mirrors what the
// interpreter accepts; anything outside it fails structural validation.
const TransformSystemMessage = `You are a data transformation assistant. You translate a user's natural language request into a JSON transformation program.

Respond with ONLY the JSON program. No prose, no markdown fences.

A program has this shape:
{"inputs": ["<table>", ...], "steps": [<step>, ...], "output": "<name>"}

Each step binds a fresh name with "as" and uses one op:
- {"op": "select", "as": N, "input": T, "columns": ["c1", ...]}
- {"op": "rename", "as": N, "input": T, "rename": {"old": "new"}}
- {"op": "filter", "as": N, "input": T, "predicate": P}
- {"op": "join", "as": N, "left": T1, "right": T2, "kind": "inner"|"left", "on": [{"left": "c1", "right": "c2"}]}
- {"op": "union", "as": N, "tables": [T1, T2, ...]}
- {"op": "aggregate", "as": N, "input": T, "group_by": ["c", ...], "aggregations": [{"func": "count"|"sum"|"avg"|"min"|"max", "column": "c", "as": "name"}]}
- {"op": "sort", "as": N, "input": T, "by": [{"column": "c", "desc": true|false}]}
- {"op": "limit", "as": N, "input": T, "n": <int>}

A predicate P is one of:
- {"column": "c", "cmp": "eq"|"ne"|"lt"|"le"|"gt"|"ge"|"contains"|"is_null"|"not_null", "value": <scalar>}
- {"and": [P, ...]}, {"or": [P, ...]}, {"not": P}

Use only the input tables and columns listed in the request. Reference tables by the exact names given.`

// TableSchema describes one input table for prompt construction.
type TableSchema struct {
	Name    string
	Columns []models.ColumnSchema
	Sample  *dataflow.Frame // optional sample rows
}

// sampleRowsInPrompt caps how many sample rows each table contributes.
const sampleRowsInPrompt = 5

// BuildTransformPrompt creates the user prompt for transformation code
// generation: the request, each input table's schema, and a few sample
// rows so the model sees real value shapes.
func BuildTransformPrompt(request string, tables []TableSchema) string {
	var prompt strings.Builder

	prompt.WriteString("# Transformation Request\n\n")
	prompt.WriteString(request)
	prompt.WriteString("\n\n## Input Tables\n\n")

	for _, table := range tables {
		prompt.WriteString(fmt.Sprintf("### %s\n\nColumns:\n", table.Name))
		for _, col := range table.Columns {
			nullable := ""
			if col.Nullable {
				nullable = ", nullable"
			}
			prompt.WriteString(fmt.Sprintf("- %s (%s%s)\n", col.Name, col.DataType, nullable))
		}

		if table.Sample != nil && table.Sample.RowCount() > 0 {
			prompt.WriteString("\nSample rows:\n")
			writeSample(&prompt, table.Sample)
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("Produce a program whose output satisfies the request.")
	return prompt.String()
}

func writeSample(prompt *strings.Builder, sample *dataflow.Frame) {
	prompt.WriteString("| " + strings.Join(sample.ColumnNames(), " | ") + " |\n")

	n := sample.RowCount()
	if n > sampleRowsInPrompt {
		n = sampleRowsInPrompt
	}
	for _, row := range sample.Rows[:n] {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		prompt.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}
