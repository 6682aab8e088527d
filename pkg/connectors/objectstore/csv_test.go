package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
)

func TestInferColumns(t *testing.T) {
	header := []string{"id", "price", "active", "note"}
	records := [][]string{
		{"1", "9.50", "true", "first"},
		{"2", "12", "false", ""},
	}

	columns := inferColumns(header, records)
	require.Len(t, columns, 4)
	assert.Equal(t, "bigint", columns[0].Type)
	assert.Equal(t, "double", columns[1].Type)
	assert.Equal(t, "boolean", columns[2].Type)
	assert.Equal(t, "text", columns[3].Type)
	assert.False(t, columns[0].Nullable)
	assert.True(t, columns[3].Nullable)
}

func TestInferColumnsAllEmpty(t *testing.T) {
	columns := inferColumns([]string{"a"}, [][]string{{""}, {""}})
	require.Len(t, columns, 1)
	assert.Equal(t, "text", columns[0].Type)
	assert.True(t, columns[0].Nullable)
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, int64(7), coerceValue("7", "bigint"))
	assert.Equal(t, 2.5, coerceValue("2.5", "double"))
	assert.Equal(t, true, coerceValue("true", "boolean"))
	assert.Equal(t, "x", coerceValue("x", "text"))
	assert.Nil(t, coerceValue("", "bigint"))
}

func TestEncodeCSVRoundsValues(t *testing.T) {
	frame := &dataflow.Frame{
		Columns: []dataflow.Column{
			{Name: "id", Type: "bigint"},
			{Name: "note", Type: "text", Nullable: true},
		},
		Rows: [][]any{
			{int64(1), "hello"},
			{int64(2), nil},
		},
	}

	payload, err := encodeCSV(frame)
	require.NoError(t, err)
	assert.Equal(t, "id,note\n1,hello\n2,\n", string(payload))
}

func TestAppendFramesReordersColumns(t *testing.T) {
	existing := &dataflow.Frame{
		Columns: []dataflow.Column{{Name: "id", Type: "bigint"}, {Name: "name", Type: "text"}},
		Rows:    [][]any{{int64(1), "a"}},
	}
	incoming := &dataflow.Frame{
		Columns: []dataflow.Column{{Name: "name", Type: "text"}, {Name: "id", Type: "bigint"}},
		Rows:    [][]any{{"b", int64(2)}},
	}

	merged, err := appendFrames(existing, incoming)
	require.NoError(t, err)
	require.Equal(t, 2, merged.RowCount())
	assert.Equal(t, []any{int64(2), "b"}, merged.Rows[1])
}

func TestAppendFramesMissingColumn(t *testing.T) {
	existing := &dataflow.Frame{
		Columns: []dataflow.Column{{Name: "id", Type: "bigint"}},
	}
	incoming := &dataflow.Frame{
		Columns: []dataflow.Column{{Name: "other", Type: "bigint"}},
	}

	_, err := appendFrames(existing, incoming)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"id"`)
}
