// Package dataflow defines the engine's transformation DSL: a closed JSON
// program format produced by the code-generation capability, and an
// in-process interpreter that executes programs against materialized
// frames. Keeping the DSL closed and interpreted means approved code runs
// deterministically with no sandbox.
package dataflow

import "fmt"

// Column describes one column of a frame.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Frame is a materialized table: ordered columns plus row slices. Row
// values are positional and align with Columns.
type Frame struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewFrame creates an empty frame with the given columns.
func NewFrame(columns []Column) *Frame {
	return &Frame{Columns: columns}
}

// ColumnIndex returns the position of a named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the frame's column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// RowCount returns the number of rows.
func (f *Frame) RowCount() int {
	return len(f.Rows)
}

// Head returns a copy of the frame bounded to at most n rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 || n >= len(f.Rows) {
		n = len(f.Rows)
	}
	out := &Frame{Columns: append([]Column(nil), f.Columns...)}
	out.Rows = append(out.Rows, f.Rows[:n]...)
	return out
}

// Project returns a new frame containing only the named columns, in the
// requested order. Unknown columns are an error.
func (f *Frame) Project(names []string) (*Frame, error) {
	indices := make([]int, len(names))
	columns := make([]Column, len(names))
	for i, name := range names {
		idx := f.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found", name)
		}
		indices[i] = idx
		columns[i] = f.Columns[idx]
	}

	out := &Frame{Columns: columns, Rows: make([][]any, len(f.Rows))}
	for r, row := range f.Rows {
		projected := make([]any, len(indices))
		for i, idx := range indices {
			projected[i] = row[idx]
		}
		out.Rows[r] = projected
	}
	return out, nil
}
