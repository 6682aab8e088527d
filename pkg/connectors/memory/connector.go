// Package memory provides an in-process connector used by tests. It keeps
// whole tables as frames in a map and honors the same write mode
// semantics as the real connectors.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

type Connector struct {
	mu     sync.Mutex
	tables map[string]*dataflow.Frame

	// TestErr, when set, is returned by TestConnection.
	TestErr error
	// WriteErr, when set, fails every Write.
	WriteErr error
}

func New() *Connector {
	return &Connector{tables: make(map[string]*dataflow.Frame)}
}

// Seed installs a table, replacing any previous contents.
func (c *Connector) Seed(tableRef string, frame *dataflow.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tableRef] = frame
}

// Table returns the stored frame for inspection, or nil.
func (c *Connector) Table(tableRef string) *dataflow.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables[tableRef]
}

func (c *Connector) TestConnection(ctx context.Context) error {
	return c.TestErr
}

func (c *Connector) IntrospectSchema(ctx context.Context, tableRef string) ([]models.ColumnSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame, ok := c.tables[tableRef]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", tableRef)
	}
	columns := make([]models.ColumnSchema, len(frame.Columns))
	for i, col := range frame.Columns {
		columns[i] = models.ColumnSchema{Name: col.Name, DataType: col.Type, Nullable: col.Nullable}
	}
	return columns, nil
}

func (c *Connector) Read(ctx context.Context, tableRef string, columns []string, limit int) (*dataflow.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame, ok := c.tables[tableRef]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", tableRef)
	}

	out := frame
	if len(columns) > 0 {
		projected, err := frame.Project(columns)
		if err != nil {
			return nil, err
		}
		out = projected
	}
	if limit > 0 {
		out = out.Head(limit)
	}
	return &dataflow.Frame{Columns: out.Columns, Rows: append([][]any(nil), out.Rows...)}, nil
}

func (c *Connector) Write(ctx context.Context, tableRef string, frame *dataflow.Frame, mode models.WriteMode) (int64, error) {
	if c.WriteErr != nil {
		return 0, c.WriteErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.tables[tableRef]
	switch mode {
	case models.WriteErrorIfExists:
		if exists {
			return 0, fmt.Errorf("table %q already exists", tableRef)
		}
	case models.WriteAppend:
		if exists {
			merged := &dataflow.Frame{
				Columns: existing.Columns,
				Rows:    append(append([][]any(nil), existing.Rows...), frame.Rows...),
			}
			c.tables[tableRef] = merged
			return int64(len(frame.Rows)), nil
		}
	}

	c.tables[tableRef] = &dataflow.Frame{
		Columns: frame.Columns,
		Rows:    append([][]any(nil), frame.Rows...),
	}
	return int64(len(frame.Rows)), nil
}

func (c *Connector) Close() error {
	return nil
}
