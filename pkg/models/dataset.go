package models

import (
	"time"

	"github.com/google/uuid"
)

// ColumnSchema describes one column of a dataset's resolved schema.
// Order matters: schemas are ordered sequences, not sets.
type ColumnSchema struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// Dataset binds a linked service to a specific table or object path.
// The schema is fetched lazily on first use and cached; changing the
// reference invalidates the cache.
type Dataset struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	LinkedServiceID uuid.UUID      `json:"linked_service_id"`
	TableRef        string         `json:"table_ref"`
	CachedSchema    []ColumnSchema `json:"cached_schema,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// HasCachedSchema reports whether a schema has been resolved and cached.
func (d *Dataset) HasCachedSchema() bool {
	return len(d.CachedSchema) > 0
}

// ColumnNames returns the cached schema's column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.CachedSchema))
	for i, c := range d.CachedSchema {
		names[i] = c.Name
	}
	return names
}
