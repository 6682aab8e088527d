package connectors

import (
	"context"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// Connector provides access to one external data service.
// Each implementation owns its connection and must be closed when done.
type Connector interface {
	// TestConnection verifies the service is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// IntrospectSchema returns the column schema of a table reference.
	IntrospectSchema(ctx context.Context, tableRef string) ([]models.ColumnSchema, error)

	// Read loads rows from a table reference. An empty columns slice means
	// all columns; limit <= 0 means no limit.
	Read(ctx context.Context, tableRef string, columns []string, limit int) (*dataflow.Frame, error)

	// Write stores a frame at a table reference according to the write mode.
	// Returns the number of rows written.
	Write(ctx context.Context, tableRef string, frame *dataflow.Frame, mode models.WriteMode) (int64, error)

	// Close releases the connection.
	Close() error
}

// Opener resolves a service type and decrypted config into a live connector.
// Services depend on this interface so tests can substitute fakes.
type Opener interface {
	Open(ctx context.Context, serviceType models.ServiceType, config map[string]string) (Connector, error)
}
