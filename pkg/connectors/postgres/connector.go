package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// Connector provides PostgreSQL connectivity.
type Connector struct {
	config *Config
	pool   *pgxpool.Pool
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields must be URL-escaped to handle special characters
// in passwords (e.g., @, /, #, ?) that would otherwise break URL parsing.
func buildConnectionString(cfg *Config) string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		cfg.SSLMode,
	)
}

// New creates a PostgreSQL connector. The pool connects lazily; use
// TestConnection to verify reachability.
func New(ctx context.Context, cfg *Config) (*Connector, error) {
	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &Connector{config: cfg, pool: pool}, nil
}

func (c *Connector) TestConnection(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	return nil
}

func (c *Connector) IntrospectSchema(ctx context.Context, tableRef string) ([]models.ColumnSchema, error) {
	schema, table := splitTableRef(tableRef)

	rows, err := c.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", tableRef, err)
	}
	defer rows.Close()

	var columns []models.ColumnSchema
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("introspect %s: %w", tableRef, err)
		}
		columns = append(columns, models.ColumnSchema{
			Name:     name,
			DataType: normalizeType(dataType),
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", tableRef, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q does not exist", tableRef)
	}
	return columns, nil
}

func (c *Connector) Read(ctx context.Context, tableRef string, columns []string, limit int) (*dataflow.Frame, error) {
	schema, table := splitTableRef(tableRef)

	selectList := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, col := range columns {
			quoted[i] = quoteIdentifier(col)
		}
		selectList = strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s.%s", selectList, quoteIdentifier(schema), quoteIdentifier(table))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	frameCols := make([]dataflow.Column, len(fields))
	for i, fd := range fields {
		frameCols[i] = dataflow.Column{Name: fd.Name, Type: typeForOID(fd.DataTypeOID), Nullable: true}
	}

	frame := &dataflow.Frame{Columns: frameCols}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", tableRef, err)
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = normalizeValue(v)
		}
		frame.Rows = append(frame.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}
	return frame, nil
}

func (c *Connector) Write(ctx context.Context, tableRef string, frame *dataflow.Frame, mode models.WriteMode) (int64, error) {
	schema, table := splitTableRef(tableRef)
	qualified := quoteIdentifier(schema) + "." + quoteIdentifier(table)

	exists, err := c.tableExists(ctx, schema, table)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}

	switch mode {
	case models.WriteErrorIfExists:
		if exists {
			return 0, fmt.Errorf("table %q already exists", tableRef)
		}
	case models.WriteOverwrite:
		if exists {
			if _, err := c.pool.Exec(ctx, "DROP TABLE "+qualified); err != nil {
				return 0, fmt.Errorf("write %s: drop existing table: %w", tableRef, err)
			}
			exists = false
		}
	}

	if !exists {
		if _, err := c.pool.Exec(ctx, createTableSQL(qualified, frame.Columns)); err != nil {
			return 0, fmt.Errorf("write %s: create table: %w", tableRef, err)
		}
	}

	names := make([]string, len(frame.Columns))
	for i, col := range frame.Columns {
		names[i] = col.Name
	}
	copied, err := c.pool.CopyFrom(ctx, pgx.Identifier{schema, table}, names, pgx.CopyFromRows(frame.Rows))
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}
	return copied, nil
}

func (c *Connector) Close() error {
	c.pool.Close()
	return nil
}

func (c *Connector) tableExists(ctx context.Context, schema, table string) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, table).Scan(&exists)
	return exists, err
}

// splitTableRef separates an optional schema qualifier. Unqualified
// references resolve to the public schema.
func splitTableRef(tableRef string) (schema, table string) {
	if i := strings.IndexByte(tableRef, '.'); i >= 0 {
		return tableRef[:i], tableRef[i+1:]
	}
	return "public", tableRef
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(qualified string, columns []dataflow.Column) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdentifier(col.Name) + " " + sqlType(col.Type)
	}
	return "CREATE TABLE " + qualified + " (" + strings.Join(defs, ", ") + ")"
}

func sqlType(frameType string) string {
	switch frameType {
	case "bigint":
		return "BIGINT"
	case "double":
		return "DOUBLE PRECISION"
	case "boolean":
		return "BOOLEAN"
	case "timestamp":
		return "TIMESTAMPTZ"
	case "date":
		return "DATE"
	default:
		return "TEXT"
	}
}

// normalizeType reduces PostgreSQL type names to the frame type vocabulary.
func normalizeType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint":
		return "bigint"
	case "real", "double precision", "numeric", "decimal":
		return "double"
	case "boolean":
		return "boolean"
	case "date":
		return "date"
	case "timestamp without time zone", "timestamp with time zone":
		return "timestamp"
	default:
		return "text"
	}
}

func typeForOID(oid uint32) string {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return "bigint"
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return "double"
	case pgtype.BoolOID:
		return "boolean"
	case pgtype.DateOID:
		return "date"
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return "timestamp"
	default:
		return "text"
	}
}

// normalizeValue widens driver values to the types the interpreter
// compares: int64, float64, string, bool.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}
