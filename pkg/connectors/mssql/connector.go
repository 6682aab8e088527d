package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// Connector provides SQL Server and Azure SQL connectivity.
type Connector struct {
	config *Config
	db     *sql.DB
}

func buildConnectionString(cfg *Config) string {
	query := url.Values{}
	query.Set("database", cfg.Database)
	if cfg.Encrypt {
		query.Set("encrypt", "true")
	} else {
		query.Set("encrypt", "disable")
	}
	if cfg.TrustServerCertificate {
		query.Set("TrustServerCertificate", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// New creates a SQL Server connector. The connection is lazy; use
// TestConnection to verify reachability.
func New(cfg *Config) (*Connector, error) {
	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to sql server: %w", err)
	}
	return &Connector{config: cfg, db: db}, nil
}

func (c *Connector) TestConnection(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sql server connection failed: %w", err)
	}
	return nil
}

func (c *Connector) IntrospectSchema(ctx context.Context, tableRef string) ([]models.ColumnSchema, error) {
	schema, table := splitTableRef(tableRef)

	rows, err := c.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`,
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

	top := ""
	if limit > 0 {
		top = fmt.Sprintf("TOP (%d) ", limit)
	}
	query := fmt.Sprintf("SELECT %s%s FROM %s.%s", top, selectList, quoteIdentifier(schema), quoteIdentifier(table))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}
	defer rows.Close()

	return scanFrame(rows, tableRef)
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
			if _, err := c.db.ExecContext(ctx, "DROP TABLE "+qualified); err != nil {
				return 0, fmt.Errorf("write %s: drop existing table: %w", tableRef, err)
			}
			exists = false
		}
	}

	if !exists {
		if _, err := c.db.ExecContext(ctx, createTableSQL(qualified, frame.Columns)); err != nil {
			return 0, fmt.Errorf("write %s: create table: %w", tableRef, err)
		}
	}

	return c.insertRows(ctx, qualified, frame, tableRef)
}

func (c *Connector) insertRows(ctx context.Context, qualified string, frame *dataflow.Frame, tableRef string) (int64, error) {
	if len(frame.Rows) == 0 {
		return 0, nil
	}

	names := make([]string, len(frame.Columns))
	placeholders := make([]string, len(frame.Columns))
	for i, col := range frame.Columns {
		names[i] = quoteIdentifier(col.Name)
		placeholders[i] = fmt.Sprintf("@p%d", i+1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}
	defer stmt.Close()

	var written int64
	for _, row := range frame.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("write %s: %w", tableRef, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}
	return written, nil
}

func (c *Connector) Close() error {
	return c.db.Close()
}

func (c *Connector) tableExists(ctx context.Context, schema, table string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`,
		schema, table).Scan(&count)
	return count > 0, err
}

func scanFrame(rows *sql.Rows, tableRef string) (*dataflow.Frame, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}

	frameCols := make([]dataflow.Column, len(columnTypes))
	for i, ct := range columnTypes {
		frameCols[i] = dataflow.Column{
			Name:     ct.Name(),
			Type:     normalizeType(ct.DatabaseTypeName()),
			Nullable: true,
		}
	}

	frame := &dataflow.Frame{Columns: frameCols}
	for rows.Next() {
		scan := make([]any, len(frameCols))
		ptrs := make([]any, len(frameCols))
		for i := range scan {
			ptrs[i] = &scan[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read %s: %w", tableRef, err)
		}
		row := make([]any, len(scan))
		for i, v := range scan {
			row[i] = normalizeValue(v)
		}
		frame.Rows = append(frame.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}
	return frame, nil
}

// splitTableRef separates an optional schema qualifier. Unqualified
// references resolve to dbo.
func splitTableRef(tableRef string) (schema, table string) {
	if i := strings.IndexByte(tableRef, '.'); i >= 0 {
		return tableRef[:i], tableRef[i+1:]
	}
	return "dbo", tableRef
}

func quoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
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
		return "FLOAT"
	case "boolean":
		return "BIT"
	case "timestamp":
		return "DATETIME2"
	case "date":
		return "DATE"
	default:
		return "NVARCHAR(MAX)"
	}
}

func normalizeType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "int", "bigint":
		return "bigint"
	case "real", "float", "decimal", "numeric", "money", "smallmoney":
		return "double"
	case "bit":
		return "boolean"
	case "date":
		return "date"
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return "timestamp"
	default:
		return "text"
	}
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
