package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// Connector provides MySQL connectivity.
type Connector struct {
	config *Config
	db     *sql.DB
}

func buildDSN(cfg *Config) string {
	mc := gomysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.TLSConfig = cfg.TLS
	mc.ParseTime = true
	return mc.FormatDSN()
}

// New creates a MySQL connector. The connection is lazy; use
// TestConnection to verify reachability.
func New(cfg *Config) (*Connector, error) {
	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}
	return &Connector{config: cfg, db: db}, nil
}

func (c *Connector) TestConnection(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql connection failed: %w", err)
	}
	return nil
}

func (c *Connector) IntrospectSchema(ctx context.Context, tableRef string) ([]models.ColumnSchema, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
		tableRef)
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
	selectList := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, col := range columns {
			quoted[i] = quoteIdentifier(col)
		}
		selectList = strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", selectList, quoteIdentifier(tableRef))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}
	defer rows.Close()

	return scanFrame(rows, tableRef)
}

func (c *Connector) Write(ctx context.Context, tableRef string, frame *dataflow.Frame, mode models.WriteMode) (int64, error) {
	quoted := quoteIdentifier(tableRef)

	exists, err := c.tableExists(ctx, tableRef)
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
			if _, err := c.db.ExecContext(ctx, "DROP TABLE "+quoted); err != nil {
				return 0, fmt.Errorf("write %s: drop existing table: %w", tableRef, err)
			}
			exists = false
		}
	}

	if !exists {
		if _, err := c.db.ExecContext(ctx, createTableSQL(quoted, frame.Columns)); err != nil {
			return 0, fmt.Errorf("write %s: create table: %w", tableRef, err)
		}
	}

	return c.insertRows(ctx, quoted, frame, tableRef)
}

func (c *Connector) insertRows(ctx context.Context, quoted string, frame *dataflow.Frame, tableRef string) (int64, error) {
	if len(frame.Rows) == 0 {
		return 0, nil
	}

	names := make([]string, len(frame.Columns))
	placeholders := make([]string, len(frame.Columns))
	for i, col := range frame.Columns {
		names[i] = quoteIdentifier(col.Name)
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoted, strings.Join(names, ", "), strings.Join(placeholders, ", "))

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

func (c *Connector) tableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`,
		table).Scan(&count)
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
			row[i] = normalizeValue(v, frameCols[i].Type)
		}
		frame.Rows = append(frame.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}
	return frame, nil
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func createTableSQL(quoted string, columns []dataflow.Column) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdentifier(col.Name) + " " + sqlType(col.Type)
	}
	return "CREATE TABLE " + quoted + " (" + strings.Join(defs, ", ") + ")"
}

func sqlType(frameType string) string {
	switch frameType {
	case "bigint":
		return "BIGINT"
	case "double":
		return "DOUBLE"
	case "boolean":
		return "TINYINT(1)"
	case "timestamp":
		return "DATETIME"
	case "date":
		return "DATE"
	default:
		return "TEXT"
	}
}

func normalizeType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "bigint":
		return "bigint"
	case "float", "double", "decimal":
		return "double"
	case "date":
		return "date"
	case "datetime", "timestamp":
		return "timestamp"
	default:
		return "text"
	}
}

// normalizeValue widens driver values to interpreter types. The MySQL
// driver hands most text and numeric columns back as []byte.
func normalizeValue(v any, frameType string) any {
	switch n := v.(type) {
	case []byte:
		s := string(n)
		switch frameType {
		case "bigint":
			if i, err := parseInt(s); err == nil {
				return i
			}
		case "double":
			if f, err := parseFloat(s); err == nil {
				return f
			}
		}
		return s
	case int8:
		return int64(n)
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

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
