package objectstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fathomdata/fathom-engine/pkg/dataflow"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// schemaSampleRows caps how many rows are examined when inferring
// column types from a CSV object.
const schemaSampleRows = 100

// Connector reads and writes CSV objects in an S3-compatible bucket.
// A table reference is the object key, e.g. "exports/orders.csv".
type Connector struct {
	config *Config
	client *minio.Client
}

// New creates an object store connector.
func New(cfg *Config) (*Connector, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}
	return &Connector{config: cfg, client: client}, nil
}

func (c *Connector) TestConnection(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("object store connection failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", c.config.Bucket)
	}
	return nil
}

func (c *Connector) IntrospectSchema(ctx context.Context, tableRef string) ([]models.ColumnSchema, error) {
	frame, err := c.readCSV(ctx, tableRef, schemaSampleRows)
	if err != nil {
		return nil, err
	}

	columns := make([]models.ColumnSchema, len(frame.Columns))
	for i, col := range frame.Columns {
		columns[i] = models.ColumnSchema{Name: col.Name, DataType: col.Type, Nullable: col.Nullable}
	}
	return columns, nil
}

func (c *Connector) Read(ctx context.Context, tableRef string, columns []string, limit int) (*dataflow.Frame, error) {
	frame, err := c.readCSV(ctx, tableRef, limit)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		return frame.Project(columns)
	}
	return frame, nil
}

func (c *Connector) Write(ctx context.Context, tableRef string, frame *dataflow.Frame, mode models.WriteMode) (int64, error) {
	exists, err := c.objectExists(ctx, tableRef)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}

	out := frame
	switch mode {
	case models.WriteErrorIfExists:
		if exists {
			return 0, fmt.Errorf("object %q already exists", tableRef)
		}
	case models.WriteAppend:
		// CSV objects cannot be appended in place; merge with the
		// existing rows and rewrite the whole object.
		if exists {
			existing, err := c.readCSV(ctx, tableRef, 0)
			if err != nil {
				return 0, fmt.Errorf("write %s: read existing object: %w", tableRef, err)
			}
			merged, err := appendFrames(existing, frame)
			if err != nil {
				return 0, fmt.Errorf("write %s: %w", tableRef, err)
			}
			out = merged
		}
	}

	payload, err := encodeCSV(out)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}

	_, err = c.client.PutObject(ctx, c.config.Bucket, tableRef,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", tableRef, err)
	}
	return int64(len(frame.Rows)), nil
}

func (c *Connector) Close() error {
	return nil
}

func (c *Connector) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.config.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// readCSV loads an object and infers column types from its values.
// limit <= 0 reads every row.
func (c *Connector) readCSV(ctx context.Context, key string, limit int) (*dataflow.Frame, error) {
	obj, err := c.client.GetObject(ctx, c.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer obj.Close()

	reader := csv.NewReader(obj)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("object %q is empty", key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var records [][]string
	for limit <= 0 || len(records) < limit {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		records = append(records, record)
	}

	columns := inferColumns(header, records)
	frame := &dataflow.Frame{Columns: columns, Rows: make([][]any, len(records))}
	for i, record := range records {
		row := make([]any, len(columns))
		for j := range columns {
			row[j] = coerceValue(record[j], columns[j].Type)
		}
		frame.Rows[i] = row
	}
	return frame, nil
}

// inferColumns derives a type per column from sampled values. A column
// where every non-empty value parses as an integer is bigint; as a
// number, double; as a bool, boolean; otherwise text. Columns with
// empty values are nullable.
func inferColumns(header []string, records [][]string) []dataflow.Column {
	columns := make([]dataflow.Column, len(header))
	for i, name := range header {
		isInt, isFloat, isBool := true, true, true
		nullable := false
		seen := false
		for _, record := range records {
			v := record[i]
			if v == "" {
				nullable = true
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
			if v != "true" && v != "false" {
				isBool = false
			}
		}

		typ := "text"
		if seen {
			switch {
			case isInt:
				typ = "bigint"
			case isFloat:
				typ = "double"
			case isBool:
				typ = "boolean"
			}
		}
		columns[i] = dataflow.Column{Name: name, Type: typ, Nullable: nullable}
	}
	return columns
}

func coerceValue(v, frameType string) any {
	if v == "" {
		return nil
	}
	switch frameType {
	case "bigint":
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case "double":
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case "boolean":
		return v == "true"
	default:
		return v
	}
}

func appendFrames(existing, incoming *dataflow.Frame) (*dataflow.Frame, error) {
	// Incoming rows are reordered to the existing object's column order.
	mapping := make([]int, len(existing.Columns))
	for i, col := range existing.Columns {
		idx := incoming.ColumnIndex(col.Name)
		if idx < 0 {
			return nil, fmt.Errorf("existing object has column %q not present in new data", col.Name)
		}
		mapping[i] = idx
	}

	out := &dataflow.Frame{Columns: existing.Columns, Rows: append([][]any(nil), existing.Rows...)}
	for _, row := range incoming.Rows {
		mapped := make([]any, len(mapping))
		for i, idx := range mapping {
			mapped[i] = row[idx]
		}
		out.Rows = append(out.Rows, mapped)
	}
	return out, nil
}

func encodeCSV(frame *dataflow.Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(frame.ColumnNames()); err != nil {
		return nil, err
	}
	record := make([]string, len(frame.Columns))
	for _, row := range frame.Rows {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	case time.Time:
		return n.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", n)
	}
}
