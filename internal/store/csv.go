// Package store persists validated records as CSV files, one file per run.
package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/formats"
	"github.com/fabrica-labs/fabrica/internal/workflow"
)

// CSVStore writes one tabular file per successful run into a shared output
// directory. File names carry the domain, format, a high-resolution
// timestamp, and a uuid fragment, so concurrent runs cannot collide.
type CSVStore struct {
	outputDir string
	logger    *zap.Logger
}

// NewCSVStore creates the store and its output directory.
func NewCSVStore(outputDir string, logger *zap.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &CSVStore{outputDir: outputDir, logger: logger}, nil
}

// OutputDir returns the directory files are written to.
func (s *CSVStore) OutputDir() string {
	return s.outputDir
}

// Persist writes the records as CSV and returns the file path. Columns
// follow the format's declared field order; fields absent from a record are
// emitted empty; mapping values are serialized as compact JSON.
func (s *CSVStore) Persist(ctx context.Context, records []workflow.Record, domain, format string) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("store: no records to save")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fields := fieldOrder(records, format)
	path := s.generatePath(domain, format)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return "", fmt.Errorf("store: write header: %w", err)
	}
	for _, record := range records {
		row := make([]string, len(fields))
		for i, field := range fields {
			row[i] = cellValue(record[field])
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("store: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("store: flush: %w", err)
	}

	s.logger.Info("Saved records",
		zap.Int("records", len(records)),
		zap.String("file_path", path),
	)
	return path, nil
}

// ValidateShape reports whether every record carries the format's expected
// fields. Advisory: callers log a warning and proceed on false.
func (s *CSVStore) ValidateShape(records []workflow.Record, format string) bool {
	if len(records) == 0 {
		return false
	}
	f, ok := formats.Lookup(format)
	if !ok {
		return false
	}
	for _, record := range records {
		for _, field := range f.Fields {
			if _, present := record[field]; !present {
				s.logger.Warn("Record missing field",
					zap.String("format", format),
					zap.String("field", field),
				)
				return false
			}
		}
	}
	return true
}

func (s *CSVStore) generatePath(domain, format string) string {
	now := time.Now()
	name := fmt.Sprintf("%s_%s_%s_%s.csv",
		domain,
		format,
		now.Format("20060102_150405.000000000"),
		uuid.New().String()[:8],
	)
	return filepath.Join(s.outputDir, name)
}

// fieldOrder returns the format's declared field order, or the first
// record's keys when the format is unknown.
func fieldOrder(records []workflow.Record, format string) []string {
	if f, ok := formats.Lookup(format); ok {
		return f.Fields
	}
	fields := make([]string, 0, len(records[0]))
	for k := range records[0] {
		fields = append(fields, k)
	}
	return fields
}

// cellValue serializes one record value for a CSV cell.
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, workflow.Record, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
