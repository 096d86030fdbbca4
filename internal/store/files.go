package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrOutsideOutputDir is returned for paths that escape the output directory.
var ErrOutsideOutputDir = errors.New("store: path outside output directory")

// FileStats describes one generated output file.
type FileStats struct {
	Exists      bool      `json:"exists"`
	SizeBytes   int64     `json:"file_size_bytes,omitempty"`
	RecordCount int       `json:"record_count,omitempty"`
	ModifiedAt  time.Time `json:"modified_at,omitempty"`
}

// resolve confines a caller-supplied path to the output directory.
func (s *CSVStore) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.outputDir, strings.TrimPrefix(path, s.outputDir+string(os.PathSeparator)))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(s.outputDir)
	if err != nil {
		return "", err
	}
	if abs != absDir && !strings.HasPrefix(abs, absDir+string(os.PathSeparator)) {
		return "", ErrOutsideOutputDir
	}
	return abs, nil
}

// Stats returns size and row count for a generated file.
func (s *CSVStore) Stats(path string) (FileStats, error) {
	resolved, err := s.resolve(path)
	if err != nil {
		return FileStats{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return FileStats{Exists: false}, nil
		}
		return FileStats{}, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return FileStats{}, err
	}
	defer f.Close()

	rows := 0
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		if _, err := r.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return FileStats{}, fmt.Errorf("store: read %s: %w", resolved, err)
		}
		rows++
	}
	if rows > 0 {
		rows-- // header
	}

	return FileStats{
		Exists:      true,
		SizeBytes:   info.Size(),
		RecordCount: rows,
		ModifiedAt:  info.ModTime(),
	}, nil
}

// Sample reads up to n data rows from a generated file as field maps.
func (s *CSVStore) Sample(path string, n int) ([]map[string]string, error) {
	resolved, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("store: read header: %w", err)
	}

	samples := make([]map[string]string, 0, n)
	for len(samples) < n {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: read row: %w", err)
		}
		record := make(map[string]string, len(header))
		for i, field := range header {
			if i < len(row) {
				record[field] = row[i]
			}
		}
		samples = append(samples, record)
	}
	return samples, nil
}

// CleanupOlderThan removes generated CSV files older than the given age and
// returns how many were deleted.
func (s *CSVStore) CleanupOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to remove old file",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		removed++
		s.logger.Info("Cleaned up old file", zap.String("path", path))
	}
	return removed, nil
}
