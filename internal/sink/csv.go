package sink

import (
	"encoding/csv"
	"fmt"
	"os"

	"shopcrawl/internal/product"
)

// CSVSink writes one header row on open and one row per record. The file is
// valid as soon as the last row is flushed; no trailer is required.
type CSVSink struct {
	path string
	file *os.File
	w    *csv.Writer
}

// NewCSV creates a CSV sink writing to path.
func NewCSV(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Open creates the file and writes the header row.
func (s *CSVSink) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	s.file = f
	s.w = csv.NewWriter(f)

	if err := s.w.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Write appends exactly one row and flushes it.
func (s *CSVSink) Write(rec *product.Record) error {
	if err := s.w.Write(Row(rec)); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes any buffered output and closes the file.
func (s *CSVSink) Close() error {
	if s.file == nil {
		return nil
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
