package sink

import (
	"encoding/json"
	"fmt"
	"os"

	"shopcrawl/internal/product"
)

// JSONArraySink wraps all records in a single JSON array: "[" on open, a
// separator before every element after the first, "]" on close. If the
// process terminates before Close the file is syntactically incomplete; runs
// that need interruption-safe output should use JSONLinesSink instead.
type JSONArraySink struct {
	path  string
	file  *os.File
	first bool
}

// NewJSONArray creates a JSON array sink writing to path.
func NewJSONArray(path string) *JSONArraySink {
	return &JSONArraySink{path: path}
}

// Open creates the file and writes the opening delimiter.
func (s *JSONArraySink) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	s.file = f
	s.first = true

	if _, err := f.WriteString("["); err != nil {
		return fmt.Errorf("failed to write opening delimiter: %w", err)
	}
	return nil
}

// Write serializes the record as one array element.
func (s *JSONArraySink) Write(rec *product.Record) error {
	b, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ProductID, err)
	}
	if !s.first {
		if _, err := s.file.WriteString(",\n"); err != nil {
			return fmt.Errorf("failed to write separator: %w", err)
		}
	}
	s.first = false
	if _, err := s.file.Write(b); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.ProductID, err)
	}
	return nil
}

// Close writes the closing delimiter and closes the file.
func (s *JSONArraySink) Close() error {
	if s.file == nil {
		return nil
	}
	if _, err := s.file.WriteString("]"); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to write closing delimiter: %w", err)
	}
	return s.file.Close()
}

// JSONLinesSink writes one self-contained JSON object per line, with no
// wrapping container: the interruption-safe framing.
type JSONLinesSink struct {
	path string
	file *os.File
}

// NewJSONLines creates a JSON Lines sink writing to path.
func NewJSONLines(path string) *JSONLinesSink {
	return &JSONLinesSink{path: path}
}

// Open creates the file.
func (s *JSONLinesSink) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

// Write serializes the record as one line.
func (s *JSONLinesSink) Write(rec *product.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ProductID, err)
	}
	if _, err := s.file.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.ProductID, err)
	}
	return nil
}

// Close closes the file; the output is already complete without a trailer.
func (s *JSONLinesSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
