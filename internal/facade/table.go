// Package facade serves query, summary, and CRUD operations over a data file
// exported by a crawl run. The file is the source of truth: the in-memory
// table is reloaded at the start of each mutating request and written back
// after each mutation.
package facade

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shopcrawl/internal/normalize"
	"shopcrawl/internal/product"
	"shopcrawl/internal/sink"
)

// Table is an in-memory view of an exported data file.
type Table struct {
	Path    string
	Format  string // csv, json, or jsonl
	Records []product.Record
}

// Load reads a data file by extension. Sizes are normalized immediately after
// loading, so files written before the normalization rule still serve
// decimal-normalized sizes.
func Load(path string) (*Table, error) {
	var (
		records []product.Record
		format  string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		format = "csv"
		records, err = loadCSV(path)
	case ".json":
		format = "json"
		records, err = loadJSON(path)
	case ".jsonl":
		format = "jsonl"
		records, err = loadJSONLines(path)
	default:
		return nil, fmt.Errorf("unsupported data file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Sizes = normalize.SizeList(records[i].Sizes)
	}
	return &Table{Path: path, Format: format, Records: records}, nil
}

// Save writes the table back to its file through the matching sink, so the
// on-disk format stays identical to what a crawl run produces.
func (t *Table) Save() error {
	var s sink.Sink
	switch t.Format {
	case "csv":
		s = sink.NewCSV(t.Path)
	case "json":
		s = sink.NewJSONArray(t.Path)
	case "jsonl":
		s = sink.NewJSONLines(t.Path)
	default:
		return fmt.Errorf("unsupported data file format %q", t.Format)
	}

	if err := s.Open(); err != nil {
		return err
	}
	for i := range t.Records {
		if err := s.Write(&t.Records[i]); err != nil {
			s.Close()
			return err
		}
	}
	return s.Close()
}

func loadCSV(path string) ([]product.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, name := range sink.Header {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%s is missing column %q", path, name)
		}
	}

	records := make([]product.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, product.Record{
			ProductID:     row[col["product_id"]],
			Title:         row[col["title"]],
			Brand:         row[col["brand"]],
			Description:   row[col["description"]],
			CurrentPrice:  normalize.ParsePrice(row[col["current_price"]]),
			OriginalPrice: normalize.ParsePrice(row[col["original_price"]]),
			Availability:  row[col["availability"]],
			ImageURLs:     splitList(row[col["image_urls"]], sink.ImageSeparator),
			Colors:        row[col["colors"]],
			Sizes:         splitList(row[col["sizes"]], sink.SizeSeparator),
			CategoryPath:  row[col["category_path"]],
			URL:           row[col["url"]],
		})
	}
	return records, nil
}

func loadJSON(path string) ([]product.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var records []product.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

func loadJSONLines(path string) ([]product.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []product.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec product.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse line of %s: %w", path, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
