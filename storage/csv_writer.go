package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"benefit-scraper/models"
)

// CSVWriter writes raw (unclassified) listing signals to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var csvHeader = []string{
	"title", "url", "description", "detail_text", "badges", "schema_types",
	"structured_location", "og_image", "list_image", "images", "scraped_at",
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends one row per listing. Image descriptors are stored as a
// JSON array so nothing is lost. Nil entries, as decoded from a JSON null,
// are skipped; the pipeline reports them as malformed.
func (c *CSVWriter) WriteRaw(signals []*models.ListingSignals) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range signals {
		if s == nil {
			continue
		}
		images, err := json.Marshal(s.Images)
		if err != nil {
			return fmt.Errorf("csv: encode images: %w", err)
		}
		scraped := ""
		if !s.ScrapedAt.IsZero() {
			scraped = s.ScrapedAt.Format(time.RFC3339)
		}
		row := []string{
			s.Title,
			s.URL,
			s.Description,
			s.DetailText,
			strings.Join(s.Badges, " | "),
			strings.Join(s.SchemaTypes, " | "),
			s.StructuredLocationText,
			s.OGImage,
			s.ListImage,
			string(images),
			scraped,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
