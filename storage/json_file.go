package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"benefit-scraper/models"
)

// ReadSignalsFile loads a JSON array of listing signals, as produced by an
// earlier scrape, so a run can skip scraping entirely.
func ReadSignalsFile(path string) ([]*models.ListingSignals, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("json: open %q: %w", path, err)
	}
	defer f.Close()
	return DecodeSignals(f)
}

// DecodeSignals reads a JSON array of listing signals.
func DecodeSignals(r io.Reader) ([]*models.ListingSignals, error) {
	var signals []*models.ListingSignals
	if err := json.NewDecoder(r).Decode(&signals); err != nil {
		return nil, fmt.Errorf("json: decode signals: %w", err)
	}
	return signals, nil
}

// WriteJSONFile writes v as indented JSON to path, creating directories.
func WriteJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("json: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("json: create file %q: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("json: encode: %w", err)
	}
	return f.Close()
}
