package storage

import (
	"context"

	"benefit-scraper/models"
)

// ListingStore is the interface any persistence backend must satisfy.
// Upserts merge: empty optional fields never overwrite stored values.
type ListingStore interface {
	Upsert(ctx context.Context, listings []*models.CanonicalListing, runID string) error
	Delete(ctx context.Context, ids []string) error
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	FetchBySource(ctx context.Context, source string) ([]*models.StoredRecord, error)
	FetchAll(ctx context.Context) ([]*models.CanonicalListing, error)
	Close() error
}

// RawSignalsWriter is the interface for persisting unprocessed scraped data.
type RawSignalsWriter interface {
	WriteRaw(signals []*models.ListingSignals) error
	Close() error
}

// SnapshotExporter publishes the final canonical set somewhere outside the store.
type SnapshotExporter interface {
	Export(ctx context.Context, key string, listings []*models.CanonicalListing) error
}

var (
	_ ListingStore     = (*SQLStore)(nil)
	_ RawSignalsWriter = (*CSVWriter)(nil)
	_ SnapshotExporter = (*S3Exporter)(nil)
)
