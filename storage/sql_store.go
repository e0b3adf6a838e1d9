package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"benefit-scraper/models"
	"benefit-scraper/utils"
)

// DefaultBatchSize bounds rows per write transaction.
const DefaultBatchSize = 400

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLStore persists canonical listings to PostgreSQL or SQLite through sqlx.
// The collection name becomes the table name.
type SQLStore struct {
	db        *sqlx.DB
	table     string
	batchSize int

	readOnly bool
	// absent is set when a read-only store has no table yet; reads then
	// behave as an empty collection.
	absent bool
}

// listingRow mirrors one table row.
type listingRow struct {
	ID          string  `db:"id"`
	Title       string  `db:"title"`
	URL         string  `db:"url"`
	Canonical   string  `db:"canonical"`
	ImageURL    string  `db:"image_url"`
	Category    string  `db:"category"`
	Region      string  `db:"region"`
	Description string  `db:"description"`
	Confidence  float64 `db:"confidence"`
	Reasons     string  `db:"reasons"`
	OCRUsed     bool    `db:"ocr_used"`
	Source      string  `db:"source"`
}

// OpenSQLStore connects to the store, pings it with retries and runs schema
// migrations. driver is "postgres" or "sqlite". Any failure here is wrapped
// in models.ErrStoreUnavailable so callers can abort before writing.
func OpenSQLStore(ctx context.Context, driver, dsn, collection string, batchSize int, retry *utils.RetryConfig) (*SQLStore, error) {
	return openSQLStore(ctx, driver, dsn, collection, batchSize, retry, false)
}

// OpenSQLStoreReadOnly connects without running any DDL and refuses writes.
// A missing SQLite file is not created and a missing table reads as an
// empty collection. Used for dry runs.
func OpenSQLStoreReadOnly(ctx context.Context, driver, dsn, collection string, batchSize int, retry *utils.RetryConfig) (*SQLStore, error) {
	return openSQLStore(ctx, driver, dsn, collection, batchSize, retry, true)
}

func openSQLStore(ctx context.Context, driver, dsn, collection string, batchSize int, retry *utils.RetryConfig, readOnly bool) (*SQLStore, error) {
	table := strings.ToLower(strings.TrimSpace(collection))
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("store: collection %q: %w", collection, models.ErrInvalidCollection)
	}
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("store: unsupported driver %q: %w", driver, models.ErrStoreUnavailable)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if readOnly && driver == "sqlite" && sqliteFileMissing(dsn) {
		return &SQLStore{table: table, batchSize: batchSize, readOnly: true, absent: true}, nil
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w: %w", models.ErrStoreUnavailable, err)
	}
	if driver == "sqlite" {
		// One connection keeps in-memory databases shared and serialises writers.
		db.SetMaxOpenConns(1)
	}

	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	if err := retry.Do(ctx, "store ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w: %w", models.ErrStoreUnavailable, err)
	}

	s := &SQLStore{db: db, table: table, batchSize: batchSize, readOnly: readOnly}
	if readOnly {
		s.absent = !s.tableExists(ctx)
		return s, nil
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w: %w", models.ErrStoreUnavailable, err)
	}
	return s, nil
}

func sqliteFileMissing(dsn string) bool {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return false
	}
	_, err := os.Stat(dsn)
	return errors.Is(err, os.ErrNotExist)
}

func (s *SQLStore) tableExists(ctx context.Context) bool {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE 1 = 0`, s.table))
	if err != nil {
		return false
	}
	_ = rows.Close()
	return true
}

func (s *SQLStore) checkWritable() error {
	if s.readOnly {
		return fmt.Errorf("store: %s opened read-only: %w", s.table, models.ErrStoreUnavailable)
	}
	return nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id          TEXT PRIMARY KEY,
				title       TEXT             NOT NULL,
				url         TEXT             NOT NULL DEFAULT '',
				canonical   TEXT             NOT NULL DEFAULT '',
				image_url   TEXT             NOT NULL DEFAULT '',
				category    TEXT             NOT NULL,
				region      TEXT             NOT NULL,
				description TEXT             NOT NULL DEFAULT '',
				confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
				reasons     TEXT             NOT NULL DEFAULT '[]',
				ocr_used    BOOLEAN          NOT NULL DEFAULT FALSE,
				source      TEXT             NOT NULL DEFAULT '',
				run_id      TEXT             NOT NULL DEFAULT '',
				updated_at  TEXT             NOT NULL DEFAULT ''
			)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_canonical ON %s(canonical)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Upsert merges listings into the table in batches, one transaction per
// batch. Empty image and description values keep whatever is stored.
func (s *SQLStore) Upsert(ctx context.Context, listings []*models.CanonicalListing, runID string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	listings = uniqueByID(listings)
	now := time.Now().UTC().Format(time.RFC3339)

	for i := 0; i < len(listings); i += s.batchSize {
		end := min(i+s.batchSize, len(listings))
		if err := s.upsertBatch(ctx, listings[i:end], runID, now); err != nil {
			return fmt.Errorf("store: upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func (s *SQLStore) upsertBatch(ctx context.Context, batch []*models.CanonicalListing, runID, now string) error {
	const cols = 14
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*cols)

	for _, l := range batch {
		reasons, err := json.Marshal(l.Reasons)
		if err != nil {
			return fmt.Errorf("encode reasons for %s: %w", l.ID, err)
		}
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		valueArgs = append(valueArgs,
			l.ID, l.Title, l.SourceURL, l.CanonicalURL, l.ImageURL, l.Category, l.Region,
			l.Description, l.Confidence, string(reasons), l.OCRUsed, l.Source, runID, now)
	}

	query := s.db.Rebind(fmt.Sprintf(`
		INSERT INTO %[1]s (id, title, url, canonical, image_url, category, region,
			description, confidence, reasons, ocr_used, source, run_id, updated_at)
		VALUES %[2]s
		ON CONFLICT (id) DO UPDATE SET
			title       = excluded.title,
			url         = excluded.url,
			canonical   = excluded.canonical,
			image_url   = COALESCE(NULLIF(excluded.image_url, ''), %[1]s.image_url),
			category    = excluded.category,
			region      = excluded.region,
			description = COALESCE(NULLIF(excluded.description, ''), %[1]s.description),
			confidence  = excluded.confidence,
			reasons     = excluded.reasons,
			ocr_used    = excluded.ocr_used,
			source      = excluded.source,
			run_id      = excluded.run_id,
			updated_at  = excluded.updated_at
	`, s.table, strings.Join(valueStrings, ",")))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Delete removes rows by id in batches, one transaction per batch.
func (s *SQLStore) Delete(ctx context.Context, ids []string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	for i := 0; i < len(ids); i += s.batchSize {
		end := min(i+s.batchSize, len(ids))
		query, args, err := sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE id IN (?)`, s.table), ids[i:end])
		if err != nil {
			return fmt.Errorf("store: delete: %w", err)
		}
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: delete batch %d-%d: %w", i, end, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: delete batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// ExistingIDs reports which of ids are already stored.
func (s *SQLStore) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(ids))
	if s.absent {
		return found, nil
	}
	for i := 0; i < len(ids); i += s.batchSize {
		end := min(i+s.batchSize, len(ids))
		query, args, err := sqlx.In(fmt.Sprintf(`SELECT id FROM %s WHERE id IN (?)`, s.table), ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("store: existing ids: %w", err)
		}
		var got []string
		if err := s.db.SelectContext(ctx, &got, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("store: existing ids: %w", err)
		}
		for _, id := range got {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

// FetchBySource pages through every record carrying the given provenance
// marker, compared case-insensitively, using keyset pagination on id.
func (s *SQLStore) FetchBySource(ctx context.Context, source string) ([]*models.StoredRecord, error) {
	if s.absent {
		return nil, nil
	}
	query := s.db.Rebind(fmt.Sprintf(`
		SELECT id, title, url, canonical, source
		FROM %s
		WHERE LOWER(source) = LOWER(?) AND id > ?
		ORDER BY id
		LIMIT ?
	`, s.table))

	var out []*models.StoredRecord
	after := ""
	for {
		var page []*models.StoredRecord
		if err := s.db.SelectContext(ctx, &page, query, source, after, s.batchSize); err != nil {
			return nil, fmt.Errorf("store: fetch by source: %w", err)
		}
		out = append(out, page...)
		if len(page) < s.batchSize {
			return out, nil
		}
		after = page[len(page)-1].ID
	}
}

// FetchAll retrieves all stored listings ordered by id.
func (s *SQLStore) FetchAll(ctx context.Context) ([]*models.CanonicalListing, error) {
	if s.absent {
		return nil, nil
	}
	var rows []listingRow
	err := s.db.SelectContext(ctx, &rows, fmt.Sprintf(`
		SELECT id, title, url, canonical, image_url, category, region,
			description, confidence, reasons, ocr_used, source
		FROM %s
		ORDER BY id
	`, s.table))
	if err != nil {
		return nil, fmt.Errorf("store: fetch all: %w", err)
	}

	listings := make([]*models.CanonicalListing, 0, len(rows))
	for _, r := range rows {
		var reasons []string
		if r.Reasons != "" {
			if err := json.Unmarshal([]byte(r.Reasons), &reasons); err != nil {
				return nil, fmt.Errorf("store: decode reasons for %s: %w", r.ID, err)
			}
		}
		listings = append(listings, &models.CanonicalListing{
			ID:           r.ID,
			Title:        r.Title,
			CanonicalURL: r.Canonical,
			SourceURL:    r.URL,
			ImageURL:     r.ImageURL,
			Category:     r.Category,
			Region:       r.Region,
			Description:  r.Description,
			Confidence:   r.Confidence,
			Reasons:      reasons,
			Source:       r.Source,
			OCRUsed:      r.OCRUsed,
		})
	}
	return listings, nil
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// uniqueByID keeps the last listing per id so a single statement never
// touches the same row twice.
func uniqueByID(listings []*models.CanonicalListing) []*models.CanonicalListing {
	pos := make(map[string]int, len(listings))
	out := make([]*models.CanonicalListing, 0, len(listings))
	for _, l := range listings {
		if i, ok := pos[l.ID]; ok {
			out[i] = l
			continue
		}
		pos[l.ID] = len(out)
		out = append(out, l)
	}
	return out
}
