package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benefit-scraper/models"
)

func openMemoryStore(t *testing.T, batchSize int) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(context.Background(), "sqlite", ":memory:", "beneficios", batchSize, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func listing(id, canonical, source string) *models.CanonicalListing {
	return &models.CanonicalListing{
		ID:           id,
		Title:        "Listing " + id,
		CanonicalURL: canonical,
		SourceURL:    canonical + "/",
		ImageURL:     "https://img/" + id + ".jpg",
		Category:     "Alojamiento",
		Region:       "Salta",
		Description:  "desc " + id,
		Confidence:   0.75,
		Reasons:      []string{"[+3] Alojamiento: title \"hotel\""},
		Source:       source,
	}
}

func TestOpenRejectsUnsafeCollection(t *testing.T) {
	for _, name := range []string{"", "bene-ficios", "1abc", "x; DROP TABLE y"} {
		_, err := OpenSQLStore(context.Background(), "sqlite", ":memory:", name, 0, nil)
		assert.ErrorIs(t, err, models.ErrInvalidCollection, name)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), "mongo", "x", "beneficios", 0, nil)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestUpsertAndFetchAll(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t, 2)

	in := []*models.CanonicalListing{
		listing("b", "https://labancaria.org/beneficios/b", "bulk-upload"),
		listing("a", "https://labancaria.org/beneficios/a", "bulk-upload"),
		listing("c", "https://labancaria.org/beneficios/c", "bulk-upload"),
	}
	in[0].OCRUsed = true
	require.NoError(t, s.Upsert(ctx, in, "run-1"))

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.True(t, all[1].OCRUsed)
	assert.Equal(t, []string{"[+3] Alojamiento: title \"hotel\""}, all[0].Reasons)
	assert.Equal(t, "https://labancaria.org/beneficios/a/", all[0].SourceURL)
	assert.InDelta(t, 0.75, all[0].Confidence, 1e-9)
}

func TestUpsertMergeKeepsStoredOptionalFields(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t, 10)

	first := listing("a", "https://labancaria.org/beneficios/a", "bulk-upload")
	require.NoError(t, s.Upsert(ctx, []*models.CanonicalListing{first}, "run-1"))

	second := listing("a", "https://labancaria.org/beneficios/a", "bulk-upload")
	second.ImageURL = ""
	second.Description = ""
	second.Region = "Jujuy"
	require.NoError(t, s.Upsert(ctx, []*models.CanonicalListing{second}, "run-2"))

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "https://img/a.jpg", all[0].ImageURL)
	assert.Equal(t, "desc a", all[0].Description)
	assert.Equal(t, "Jujuy", all[0].Region)
}

func TestUpsertDuplicateIDsInOneCall(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t, 10)

	a1 := listing("a", "https://x/a", "bulk-upload")
	a2 := listing("a", "https://x/a", "bulk-upload")
	a2.Title = "Newer"
	require.NoError(t, s.Upsert(ctx, []*models.CanonicalListing{a1, a2}, "run-1"))

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Newer", all[0].Title)
}

func TestExistingIDsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t, 2)

	var in []*models.CanonicalListing
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		in = append(in, listing(id, "https://x/"+id, "bulk-upload"))
	}
	require.NoError(t, s.Upsert(ctx, in, "run-1"))

	found, err := s.ExistingIDs(ctx, []string{"a", "c", "e", "zz"})
	require.NoError(t, err)
	assert.Len(t, found, 3)
	assert.NotContains(t, found, "zz")

	require.NoError(t, s.Delete(ctx, []string{"a", "b", "c"}))
	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "d", all[0].ID)

	require.NoError(t, s.Delete(ctx, nil))
}

func TestFetchBySourcePaginates(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t, 2)

	in := []*models.CanonicalListing{
		listing("a", "https://x/a", "bulk-upload"),
		listing("b", "https://x/b", "Bulk-Upload"),
		listing("c", "https://x/c", "bulk-upload"),
		listing("d", "https://x/d", "bulk-upload"),
		listing("m", "https://x/m", ""),
		listing("n", "https://x/n", "manual"),
	}
	require.NoError(t, s.Upsert(ctx, in, "run-1"))

	got, err := s.FetchBySource(ctx, "bulk-upload")
	require.NoError(t, err)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, "https://x/a", got[0].Canonical)
	assert.Equal(t, "https://x/a/", got[0].URL)
}

func TestCSVWriterWritesEveryRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "raw.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	var signals []*models.ListingSignals
	for i := 0; i < 12; i++ {
		signals = append(signals, &models.ListingSignals{
			Title:     "Hotel",
			URL:       "https://x/" + strings.Repeat("a", i+1),
			Badges:    []string{"20% off", "Cuotas"},
			Images:    []models.ImageDescriptor{{Src: "https://img/1.jpg", Width: 10, Height: 20}},
			ScrapedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		})
	}
	require.NoError(t, w.WriteRaw(signals))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 13)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "20% off | Cuotas", rows[1][4])
	assert.Equal(t, "2024-01-02T03:04:05Z", rows[1][10])

	var imgs []models.ImageDescriptor
	require.NoError(t, json.Unmarshal([]byte(rows[1][9]), &imgs))
	assert.Equal(t, 20, imgs[0].Height)
}

func TestCSVWriterSkipsNullEntries(t *testing.T) {
	signals, err := DecodeSignals(strings.NewReader(`[null, {"title": "Hotel Sol", "url": "https://x/sol"}]`))
	require.NoError(t, err)
	require.Len(t, signals, 2)

	path := filepath.Join(t.TempDir(), "raw.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRaw(signals))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Hotel Sol", rows[1][0])
}

func TestReadOnlyStoreLeavesMissingDatabaseAlone(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "beneficios.db")

	s, err := OpenSQLStoreReadOnly(ctx, "sqlite", path, "beneficios", 0, nil)
	require.NoError(t, err)
	defer s.Close()

	ids, err := s.ExistingIDs(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	prior, err := s.FetchBySource(ctx, "bulk-upload")
	require.NoError(t, err)
	assert.Empty(t, prior)

	err = s.Upsert(ctx, []*models.CanonicalListing{listing("a", "https://x/a", "bulk-upload")}, "run-1")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, []string{"a"}), models.ErrStoreUnavailable)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "read-only open must not create the database file")
}

func TestReadOnlyStoreReadsExistingRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "beneficios.db")

	rw, err := OpenSQLStore(ctx, "sqlite", path, "beneficios", 0, nil)
	require.NoError(t, err)
	require.NoError(t, rw.Upsert(ctx, []*models.CanonicalListing{listing("a", "https://x/a", "bulk-upload")}, "run-1"))
	require.NoError(t, rw.Close())

	ro, err := OpenSQLStoreReadOnly(ctx, "sqlite", path, "beneficios", 0, nil)
	require.NoError(t, err)
	defer ro.Close()

	ids, err := ro.ExistingIDs(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}}, ids)

	// A collection that was never migrated reads as empty and stays absent.
	other, err := OpenSQLStoreReadOnly(ctx, "sqlite", path, "otros", 0, nil)
	require.NoError(t, err)
	defer other.Close()
	all, err := other.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.False(t, ro.absent)
	assert.True(t, other.absent)
}

func TestJSONFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "signals.json")
	in := []*models.ListingSignals{{Title: "Cabañas del Sol", URL: "https://x/1", SchemaTypes: []string{"Hotel"}}}
	require.NoError(t, WriteJSONFile(path, in))

	got, err := ReadSignalsFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cabañas del Sol", got[0].Title)
	assert.Equal(t, []string{"Hotel"}, got[0].SchemaTypes)

	_, err = ReadSignalsFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = input
	f.body, _ = io.ReadAll(input.Body)
	return &manager.UploadOutput{Location: "s3://bucket/" + *input.Key}, nil
}

func TestS3ExporterUploadsJSON(t *testing.T) {
	up := &fakeUploader{}
	e := &S3Exporter{bucket: "snapshots", uploader: up}

	err := e.Export(context.Background(), "beneficios/latest.json",
		[]*models.CanonicalListing{listing("a", "https://x/a", "bulk-upload")})
	require.NoError(t, err)

	assert.Equal(t, "snapshots", *up.input.Bucket)
	assert.Equal(t, "beneficios/latest.json", *up.input.Key)
	assert.Equal(t, "application/json", *up.input.ContentType)
	assert.True(t, bytes.HasPrefix(up.body, []byte(`[{"id":"a"`)))
}

func TestS3ExporterWrapsUploadError(t *testing.T) {
	boom := errors.New("denied")
	e := &S3Exporter{bucket: "b", uploader: &fakeUploader{err: boom}}
	err := e.Export(context.Background(), "k", nil)
	assert.ErrorIs(t, err, boom)
}

func TestNewS3ExporterRequiresBucket(t *testing.T) {
	_, err := NewS3Exporter(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
