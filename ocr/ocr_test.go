package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
)

type stubRecognizer struct {
	calls atomic.Int64
	text  map[string]string
	fail  map[string]bool
	delay time.Duration
}

func (s *stubRecognizer) Recognize(_ context.Context, imageURL string) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail[imageURL] {
		return "", models.ErrOCRUnavailable
	}
	return s.text[imageURL], nil
}

func TestShouldRequest(t *testing.T) {
	strong := models.ClassificationResult{Category: dictionary.CategoryLodging, Confidence: 0.8}
	weak := models.ClassificationResult{Category: dictionary.CategoryLodging, Confidence: 0.29}
	unknown := models.ClassificationResult{Category: dictionary.CategoryUnknown}

	tests := []struct {
		name   string
		c      models.ClassificationResult
		region string
		want   bool
	}{
		{"strong evidence", strong, "Salta", false},
		{"low confidence", weak, "Salta", true},
		{"unknown category", unknown, "Salta", true},
		{"unknown region", strong, dictionary.RegionUnknown, true},
		{"nationwide region", strong, dictionary.RegionNational, true},
		{"threshold is exclusive", models.ClassificationResult{Category: dictionary.CategoryFood, Confidence: 0.3}, "Salta", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldRequest(tt.c, tt.region), tt.name)
	}
}

func TestPickCandidates(t *testing.T) {
	images := []models.ImageDescriptor{
		{Src: "https://x/a.jpg", Width: 800, Height: 600},
		{Src: "", Width: 4000, Height: 4000},
		{Src: "https://x/flyer-verano.png", Width: 100, Height: 100},
		{Src: "https://x/b.jpg", Width: 1000, Height: 1000},
		{Src: "https://x/c.jpg", Alt: "Tarifas 2024", Width: 10, Height: 10},
		{Src: "https://x/d.jpg", Width: 10, Height: 10},
	}
	got := PickCandidates(images, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "https://x/b.jpg", got[0].Src)
	assert.Equal(t, "https://x/flyer-verano.png", got[1].Src)
	assert.Equal(t, "https://x/c.jpg", got[2].Src)

	assert.Len(t, PickCandidates(images, 0), DefaultMaxImages)
	assert.Empty(t, PickCandidates(nil, 2))
}

func TestCacheCollapsesConcurrentRequests(t *testing.T) {
	stub := &stubRecognizer{text: map[string]string{"img": "Hotel Bariloche"}, delay: 20 * time.Millisecond}
	cache := NewCache(stub)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txt, err := cache.Recognize(context.Background(), "img")
			assert.NoError(t, err)
			assert.Equal(t, "Hotel Bariloche", txt)
		}()
	}
	wg.Wait()

	_, err := cache.Recognize(context.Background(), "img")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stub.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	stub := &stubRecognizer{fail: map[string]bool{"bad": true}}
	cache := NewCache(stub)

	_, err := cache.Recognize(context.Background(), "bad")
	assert.ErrorIs(t, err, models.ErrOCRUnavailable)
	_, err = cache.Recognize(context.Background(), "bad")
	assert.Error(t, err)
	assert.Equal(t, int64(2), stub.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestCollectSkipsFailures(t *testing.T) {
	stub := &stubRecognizer{
		text: map[string]string{"a": " Sucursal Rosario ", "c": "Tarifa"},
		fail: map[string]bool{"b": true},
	}
	var failed []string
	txt := Collect(context.Background(), stub,
		[]models.ImageDescriptor{{Src: "a"}, {Src: "b"}, {Src: "c"}},
		func(src string, _ error) { failed = append(failed, src) })

	assert.Equal(t, "Sucursal Rosario Tarifa", txt)
	assert.Equal(t, []string{"b"}, failed)
}

func TestHTTPRecognizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.URL == "https://img/broken.jpg" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(recognizeResponse{Text: "texto " + req.Lang})
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, "spa+eng", 5*time.Second, 0)

	txt, err := rec.Recognize(context.Background(), "https://img/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, "texto spa+eng", txt)

	_, err = rec.Recognize(context.Background(), "https://img/broken.jpg")
	assert.True(t, errors.Is(err, models.ErrOCRUnavailable))
}

func TestHTTPRecognizerHonoursContext(t *testing.T) {
	rec := NewHTTPRecognizer("http://127.0.0.1:0", "spa", time.Second, 0.001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Recognize(ctx, "https://img/x.jpg")
	assert.Error(t, err)
}
