package labancaria

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benefit-scraper/config"
	"benefit-scraper/utils"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newStubFetcher(pages map[string]string) *stubFetcher {
	return &stubFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("not found")
	}
	return html, nil
}

func (f *stubFetcher) Close() error { return nil }

func (f *stubFetcher) called(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

const (
	start = "https://labancaria.test/beneficios/"
	page2 = "https://labancaria.test/beneficios/page/2/"
)

func sitePages() map[string]string {
	return map[string]string{
		start: `<html><body>
<article><h3><a href="/beneficios/a/">Hotel A</a></h3></article>
<article><h3><a href="/beneficios/b/">Parrilla B</a></h3><p>Cenas</p></article>
<a class="next" href="/beneficios/page/2/">Siguiente</a>
</body></html>`,
		page2: `<html><body>
<article><h3><a href="/beneficios/b/?utm_source=news">Parrilla B</a></h3></article>
<article><h3><a href="/beneficios/c/">Gimnasio C</a></h3></article>
</body></html>`,
		"https://labancaria.test/beneficios/a/": `<html><body><h1>Hotel A en Salta</h1><div class="entry-content">Estadía</div></body></html>`,
		"https://labancaria.test/beneficios/c/": `<html><body><h1>Gimnasio C</h1><div class="entry-content">Pase libre</div></body></html>`,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		StartURL:       start,
		PagesToScrape:  3,
		MaxConcurrency: 2,
		RateLimitMs:    0,
		MaxRetries:     1,
	}
}

func TestScrapeFollowsPagesAndDedups(t *testing.T) {
	fetcher := newStubFetcher(sitePages())
	s := New(testConfig(), utils.NewDiscardLogger(), fetcher, 0)

	signals, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 3)

	assert.Equal(t, "Hotel A en Salta", signals[0].Title)
	assert.Equal(t, "Estadía", signals[0].DetailText)

	// b has no detail page: list-card evidence only.
	assert.Equal(t, "Parrilla B", signals[1].Title)
	assert.Equal(t, "Cenas", signals[1].Description)
	assert.Empty(t, signals[1].DetailText)

	assert.Equal(t, "Gimnasio C", signals[2].Title)
	assert.Equal(t, 1, fetcher.called(page2))
	assert.Equal(t, 3, s.visited.Size())
}

func TestScrapeRespectsMaxItems(t *testing.T) {
	fetcher := newStubFetcher(sitePages())
	s := New(testConfig(), utils.NewDiscardLogger(), fetcher, 1)

	signals, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "Hotel A en Salta", signals[0].Title)
	assert.Zero(t, fetcher.called(page2))
}

func TestScrapeStopsAtPageLimit(t *testing.T) {
	cfg := testConfig()
	cfg.PagesToScrape = 1
	fetcher := newStubFetcher(sitePages())

	signals, err := New(cfg, utils.NewDiscardLogger(), fetcher, 0).Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 2)
	assert.Zero(t, fetcher.called(page2))
}

func TestScrapeStopsOnPaginationLoop(t *testing.T) {
	pages := sitePages()
	pages[page2] = `<html><body>
<article><h3><a href="/beneficios/c/">Gimnasio C</a></h3></article>
<a class="next" href="/beneficios/">Primera</a>
</body></html>`
	fetcher := newStubFetcher(pages)

	signals, err := New(testConfig(), utils.NewDiscardLogger(), fetcher, 0).Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 3)
	assert.Equal(t, 1, fetcher.called(start))
	assert.Equal(t, 1, fetcher.called(page2))
}

func TestScrapeFirstPageFailureIsFatal(t *testing.T) {
	fetcher := newStubFetcher(map[string]string{})
	signals, err := New(testConfig(), utils.NewDiscardLogger(), fetcher, 0).Scrape(context.Background())
	assert.Error(t, err)
	assert.Nil(t, signals)
}

func TestScrapeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(), utils.NewDiscardLogger(), newStubFetcher(sitePages()), 0).Scrape(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetcherDecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body><h1>Caba\xf1as del Lago</h1></body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	defer f.Close()

	html, err := f.Fetch(context.Background(), srv.URL+"/beneficios/cabanas/")
	require.NoError(t, err)
	assert.Contains(t, html, "Cabañas del Lago")

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}
