package labancaria

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"benefit-scraper/canonical"
	"benefit-scraper/config"
	"benefit-scraper/models"
	"benefit-scraper/utils"
)

// Scraper walks the benefits index and its detail pages.
type Scraper struct {
	cfg      *config.Config
	logger   *utils.Logger
	fetcher  Fetcher
	pool     *utils.WorkerPool
	visited  *utils.URLSet
	pages    *utils.URLSet
	retry    *utils.RetryConfig
	maxItems int
	canon    canonical.Options
}

// New creates a Scraper. maxItems <= 0 means no cap.
func New(cfg *config.Config, logger *utils.Logger, fetcher Fetcher, maxItems int) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		pool:    utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visited: utils.NewURLSet(),
		pages:   utils.NewURLSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		maxItems: maxItems,
		canon:    canonical.Options{StripTrackingOnly: cfg.StripTrackingOnly},
	}
}

// Scrape collects ListingSignals for every card reachable from the start URL.
// A failure on the first list page is fatal; later pages end pagination.
// On cancellation the signals gathered so far are returned with the error.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.ListingSignals, error) {
	s.logger.Info("[labancaria] Starting scrape: %s (max %d pages)", s.cfg.StartURL, s.cfg.PagesToScrape)

	var cards []ListCard
	pageURL := s.cfg.StartURL
	for page := 1; page <= s.cfg.PagesToScrape && pageURL != ""; page++ {
		s.pages.Add(canonical.URL(pageURL, s.canon))
		html, err := s.fetch(ctx, fmt.Sprintf("list-page-%d", page), pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("labancaria: list page: %w", err)
			}
			s.logger.Error("[labancaria] Page %d failed: %v", page, err)
			break
		}

		pageCards, next, err := ParseList(html, pageURL)
		if err != nil {
			return nil, fmt.Errorf("labancaria: %w", err)
		}

		added := 0
		for _, c := range pageCards {
			if s.maxItems > 0 && len(cards) >= s.maxItems {
				break
			}
			if !s.visited.Add(canonical.URL(c.Link, s.canon)) {
				continue
			}
			cards = append(cards, c)
			added++
		}
		s.logger.Info("[labancaria] Page %d: %d cards (%d new, %d total)", page, len(pageCards), added, len(cards))

		if len(pageCards) == 0 || (s.maxItems > 0 && len(cards) >= s.maxItems) {
			break
		}
		if s.pages.Contains(canonical.URL(next, s.canon)) {
			s.logger.Warn("[labancaria] Next link %s was already visited, stopping", next)
			break
		}
		pageURL = next
	}

	return s.collectDetails(ctx, cards)
}

// collectDetails fetches every card's detail page through the worker pool.
// A card whose detail page cannot be fetched keeps its list-page evidence.
func (s *Scraper) collectDetails(ctx context.Context, cards []ListCard) ([]*models.ListingSignals, error) {
	results := make([]*models.ListingSignals, len(cards))
	var (
		mu     sync.Mutex
		failed int
	)

	for i, card := range cards {
		ok := s.pool.Submit(ctx, func(ctx context.Context) {
			var detail *Detail
			html, err := s.fetch(ctx, "detail-page", card.Link)
			if err == nil {
				detail, err = ParseDetail(html, card.Link)
			}
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Warn("[labancaria] Detail page failed for %s: %v", card.Link, err)
				}
				mu.Lock()
				failed++
				mu.Unlock()
			}
			results[i] = ToSignals(card, detail)
			s.logger.Debug("[labancaria] Collected: %s", results[i].Title)
		})
		if !ok {
			break
		}
	}
	s.pool.Wait()

	signals := make([]*models.ListingSignals, 0, len(results))
	for _, r := range results {
		if r != nil {
			signals = append(signals, r)
		}
	}
	s.logger.Info("[labancaria] Scrape complete: %d listings (%d without detail page)", len(signals), failed)

	if err := ctx.Err(); err != nil {
		return signals, fmt.Errorf("labancaria: %w", err)
	}
	return signals, nil
}

func (s *Scraper) fetch(ctx context.Context, op, url string) (string, error) {
	var html string
	err := s.retry.Do(ctx, op, func() error {
		var err error
		html, err = s.fetcher.Fetch(ctx, url)
		return err
	})
	return html, err
}
