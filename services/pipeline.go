package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"benefit-scraper/classifier"
	"benefit-scraper/dictionary"
	"benefit-scraper/models"
	"benefit-scraper/ocr"
	"benefit-scraper/utils"
)

// PipelineOptions configures the classification stage. A nil Recognizer
// disables OCR entirely.
type PipelineOptions struct {
	Recognizer   ocr.Recognizer
	MaxOCRImages int
	Workers      int
}

// Pipeline classifies raw listing signals: category, region, the OCR gate
// and the correction pass. Listings are independent, so they run in
// parallel while sharing the recognizer (and its cache).
type Pipeline struct {
	logger *utils.Logger
	opts   PipelineOptions
}

// NewPipeline creates a Pipeline with the given logger and options.
func NewPipeline(logger *utils.Logger, opts PipelineOptions) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxOCRImages <= 0 {
		opts.MaxOCRImages = ocr.DefaultMaxImages
	}
	return &Pipeline{logger: logger, opts: opts}
}

// Process classifies every well-formed listing. Malformed listings are
// logged and skipped. On cancellation it returns the listings classified so
// far together with the context error.
func (p *Pipeline) Process(ctx context.Context, signals []*models.ListingSignals) ([]*models.ClassifiedListing, error) {
	valid := make([]*models.ListingSignals, 0, len(signals))
	for i, sig := range signals {
		if err := checkSignals(sig); err != nil {
			p.logger.Warn("[pipeline] Skipping listing #%d: %v", i, err)
			continue
		}
		valid = append(valid, sig)
	}

	results := make([]*models.ClassifiedListing, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, sig := range valid {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.classify(gctx, sig)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	out := make([]*models.ClassifiedListing, 0, len(results))
	ocrUsed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.OCRUsed {
			ocrUsed++
		}
		out = append(out, r)
	}

	p.logger.Info("[pipeline] Classified %d/%d listings (OCR used on %d)", len(out), len(signals), ocrUsed)
	if err != nil {
		return out, fmt.Errorf("pipeline: %w", err)
	}
	return out, nil
}

func (p *Pipeline) classify(ctx context.Context, sig *models.ListingSignals) *models.ClassifiedListing {
	c := classifier.Classify(sig)
	region := classifier.ResolveRegion(sig)
	out := &models.ClassifiedListing{Signals: sig}

	if p.opts.Recognizer != nil && ocr.ShouldRequest(c, region.Region) {
		candidates := ocr.PickCandidates(sig.Images, p.opts.MaxOCRImages)
		text := ocr.Collect(ctx, p.opts.Recognizer, candidates, func(src string, err error) {
			p.logger.Warn("[ocr] %s: %v", src, err)
		})
		if text != "" {
			enriched := *sig
			enriched.OCRText = text
			out.Signals = &enriched
			out.OCRUsed = true
			c, region = mergeOCR(&enriched, c, region)
		}
	}

	out.Warnings = classifier.Validate(sig.Title, &c, region)
	for _, w := range out.Warnings {
		p.logger.Warn("[validation] %q: %s", sig.Title, w)
	}
	out.Classification = c
	out.Region = region

	p.logger.Debug("[pipeline] %q → %s (%.3f), %s via %s, ocr=%t",
		sig.Title, c.Category, c.Confidence, region.Region, region.Strategy, out.OCRUsed)
	return out
}

// mergeOCR re-runs both resolvers with OCR evidence and keeps a re-run
// result only where the preliminary one was weak and the re-run found
// something better.
func mergeOCR(sig *models.ListingSignals, c models.ClassificationResult, region models.RegionResult) (models.ClassificationResult, models.RegionResult) {
	if ocr.CategoryIsWeak(c) {
		if re := classifier.Classify(sig); re.Category != dictionary.CategoryUnknown {
			c = re
		}
	}
	if ocr.RegionIsWeak(region.Region) {
		if re, ok := classifier.RegionFromOCR(sig.OCRText); ok && dictionary.IsSpecificRegion(re.Region) {
			region = re
		}
	}
	return c, region
}

func checkSignals(sig *models.ListingSignals) error {
	if sig == nil {
		return fmt.Errorf("%w: nil listing", models.ErrMalformedListing)
	}
	if strings.TrimSpace(sig.Title) == "" {
		return fmt.Errorf("%w: missing title (url %q)", models.ErrMalformedListing, sig.URL)
	}
	if strings.TrimSpace(sig.URL) == "" {
		return fmt.Errorf("%w: missing url (title %q)", models.ErrMalformedListing, sig.Title)
	}
	return nil
}
