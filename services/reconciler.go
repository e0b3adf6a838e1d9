package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"benefit-scraper/canonical"
	"benefit-scraper/classifier"
	"benefit-scraper/dictionary"
	"benefit-scraper/models"
	"benefit-scraper/textnorm"
	"benefit-scraper/utils"
)

// RegionFix forces Region on listings whose normalized title matches
// Pattern and whose resolved region is not specific.
type RegionFix struct {
	Pattern *regexp.Regexp
	Region  string
}

// KnownRegionFixes lists listings known to resolve as nationwide.
var KnownRegionFixes = []RegionFix{
	{Pattern: regexp.MustCompile(`\bbagu\s+ushuaia\b`), Region: "Tierra del Fuego"},
}

// Reconciler turns classified listings into canonical records: aggregator
// filtering, URL canonicalization, stable ids, and best-evidence dedup.
type Reconciler struct {
	logger     *utils.Logger
	provenance string
	opts       canonical.Options
}

// NewReconciler creates a Reconciler stamping records with provenance.
func NewReconciler(logger *utils.Logger, provenance string, opts canonical.Options) *Reconciler {
	return &Reconciler{logger: logger, provenance: provenance, opts: opts}
}

// Reconcile needs the whole batch: two listings with the same canonical URL
// collapse to the more complete one, ties keeping the first seen.
func (r *Reconciler) Reconcile(classified []*models.ClassifiedListing) []*models.CanonicalListing {
	index := make(map[string]int)
	result := make([]*models.CanonicalListing, 0, len(classified))

	for _, c := range classified {
		if c == nil || c.Signals == nil {
			continue
		}
		sig := c.Signals

		if canonical.IsAggregator(sig.Title) {
			r.logger.Debug("[reconciler] Dropping aggregator post: %s", sig.Title)
			continue
		}

		canon := canonical.URL(sig.URL, r.opts)
		if canon == "" {
			r.logger.Warn("[reconciler] Dropping listing with empty URL: %s", sig.Title)
			continue
		}

		listing := r.build(c, canon)

		if i, dup := index[canon]; dup {
			prev := result[i]
			if canonical.Completeness(listing) > canonical.Completeness(prev) {
				r.logger.Debug("[reconciler] %s: replacing %q with more complete %q", canon, prev.Title, listing.Title)
				result[i] = listing
			} else {
				r.logger.Debug("[reconciler] Duplicate canonical URL skipped: %s", canon)
			}
			continue
		}
		index[canon] = len(result)
		result = append(result, listing)
	}

	r.logger.Info("[reconciler] Reconciled %d → %d listings (dropped %d)",
		len(classified), len(result), len(classified)-len(result))
	return result
}

func (r *Reconciler) build(c *models.ClassifiedListing, canon string) *models.CanonicalListing {
	sig := c.Signals
	title := normaliseText(sig.Title)

	reasons := make([]string, 0, len(c.Classification.Reasons)+2)
	reasons = append(reasons, c.Classification.Reasons...)
	reasons = append(reasons, fmt.Sprintf("[region] %s via %s", c.Region.Region, c.Region.Strategy))

	listing := &models.CanonicalListing{
		ID:           canonical.StableID(canon, title),
		Title:        title,
		CanonicalURL: canon,
		SourceURL:    strings.TrimSpace(sig.URL),
		ImageURL:     pickImage(sig),
		Category:     c.Classification.Category,
		Region:       c.Region.Region,
		Description:  normaliseText(sig.Description),
		Confidence:   c.Classification.Confidence,
		Reasons:      reasons,
		Source:       r.provenance,
		OCRUsed:      c.OCRUsed,
	}
	applyRegionFixes(listing)
	listing.Reasons = boundReasons(listing.Reasons)
	return listing
}

// boundReasons caps the trace at classifier.MaxReasons. Decision lines
// (corrections, region, fixes) are kept; scoring evidence ("[+N] ...") is
// cut from the end.
func boundReasons(reasons []string) []string {
	if len(reasons) <= classifier.MaxReasons {
		return reasons
	}
	var evidence, decisions []string
	for _, r := range reasons {
		if strings.HasPrefix(r, "[+") {
			evidence = append(evidence, r)
		} else {
			decisions = append(decisions, r)
		}
	}
	if len(decisions) >= classifier.MaxReasons {
		return decisions[len(decisions)-classifier.MaxReasons:]
	}
	keep := classifier.MaxReasons - len(decisions)
	return append(evidence[:keep:keep], decisions...)
}

func applyRegionFixes(l *models.CanonicalListing) {
	if dictionary.IsSpecificRegion(l.Region) {
		return
	}
	t := textnorm.Normalize(l.Title)
	for _, fix := range KnownRegionFixes {
		if fix.Pattern.MatchString(t) {
			l.Reasons = append(l.Reasons, fmt.Sprintf("[fix] region %s -> %s (known listing)", l.Region, fix.Region))
			l.Region = fix.Region
			return
		}
	}
}

// pickImage prefers og:image, then the first content image, then the list
// card thumbnail.
func pickImage(sig *models.ListingSignals) string {
	if s := strings.TrimSpace(sig.OGImage); s != "" {
		return s
	}
	for _, img := range sig.Images {
		if s := strings.TrimSpace(img.Src); s != "" {
			return s
		}
	}
	return strings.TrimSpace(sig.ListImage)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
