package canonical

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
	"benefit-scraper/textnorm"
)

const (
	slugMaxLen  = 50
	hashLen     = 16
	defaultSlug = "beneficio"
)

var aggregatorTitle = regexp.MustCompile(`^disfruta\b`)

// StableID derives a deterministic identifier from the canonical URL (or the
// title when there is no URL) plus a readable slug of the title.
func StableID(canonicalURL, title string) string {
	base := strings.TrimSpace(canonicalURL)
	if base == "" {
		base = strings.TrimSpace(title)
	}
	sum := sha1.Sum([]byte(base))
	slug := textnorm.Slug(title, slugMaxLen)
	if slug == "" {
		slug = defaultSlug
	}
	return slug + "-" + hex.EncodeToString(sum[:])[:hashLen]
}

// Completeness scores how much evidence a record carries: one point each for
// an image, a specific region and a known category.
func Completeness(l *models.CanonicalListing) int {
	score := 0
	if strings.TrimSpace(l.ImageURL) != "" {
		score++
	}
	if dictionary.IsSpecificRegion(l.Region) {
		score++
	}
	if dictionary.IsKnownCategory(l.Category) {
		score++
	}
	return score
}

// IsAggregator reports whether a title is a cross-posting announcement
// ("Disfrutá ...") rather than a real listing.
func IsAggregator(title string) bool {
	return aggregatorTitle.MatchString(textnorm.Normalize(title))
}
