// Package ocr decides when recognized image text is worth requesting,
// fetches it through a Recognizer and caches it per run.
package ocr

import (
	"context"
	"path"
	"regexp"
	"sort"
	"strings"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
)

// Recognizer returns best-effort text for an image reference.
type Recognizer interface {
	Recognize(ctx context.Context, imageURL string) (string, error)
}

const (
	// WeakConfidence is the category confidence below which OCR is requested.
	WeakConfidence = 0.3
	// DefaultMaxImages is how many candidates are sent when unset.
	DefaultMaxImages = 3

	promoBonus = 500000
)

var promoHint = regexp.MustCompile(`(?i)promo|flyer|afiche|voucher|condiciones|bases|sucursal|sedes|tarifa|hotel|spa|term|beneficio`)

// ShouldRequest reports whether the preliminary results are weak enough to
// justify OCR: an unknown or low-confidence category, or a region that is
// unknown or only nationwide.
func ShouldRequest(c models.ClassificationResult, region string) bool {
	return CategoryIsWeak(c) || RegionIsWeak(region)
}

// CategoryIsWeak reports whether a category result may be replaced by OCR.
func CategoryIsWeak(c models.ClassificationResult) bool {
	return c.Category == dictionary.CategoryUnknown || c.Confidence < WeakConfidence
}

// RegionIsWeak reports whether a region may be replaced by OCR.
func RegionIsWeak(region string) bool {
	return region == "" || region == dictionary.RegionUnknown || region == dictionary.RegionNational
}

// PickCandidates ranks images by pixel area plus a bonus for promotional
// hints in the alt text or filename, and returns the top n.
func PickCandidates(images []models.ImageDescriptor, n int) []models.ImageDescriptor {
	if n <= 0 {
		n = DefaultMaxImages
	}
	ranked := make([]models.ImageDescriptor, 0, len(images))
	for _, img := range images {
		if strings.TrimSpace(img.Src) != "" {
			ranked = append(ranked, img)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return candidateScore(ranked[i]) > candidateScore(ranked[j])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func candidateScore(img models.ImageDescriptor) int {
	score := img.Width * img.Height
	src := img.Src
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if promoHint.MatchString(img.Alt + " " + path.Base(src)) {
		score += promoBonus
	}
	return score
}
