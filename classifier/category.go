// Package classifier infers a listing's category and region from weighted
// evidence, then applies the rule-based correction pass.
package classifier

import (
	"fmt"
	"math"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
	"benefit-scraper/textnorm"
)

// Channel weights.
const (
	weightStructure     = 5.0
	weightTitle         = 3.0
	weightDetail        = 1.5
	weightImageAlt      = 1.5
	weightImageFilename = 1.5
	weightURL           = 1.5
	weightBadge         = 2.5
	weightSchema        = 4.5
	weightBrand         = 4.0
	weightOCR           = 1.5

	weightPackageLodging   = 3.0
	weightPackageTours     = 2.5
	weightPackageTransfers = 1.5
)

// MaxReasons bounds the evidence trace kept on a result.
const MaxReasons = 10

var structureRules = []dictionary.PatternRule{
	{Pattern: regexp.MustCompile(`\b(hosteria|hotel|apart|cabanas?|posada)\b`), Category: dictionary.CategoryLodging},
	{Pattern: regexp.MustCompile(`\b(restaurant|restaurante|parrilla|resto\s*bar)\b`), Category: dictionary.CategoryFood},
	{Pattern: regexp.MustCompile(`\b(jubil|pension|reafiliat|sepelio|funeral|seguro)`), Category: dictionary.CategoryServices},
	{Pattern: regexp.MustCompile(`viaje\s*de\s*bodas|luna\s*de\s*miel|honeymoon`), Category: dictionary.CategoryActivities},
	{Pattern: regexp.MustCompile(`obra\s*social|beneficio\s*social`), Category: dictionary.CategoryHealth},
}

var (
	discountPattern  = regexp.MustCompile(`\b\d+%\s*(de\s*)?(descuento|off|dto)\b`)
	discountLodging  = regexp.MustCompile(`hotel|alojamiento|estadia`)
	packagePattern   = regexp.MustCompile(`paquete|combo|promo|full|express|escapada`)
	packageNights    = regexp.MustCompile(`\b\d+\s*(noche|noches|dia|dias)\b|\bnoches?\b`)
	packageLodging   = regexp.MustCompile(`hotel|hosteria|cabana|alojamiento|apart`)
	packageTours     = regexp.MustCompile(`excursion|tour|visita|entrada|paseo|itinerario`)
	packageTransfers = regexp.MustCompile(`traslado|transfer|aeropuerto`)
)

type scorer struct {
	scores  map[string]float64
	reasons []string
}

func newScorer() *scorer {
	return &scorer{scores: make(map[string]float64)}
}

func (s *scorer) add(category string, pts float64, why string) {
	s.scores[category] += pts
	s.reasons = append(s.reasons, fmt.Sprintf("[+%s] %s: %s", strconv.FormatFloat(pts, 'f', -1, 64), category, why))
}

// keywords scans normalized text against every category's keyword list.
func (s *scorer) keywords(text, channel string, weight float64) {
	if text == "" {
		return
	}
	for _, cat := range dictionary.Categories {
		for _, kw := range dictionary.Keywords(cat) {
			if channel == "detail" && dictionary.IsDetailBlacklisted(kw) {
				continue
			}
			if textnorm.ContainsWord(text, kw) {
				s.add(cat, weight, fmt.Sprintf("%s %q", channel, kw))
			}
		}
	}
}

// Classify scores every evidence channel of sig and returns the winning
// category. OCR text is only scored when present on sig.
func Classify(sig *models.ListingSignals) models.ClassificationResult {
	s := newScorer()

	title := textnorm.Normalize(sig.Title)
	detail := textnorm.Normalize(sig.DetailText)
	slug := textnorm.Normalize(urlSlug(sig.URL))

	if cat, ok := structureCategory(title); ok {
		s.add(cat, weightStructure, "title structure")
	}

	s.keywords(title, "title", weightTitle)
	s.keywords(detail, "detail", weightDetail)
	s.keywords(imageAltText(sig.Images), "image.alt", weightImageAlt)
	s.keywords(imageFilenames(sig.Images), "image.filename", weightImageFilename)
	s.keywords(slug, "url", weightURL)

	if len(sig.Badges) > 0 {
		s.keywords(textnorm.Normalize(strings.Join(sig.Badges, " ")), "badge", weightBadge)
	}

	for _, t := range sig.SchemaTypes {
		if cat, ok := dictionary.SchemaCategory(t); ok {
			s.add(cat, weightSchema, "schema.org @type="+t)
		}
	}

	brandText := strings.Join([]string{title, detail, slug}, " ")
	for _, b := range dictionary.Brands {
		if b.Pattern.MatchString(brandText) {
			s.add(b.Category, weightBrand, "brand "+b.Pattern.String())
		}
	}

	packageRule(title, detail, s)

	if ocr := textnorm.Normalize(sig.OCRText); ocr != "" {
		s.keywords(ocr, "ocr", weightOCR)
	}

	return s.result()
}

func (s *scorer) result() models.ClassificationResult {
	reasons := s.reasons
	if len(reasons) > MaxReasons {
		reasons = reasons[:MaxReasons]
	}
	res := models.ClassificationResult{
		Category:  dictionary.CategoryUnknown,
		Reasons:   append([]string(nil), reasons...),
		RawScores: s.scores,
	}

	ranked := rank(s.scores)
	if len(ranked) == 0 {
		return res
	}
	top := s.scores[ranked[0]]
	var second float64
	if len(ranked) > 1 {
		second = s.scores[ranked[1]]
	}
	res.Category = ranked[0]
	res.Confidence = Confidence(top, second)
	return res
}

// rank orders scored categories by score descending, ties broken by label
// precedence.
func rank(scores map[string]float64) []string {
	out := make([]string, 0, len(scores))
	for cat, score := range scores {
		if score > 0 && dictionary.IsKnownCategory(cat) {
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return dictionary.CategoryRank(out[i]) < dictionary.CategoryRank(out[j])
	})
	return out
}

// Confidence is the normalized margin between the two best scores, clamped
// to [0,1] and rounded to three decimals.
func Confidence(top, second float64) float64 {
	c := (top - second) / math.Max(1, top+second)
	c = math.Round(c*1000) / 1000
	return math.Max(0, math.Min(1, c))
}

func structureCategory(title string) (string, bool) {
	for _, r := range structureRules {
		if r.Pattern.MatchString(title) {
			return r.Category, true
		}
	}
	if discountPattern.MatchString(title) && discountLodging.MatchString(title) {
		return dictionary.CategoryLodging, true
	}
	return "", false
}

// packageRule splits weight across lodging, tours and transfers when the
// title announces a bundle.
func packageRule(title, detail string, s *scorer) {
	if !packagePattern.MatchString(title) {
		return
	}
	if packageNights.MatchString(detail) || packageLodging.MatchString(detail) {
		s.add(dictionary.CategoryLodging, weightPackageLodging, "package: lodging/nights")
	}
	if packageTours.MatchString(detail) {
		s.add(dictionary.CategoryActivities, weightPackageTours, "package: tours/tickets")
	}
	if packageTransfers.MatchString(detail) {
		s.add(dictionary.CategoryTransport, weightPackageTransfers, "package: transfers")
	}
}

func imageAltText(images []models.ImageDescriptor) string {
	parts := make([]string, 0, len(images))
	for _, img := range images {
		if img.Alt != "" {
			parts = append(parts, img.Alt)
		}
	}
	return textnorm.Normalize(strings.Join(parts, " "))
}

func imageFilenames(images []models.ImageDescriptor) string {
	parts := make([]string, 0, len(images))
	for _, img := range images {
		if name := imageFilename(img.Src); name != "" {
			parts = append(parts, name)
		}
	}
	return textnorm.Normalize(strings.Join(parts, " "))
}

func imageFilename(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	name := path.Base(src)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// urlSlug returns the path of a listing URL, or the raw string when it does
// not parse.
func urlSlug(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Path
}
