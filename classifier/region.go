package classifier

import (
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
	"benefit-scraper/textnorm"
)

// Region resolution strategies, recorded on every RegionResult.
const (
	StrategyTitlePattern = "title-pattern"
	StrategyTitleCity    = "title-city"
	StrategyTitleScan    = "title-scan"
	StrategyStructured   = "structured"
	StrategyURL          = "url"
	StrategyOCR          = "ocr"
	StrategyFallback     = "fallback"
)

// MaxFuzzyDistance is the largest edit distance accepted by FuzzyRegion.
const MaxFuzzyDistance = 1

// TitleParts is what the structural title patterns extract.
type TitleParts struct {
	Business string
	City     string
	Region   string
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)\.\s*([^,–—-]+?)\s*[–—-]\s*(.+)$`),
	regexp.MustCompile(`^(.+?)\.\s*([^,]+?)\s*,\s*(.+)$`),
	regexp.MustCompile(`^(.+?)\s*[–—-]\s*([^,–—-]+?)\s*[–—-]\s*(.+)$`),
	regexp.MustCompile(`^(.+?)\.\s*(.+)$`),
	regexp.MustCompile(`^(.+?)\s*\|\s*([^,|]+?)\s*,\s*(.+)$`),
	regexp.MustCompile(`^(.+?)\s*\(\s*([^,()]+?)\s*,\s*([^)]+?)\s*\)$`),
}

// ParseTitle splits a title such as "Name. City – Region" into its parts.
// Patterns are tried in order; the first match wins.
func ParseTitle(title string) (TitleParts, bool) {
	t := strings.TrimSpace(title)
	for _, p := range titlePatterns {
		m := p.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		switch len(m) {
		case 4:
			return TitleParts{
				Business: strings.TrimSpace(m[1]),
				City:     strings.TrimSpace(m[2]),
				Region:   strings.TrimSpace(m[3]),
			}, true
		case 3:
			return TitleParts{
				Business: strings.TrimSpace(m[1]),
				Region:   strings.TrimSpace(m[2]),
			}, true
		}
	}
	return TitleParts{}, false
}

// ResolveName maps a free-form region string through the alias table, then
// exact names, then fuzzy matching.
func ResolveName(s string) (string, bool) {
	n := textnorm.Normalize(s)
	if n == "" {
		return "", false
	}
	if r, ok := dictionary.AliasRegion(n); ok {
		return r, true
	}
	if r, ok := dictionary.ExactRegion(n); ok {
		return r, true
	}
	return FuzzyRegion(n)
}

// FuzzyRegion finds the region whose name or alias is within
// MaxFuzzyDistance edits (transpositions count as one) of s.
func FuzzyRegion(s string) (string, bool) {
	n := textnorm.Normalize(s)
	if n == "" {
		return "", false
	}
	for _, r := range dictionary.RegionNames {
		if edlib.OSADamerauLevenshteinDistance(n, r.Key) <= MaxFuzzyDistance {
			return r.Region, true
		}
	}
	for _, a := range dictionary.Aliases {
		if edlib.OSADamerauLevenshteinDistance(n, a.Key) <= MaxFuzzyDistance {
			return a.Region, true
		}
	}
	return "", false
}

// ResolveRegion runs the fallback chain over every signal of a listing and
// always returns a region, the nationwide sentinel, or the unknown sentinel.
func ResolveRegion(sig *models.ListingSignals) models.RegionResult {
	if res, ok := regionFromTitle(sig.Title); ok {
		return res
	}

	combined := textnorm.Normalize(sig.StructuredLocationText + " " + sig.DetailText)
	if combined != "" {
		if _, ok := textnorm.ContainsAnyWord(combined, dictionary.NationwideMarkers); ok {
			return models.RegionResult{Region: dictionary.RegionNational, Strategy: StrategyStructured}
		}
		if r, ok := scanText(combined, false); ok {
			return models.RegionResult{Region: r, Strategy: StrategyStructured}
		}
	}

	if slug := slugText(sig.URL); slug != "" {
		if r, ok := scanText(slug, false); ok {
			return models.RegionResult{Region: r, Strategy: StrategyURL}
		}
	}

	if res, ok := RegionFromOCR(sig.OCRText); ok {
		return res
	}

	return models.RegionResult{Region: dictionary.RegionUnknown, Strategy: StrategyFallback}
}

// RegionFromOCR scans recognized text for province names, then cities.
func RegionFromOCR(text string) (models.RegionResult, bool) {
	n := textnorm.Normalize(text)
	if n == "" {
		return models.RegionResult{}, false
	}
	if r, ok := scanText(n, false); ok {
		return models.RegionResult{Region: r, Strategy: StrategyOCR}, true
	}
	return models.RegionResult{}, false
}

// TitleRegion derives a region from the title alone. It backs both the
// first resolver steps and the consistency check.
func TitleRegion(title string) (string, bool) {
	res, ok := regionFromTitle(title)
	return res.Region, ok
}

func regionFromTitle(title string) (models.RegionResult, bool) {
	if parts, ok := ParseTitle(title); ok {
		if r, ok := ResolveName(parts.Region); ok {
			return models.RegionResult{Region: r, Strategy: StrategyTitlePattern}, true
		}
		if parts.City != "" {
			if c, ok := dictionary.LookupCity(textnorm.Normalize(parts.City)); ok {
				if r, ok := pickCityRegion(c, textnorm.Normalize(title)); ok {
					return models.RegionResult{Region: r, Strategy: StrategyTitleCity}, true
				}
			}
		}
	}

	t := textnorm.Normalize(title)
	if t == "" {
		return models.RegionResult{}, false
	}
	for _, a := range dictionary.Aliases {
		if textnorm.ContainsWord(t, a.Key) {
			return models.RegionResult{Region: a.Region, Strategy: StrategyTitleScan}, true
		}
	}
	if r, ok := scanText(t, true); ok {
		return models.RegionResult{Region: r, Strategy: StrategyTitleScan}, true
	}
	return models.RegionResult{}, false
}

// scanText looks for exact region names, then cities, in normalized text.
// The nationwide sentinel is only accepted as a name when withNational is set.
func scanText(text string, withNational bool) (string, bool) {
	for _, r := range dictionary.RegionNames {
		if r.Region == dictionary.RegionNational && !withNational {
			continue
		}
		if textnorm.ContainsWord(text, r.Key) {
			return r.Region, true
		}
	}
	for _, c := range dictionary.Cities {
		if !textnorm.ContainsWord(text, c.Key) {
			continue
		}
		if r, ok := pickCityRegion(c, text); ok {
			return r, true
		}
	}
	return "", false
}

// pickCityRegion returns the city's region. An ambiguous city only resolves
// when one of its candidate regions is also spelled out in text.
func pickCityRegion(c dictionary.City, text string) (string, bool) {
	if !c.Ambiguous() {
		return c.Regions[0], true
	}
	for _, r := range c.Regions {
		for _, key := range dictionary.RegionKeys(r) {
			if textnorm.ContainsWord(text, key) {
				return r, true
			}
		}
	}
	return "", false
}

// slugText turns a URL into normalized words so path separators act as
// word boundaries.
func slugText(raw string) string {
	s := urlSlug(raw)
	s = strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(s)
	return textnorm.Normalize(s)
}
