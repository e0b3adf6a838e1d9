package classifier

import (
	"fmt"
	"math"
	"regexp"
	"slices"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
	"benefit-scraper/textnorm"
)

// CorrectionFloor is the minimum confidence after a correction rule fires.
const CorrectionFloor = 0.6

// CorrectionRule forces Category when the title matches Pattern and the
// current category is one of Overrides.
type CorrectionRule struct {
	Pattern   *regexp.Regexp
	Overrides []string
	Category  string
}

// CorrectionRules run in order against the normalized title.
var CorrectionRules = []CorrectionRule{
	{
		Pattern:   regexp.MustCompile(`jubil|retir|pension|reafiliat`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryTransport},
		Category:  dictionary.CategoryServices,
	},
	{
		Pattern:   regexp.MustCompile(`sepelio|funeral|entierro|deceso`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryLodging},
		Category:  dictionary.CategoryServices,
	},
	{
		Pattern:   regexp.MustCompile(`obra\s*social|beneficio\s*social`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryTransport},
		Category:  dictionary.CategoryHealth,
	},
	{
		Pattern:   regexp.MustCompile(`viaje\s*de\s*bodas|luna\s*de\s*miel|honeymoon|casamiento`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryActivities},
		Category:  dictionary.CategoryServices,
	},
	{
		Pattern:   regexp.MustCompile(`seguro|asegurad|cobertura\s*de`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryLodging},
		Category:  dictionary.CategoryServices,
	},
	{
		Pattern:   regexp.MustCompile(`hosteria`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryTransport, dictionary.CategoryServices},
		Category:  dictionary.CategoryLodging,
	},
	{
		Pattern:   regexp.MustCompile(`hotel\b`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryTransport, dictionary.CategoryServices},
		Category:  dictionary.CategoryLodging,
	},
	{
		Pattern:   regexp.MustCompile(`cabanas?`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryTransport, dictionary.CategoryServices},
		Category:  dictionary.CategoryLodging,
	},
	{
		Pattern:   regexp.MustCompile(`termas?\b`),
		Overrides: []string{dictionary.CategoryFood, dictionary.CategoryLodging},
		Category:  dictionary.CategoryActivities,
	},
	{
		Pattern:   regexp.MustCompile(`optica|lentes|anteojos`),
		Overrides: []string{dictionary.CategoryRetail},
		Category:  dictionary.CategoryHealth,
	},
	{
		Pattern:   regexp.MustCompile(`parrilla|restaurante|restaurant|resto\s*bar`),
		Overrides: []string{dictionary.CategoryLodging},
		Category:  dictionary.CategoryFood,
	},
}

// Validate applies the correction rules to c in place and runs the region
// consistency check. The check never changes the region; it returns a
// warning for operator review instead.
func Validate(title string, c *models.ClassificationResult, region models.RegionResult) []string {
	t := textnorm.Normalize(title)
	for _, rule := range CorrectionRules {
		if !rule.Pattern.MatchString(t) || !slices.Contains(rule.Overrides, c.Category) {
			continue
		}
		prev := c.Category
		c.Category = rule.Category
		c.Confidence = math.Max(CorrectionFloor, c.Confidence)
		c.Reasons = append(c.Reasons, fmt.Sprintf("[corrected] %s -> %s by validation", prev, rule.Category))
	}

	var warnings []string
	if fromTitle, ok := TitleRegion(title); ok &&
		fromTitle != region.Region && region.Region != dictionary.RegionUnknown {
		warnings = append(warnings, fmt.Sprintf("inconsistent region: title suggests %s but resolved %s", fromTitle, region.Region))
	}
	return warnings
}
