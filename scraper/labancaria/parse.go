// Package labancaria extracts benefit listings from labancaria.org: list
// pages yield cards, detail pages yield the evidence used for
// classification.
package labancaria

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"benefit-scraper/models"
)

// ListCard is one entry of a benefits list page.
type ListCard struct {
	Title   string
	Link    string
	Excerpt string
	Image   string
	Badges  []string
}

// Detail is what a detail page contributes to ListingSignals.
type Detail struct {
	Title                  string
	MainText               string
	OGImage                string
	Images                 []models.ImageDescriptor
	Captions               string
	Tags                   string
	MetaDescription        string
	SchemaTypes            []string
	StructuredLocationText string
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	pagedPath    = regexp.MustCompile(`/page/\d+/?$`)

	chromeSelectors = strings.Join([]string{
		"script", "noscript", "style",
		"header", "nav", ".menu", ".navbar", ".navigation", ".nav",
		"footer", ".footer", ".copyright",
		".sidebar", ".widget", ".breadcrumb", ".breadcrumbs",
		".share", ".social", ".related", ".comments",
	}, ",")

	contentSelectors = []string{
		".entry-content", ".post-content", "article .content", "main article",
		`[role="main"]`, ".beneficio-detalle", "article",
	}
)

// ParseList extracts benefit cards and the next-page link from a list page.
// Links are resolved against pageURL; the index page itself is skipped.
func ParseList(html, pageURL string) ([]ListCard, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parse list: %w", err)
	}
	base, _ := url.Parse(pageURL)

	seen := make(map[string]struct{})
	var cards []ListCard
	doc.Find(`a[href*="/beneficios/"]`).Each(func(_ int, link *goquery.Selection) {
		href := resolve(base, link.AttrOr("href", ""))
		if href == "" || strings.HasSuffix(href, "/beneficios/") || strings.HasSuffix(href, "/beneficios") {
			return
		}
		if isPagination(link) || pagedPath.MatchString(href) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		container := link.Closest("article")
		if container.Length() == 0 {
			container = link.Closest(".elementor-post")
		}
		if container.Length() == 0 {
			container = link.Closest(`div[class*="beneficio"]`)
		}
		if container.Length() == 0 {
			container = link.Parent()
		}

		title := clean(container.Find("h2, h3, h4, .elementor-post__title").First().Text())
		if title == "" {
			title = clean(link.Text())
		}

		var badges []string
		container.Find(".elementor-post__badge, .elementor-post__terms a, .post-categories a").Each(func(_ int, b *goquery.Selection) {
			if t := clean(b.Text()); t != "" {
				badges = append(badges, t)
			}
		})

		img := container.Find("img").First()
		cards = append(cards, ListCard{
			Title:   title,
			Link:    href,
			Excerpt: clean(container.Find(".elementor-post__excerpt, p").First().Text()),
			Image:   resolve(base, imageSrc(img)),
			Badges:  badges,
		})
	})

	next := resolve(base, doc.Find(`a.next, a[rel="next"], link[rel="next"], .nav-links a.next, .elementor-pagination a.next`).First().AttrOr("href", ""))
	return cards, next, nil
}

func isPagination(link *goquery.Selection) bool {
	if rel, _ := link.Attr("rel"); rel == "next" || rel == "prev" {
		return true
	}
	return link.HasClass("next") || link.HasClass("prev") || link.HasClass("page-numbers")
}

// ParseDetail extracts title, main text, images and structured location
// evidence from a detail page.
func ParseDetail(html, pageURL string) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail: %w", err)
	}
	base, _ := url.Parse(pageURL)

	d := &Detail{
		Title:           clean(doc.Find("h1").First().Text()),
		OGImage:         resolve(base, doc.Find(`meta[property="og:image"]`).AttrOr("content", "")),
		MetaDescription: clean(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
	}

	seenImg := make(map[string]struct{})
	doc.Find("article img, .entry-content img, main img").Each(func(_ int, img *goquery.Selection) {
		src := resolve(base, imageSrc(img))
		if src == "" {
			return
		}
		if _, dup := seenImg[src]; dup {
			return
		}
		seenImg[src] = struct{}{}
		d.Images = append(d.Images, models.ImageDescriptor{
			Src:    src,
			Alt:    clean(img.AttrOr("alt", "")),
			Width:  atoi(img.AttrOr("width", "")),
			Height: atoi(img.AttrOr("height", "")),
		})
	})

	d.Captions = joinTexts(doc.Find("figure figcaption, .wp-caption-text"))
	d.Tags = joinTexts(doc.Find(`a[rel="tag"], .post-categories a`))

	var pieces []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return
		}
		digJSONLD(v, &d.SchemaTypes, &pieces)
	})
	doc.Find(`[class*="breadcrumb"] a, nav[aria-label*="breadcrumb"] a`).Each(func(_ int, a *goquery.Selection) {
		if t := clean(a.Text()); t != "" {
			pieces = append(pieces, t)
		}
	})
	if q := mapQuery(doc.Find(`iframe[src*="google.com/maps"]`).First().AttrOr("src", "")); q != "" {
		pieces = append(pieces, q)
	}
	d.StructuredLocationText = clean(strings.Join(pieces, " "))

	// Everything below mutates the document.
	doc.Find(chromeSelectors).Remove()
	for _, sel := range contentSelectors {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			d.MainText = clean(el.Text())
			break
		}
	}
	if d.MainText == "" {
		d.MainText = clean(doc.Find("body").Text())
	}
	return d, nil
}

// ToSignals merges a list card with its detail page. A nil detail yields
// card-only signals.
func ToSignals(card ListCard, d *Detail) *models.ListingSignals {
	sig := &models.ListingSignals{
		Title:       card.Title,
		URL:         card.Link,
		Badges:      card.Badges,
		Description: card.Excerpt,
		ListImage:   card.Image,
		ScrapedAt:   time.Now(),
	}
	if d == nil {
		return sig
	}
	if d.Title != "" {
		sig.Title = d.Title
	}
	if sig.Description == "" {
		sig.Description = d.MetaDescription
	}
	sig.DetailText = clean(strings.Join([]string{d.MainText, d.Captions, d.Tags}, " "))
	sig.Images = d.Images
	sig.SchemaTypes = d.SchemaTypes
	sig.StructuredLocationText = d.StructuredLocationText
	sig.OGImage = d.OGImage
	return sig
}

// digJSONLD collects @type values and location-bearing strings from a
// decoded JSON-LD tree.
func digJSONLD(v any, types, pieces *[]string) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			digJSONLD(item, types, pieces)
		}
	case map[string]any:
		switch t := node["@type"].(type) {
		case string:
			*types = append(*types, t)
		case []any:
			for _, x := range t {
				if s, ok := x.(string); ok {
					*types = append(*types, s)
				}
			}
		}
		addr, _ := node["address"].(map[string]any)
		if addr == nil {
			if loc, ok := node["location"].(map[string]any); ok {
				addr, _ = loc["address"].(map[string]any)
			}
		}
		if addr != nil {
			for _, k := range []string{"addressRegion", "addressLocality"} {
				if s, ok := addr[k].(string); ok && s != "" {
					*pieces = append(*pieces, s)
				}
			}
		}
		for _, k := range []string{"name", "areaServed"} {
			if s, ok := node[k].(string); ok && s != "" {
				*pieces = append(*pieces, s)
			}
		}
		for _, k := range slices.Sorted(maps.Keys(node)) {
			if k == "@type" {
				continue
			}
			digJSONLD(node[k], types, pieces)
		}
	}
}

// mapQuery returns the place query of an embedded Google Maps URL.
func mapQuery(src string) string {
	if src == "" {
		return ""
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	q := u.Query().Get("q")
	if q == "" {
		q = u.Query().Get("query")
	}
	return clean(q)
}

func imageSrc(img *goquery.Selection) string {
	if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" && !strings.HasPrefix(src, "data:") {
		return src
	}
	return strings.TrimSpace(img.AttrOr("data-src", ""))
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func joinTexts(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := clean(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil {
		return 0
	}
	return n
}
