package models

import "time"

// ImageDescriptor describes one image found on a detail page.
type ImageDescriptor struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ListingSignals holds the raw evidence scraped for one benefit listing.
// It is written to CSV before any classification happens.
type ListingSignals struct {
	Title                  string            `json:"title"`
	DetailText             string            `json:"detailText"`
	URL                    string            `json:"url"`
	Images                 []ImageDescriptor `json:"images"`
	Badges                 []string          `json:"badges"`
	SchemaTypes            []string          `json:"schemaTypes"`
	StructuredLocationText string            `json:"structuredLocationText"`
	OCRText                string            `json:"ocrText,omitempty"`

	Description string    `json:"description"`
	OGImage     string    `json:"ogImage"`
	ListImage   string    `json:"listImage"`
	ScrapedAt   time.Time `json:"scrapedAt"`
}

// ClassificationResult is the outcome of category scoring.
type ClassificationResult struct {
	Category   string             `json:"category"`
	Confidence float64            `json:"confidence"`
	Reasons    []string           `json:"reasons"`
	RawScores  map[string]float64 `json:"rawScores"`
}

// RegionResult is a resolved region plus the strategy that produced it.
type RegionResult struct {
	Region   string `json:"region"`
	Strategy string `json:"strategy"`
}

// ClassifiedListing is one listing after classification, before
// reconciliation.
type ClassifiedListing struct {
	Signals        *ListingSignals
	Classification ClassificationResult
	Region         RegionResult
	OCRUsed        bool
	Warnings       []string
}

// CanonicalListing is the reconciled record ready for persistence.
type CanonicalListing struct {
	ID           string   `json:"id" db:"id"`
	Title        string   `json:"title" db:"title"`
	CanonicalURL string   `json:"url" db:"canonical"`
	SourceURL    string   `json:"sourceUrl,omitempty" db:"url"`
	ImageURL     string   `json:"imageUrl,omitempty" db:"image_url"`
	Category     string   `json:"category" db:"category"`
	Region       string   `json:"region" db:"region"`
	Description  string   `json:"description,omitempty" db:"description"`
	Confidence   float64  `json:"confidence" db:"confidence"`
	Reasons      []string `json:"reasons" db:"-"`
	Source       string   `json:"source" db:"source"`
	OCRUsed      bool     `json:"ocrUsed" db:"-"`
}

// StoredRecord is the slice of a persisted row needed to compute prunes.
type StoredRecord struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	URL       string `db:"url"`
	Canonical string `db:"canonical"`
	Source    string `db:"source"`
}

// InsightReport holds the computed summary over the reconciled dataset.
type InsightReport struct {
	TotalListings     int
	ByCategory        map[string]int
	ByRegion          map[string]int
	AverageConfidence float64
	OCRUsed           int
	LowConfidence     []*CanonicalListing
	Unresolved        []*CanonicalListing
}
