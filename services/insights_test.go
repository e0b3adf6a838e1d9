package services

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
)

func sampleListings() []*models.CanonicalListing {
	return []*models.CanonicalListing{
		{ID: "1", Title: "Hotel A", Category: dictionary.CategoryLodging, Region: "Salta", Confidence: 0.9},
		{ID: "2", Title: "Parrilla B", Category: dictionary.CategoryFood, Region: "Córdoba", Confidence: 0.8, OCRUsed: true},
		{ID: "3", Title: "Cabañas C", Category: dictionary.CategoryLodging, Region: "Corrientes", Confidence: 0.2},
		{ID: "4", Title: "Beneficio D", Category: dictionary.CategoryUnknown, Region: dictionary.RegionUnknown, Confidence: 0},
		{ID: "5", Title: "Pasajes E", Category: dictionary.CategoryTransport, Region: dictionary.RegionNational, Confidence: 0.5},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 5 {
		t.Errorf("TotalListings: got %d, want 5", r.TotalListings)
	}
	if r.ByCategory[dictionary.CategoryLodging] != 2 {
		t.Errorf("Lodging count: got %d, want 2", r.ByCategory[dictionary.CategoryLodging])
	}
	if r.OCRUsed != 1 {
		t.Errorf("OCRUsed: got %d, want 1", r.OCRUsed)
	}
	if r.AverageConfidence != 0.48 {
		t.Errorf("AverageConfidence: got %.3f, want 0.48", r.AverageConfidence)
	}
}

func TestInsightLowConfidence(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if len(r.LowConfidence) != 2 {
		t.Fatalf("LowConfidence len: got %d, want 2", len(r.LowConfidence))
	}
	if r.LowConfidence[0].ID != "4" {
		t.Errorf("LowConfidence[0]: got %s, want lowest first", r.LowConfidence[0].ID)
	}
	if len(r.Unresolved) != 1 || r.Unresolved[0].ID != "4" {
		t.Errorf("Unresolved: got %+v", r.Unresolved)
	}
}

func TestCategoryCountsLabelOrder(t *testing.T) {
	r := NewInsightService(newTestLogger()).Generate(sampleListings())
	got := CategoryCounts(r)
	want := []string{dictionary.CategoryLodging, dictionary.CategoryTransport, dictionary.CategoryFood, dictionary.CategoryUnknown}
	if len(got) != len(want) {
		t.Fatalf("CategoryCounts: got %v", got)
	}
	for i, w := range want {
		if got[i].Label != w {
			t.Errorf("CategoryCounts[%d] = %q; want %q", i, got[i].Label, w)
		}
	}
}

func TestRegionCountsUnknownFirstThenAlphabetical(t *testing.T) {
	r := NewInsightService(newTestLogger()).Generate(sampleListings())
	got := RegionCounts(r)
	want := []string{dictionary.RegionUnknown, "Córdoba", "Corrientes", dictionary.RegionNational, "Salta"}
	if len(got) != len(want) {
		t.Fatalf("RegionCounts: got %v", got)
	}
	for i, w := range want {
		if got[i].Label != w {
			t.Errorf("RegionCounts[%d] = %q; want %q", i, got[i].Label, w)
		}
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	var buf bytes.Buffer
	svc.out = &buf
	svc.Print(svc.Generate(sampleListings()))

	out := buf.String()
	for _, s := range []string{"Total listings", "Por categoría", "Gastronomía", "Provincia desconocida", "Beneficio D"} {
		if !strings.Contains(out, s) {
			t.Errorf("printed report missing %q", s)
		}
	}
}

func TestInsightWriteXLSX(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	path := filepath.Join(t.TempDir(), "reports", "summary.xlsx")
	if err := svc.WriteXLSX(path, svc.Generate(sampleListings())); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Provincias")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 6 || rows[1][0] != dictionary.RegionUnknown {
		t.Errorf("Provincias rows: got %v", rows)
	}
	review, err := f.GetRows("Revisar")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(review) != 3 {
		t.Errorf("Revisar rows: got %d, want 3", len(review))
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
	if !strings.Contains(svc.Render(r), "No data") {
		t.Errorf("empty report should say there is no data")
	}
}
