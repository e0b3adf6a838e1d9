package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"benefit-scraper/dictionary"
	"benefit-scraper/models"
	"benefit-scraper/ocr"
	"benefit-scraper/utils"
)

var (
	colorAccent = lipgloss.Color("#58a6ff")
	colorMuted  = lipgloss.Color("#8b949e")
	colorGood   = lipgloss.Color("#3fb950")
	colorWarn   = lipgloss.Color("#d29922")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			BorderStyle(lipgloss.DoubleBorder()).
			BorderBottom(true).
			BorderForeground(colorAccent)

	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWarn).MarginTop(1)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	barStyle     = lipgloss.NewStyle().Foreground(colorGood)
)

// LabelCount is one row of an ordered breakdown.
type LabelCount struct {
	Label string
	Count int
}

type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

func (s *InsightService) Generate(listings []*models.CanonicalListing) *models.InsightReport {
	report := &models.InsightReport{
		ByCategory: make(map[string]int),
		ByRegion:   make(map[string]int),
	}
	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	var total float64
	for _, l := range listings {
		report.ByCategory[l.Category]++
		report.ByRegion[l.Region]++
		total += l.Confidence
		if l.OCRUsed {
			report.OCRUsed++
		}
		if l.Category == dictionary.CategoryUnknown || l.Confidence < ocr.WeakConfidence {
			report.LowConfidence = append(report.LowConfidence, l)
		}
		if l.Region == dictionary.RegionUnknown {
			report.Unresolved = append(report.Unresolved, l)
		}
	}
	report.AverageConfidence = round3(total / float64(len(listings)))

	sort.SliceStable(report.LowConfidence, func(i, j int) bool {
		return report.LowConfidence[i].Confidence < report.LowConfidence[j].Confidence
	})
	return report
}

// CategoryCounts lists categories in label order, unknown last.
func CategoryCounts(r *models.InsightReport) []LabelCount {
	out := make([]LabelCount, 0, len(r.ByCategory))
	seen := make(map[string]struct{})
	for _, c := range append(append([]string{}, dictionary.Categories...), dictionary.CategoryUnknown) {
		if n := r.ByCategory[c]; n > 0 {
			out = append(out, LabelCount{c, n})
			seen[c] = struct{}{}
		}
	}
	// Labels outside the closed set only come from stored data.
	var extra []string
	for c := range r.ByCategory {
		if _, ok := seen[c]; !ok {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		out = append(out, LabelCount{c, r.ByCategory[c]})
	}
	return out
}

// RegionCounts lists the unknown region first, then the rest in Spanish
// alphabetical order.
func RegionCounts(r *models.InsightReport) []LabelCount {
	var out []LabelCount
	if n := r.ByRegion[dictionary.RegionUnknown]; n > 0 {
		out = append(out, LabelCount{dictionary.RegionUnknown, n})
	}
	names := make([]string, 0, len(r.ByRegion))
	for name := range r.ByRegion {
		if name != dictionary.RegionUnknown {
			names = append(names, name)
		}
	}
	collate.New(language.Spanish).SortStrings(names)
	for _, name := range names {
		out = append(out, LabelCount{name, r.ByRegion[name]})
	}
	return out
}

// Render formats the report for the terminal.
func (s *InsightService) Render(r *models.InsightReport) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📊 RESUMEN DE BENEFICIOS"))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Overview"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Total listings      : %d\n", r.TotalListings)
	fmt.Fprintf(&b, "  Average confidence  : %.3f\n", r.AverageConfidence)
	fmt.Fprintf(&b, "  OCR used            : %d\n", r.OCRUsed)
	fmt.Fprintf(&b, "  Low confidence      : %d\n", len(r.LowConfidence))
	fmt.Fprintf(&b, "  Unresolved region   : %d\n", len(r.Unresolved))

	writeBreakdown(&b, "Por categoría", CategoryCounts(r))
	writeBreakdown(&b, "Por provincia", RegionCounts(r))

	if len(r.LowConfidence) > 0 {
		b.WriteString(sectionStyle.Render("Lowest confidence"))
		b.WriteString("\n")
		for i, l := range r.LowConfidence {
			if i == 10 {
				b.WriteString(mutedStyle.Render(fmt.Sprintf("  ... and %d more", len(r.LowConfidence)-10)))
				b.WriteString("\n")
				break
			}
			fmt.Fprintf(&b, "  %.3f  %-42s %s\n", l.Confidence, truncate(l.Title, 40), mutedStyle.Render(l.Category))
		}
	}
	return b.String()
}

func writeBreakdown(b *strings.Builder, title string, rows []LabelCount) {
	b.WriteString(sectionStyle.Render(title))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(mutedStyle.Render("  No data"))
		b.WriteString("\n")
		return
	}
	for _, row := range rows {
		bar := barStyle.Render(strings.Repeat("█", min(row.Count, 40)))
		fmt.Fprintf(b, "  %-30s %4d %s\n", truncate(row.Label, 28), row.Count, bar)
	}
}

func (s *InsightService) Print(r *models.InsightReport) {
	fmt.Fprintln(s.out, s.Render(r))
}

// WriteXLSX saves the report as a workbook with summary, breakdown and
// review sheets.
func (s *InsightService) WriteXLSX(path string, r *models.InsightReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("insights: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), "Resumen"); err != nil {
		return fmt.Errorf("insights: xlsx: %w", err)
	}
	summary := [][]any{
		{"Total listings", r.TotalListings},
		{"Average confidence", r.AverageConfidence},
		{"OCR used", r.OCRUsed},
		{"Low confidence", len(r.LowConfidence)},
		{"Unresolved region", len(r.Unresolved)},
	}
	if err := writeRows(f, "Resumen", summary); err != nil {
		return err
	}

	for _, sheet := range []struct {
		name string
		rows []LabelCount
	}{
		{"Categorias", CategoryCounts(r)},
		{"Provincias", RegionCounts(r)},
	} {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return fmt.Errorf("insights: xlsx: %w", err)
		}
		rows := [][]any{{"Label", "Count"}}
		for _, lc := range sheet.rows {
			rows = append(rows, []any{lc.Label, lc.Count})
		}
		if err := writeRows(f, sheet.name, rows); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Revisar"); err != nil {
		return fmt.Errorf("insights: xlsx: %w", err)
	}
	review := [][]any{{"ID", "Title", "Category", "Region", "Confidence", "URL"}}
	for _, l := range r.LowConfidence {
		review = append(review, []any{l.ID, l.Title, l.Category, l.Region, l.Confidence, l.CanonicalURL})
	}
	if err := writeRows(f, "Revisar", review); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("insights: save %q: %w", path, err)
	}
	s.logger.Info("[insights] Report written to %s", path)
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("insights: xlsx: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("insights: xlsx %s: %w", sheet, err)
		}
	}
	return nil
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
