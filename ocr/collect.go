package ocr

import (
	"context"
	"strings"

	"benefit-scraper/models"
)

// Collect recognizes each image in order and joins the non-empty texts.
// A failed image is reported to onErr and skipped; OCR never fails a
// listing. Collection stops early when ctx is done.
func Collect(ctx context.Context, rec Recognizer, images []models.ImageDescriptor, onErr func(src string, err error)) string {
	var parts []string
	for _, img := range images {
		if ctx.Err() != nil {
			break
		}
		txt, err := rec.Recognize(ctx, img.Src)
		if err != nil {
			if onErr != nil {
				onErr(img.Src, err)
			}
			continue
		}
		if t := strings.TrimSpace(txt); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
