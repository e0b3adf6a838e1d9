package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"benefit-scraper/models"
)

// HTTPRecognizer calls an OCR service that accepts {"url","lang"} and
// answers {"text"}.
type HTTPRecognizer struct {
	endpoint string
	lang     string
	client   *http.Client
	limiter  *rate.Limiter
}

type recognizeRequest struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// NewHTTPRecognizer creates a recognizer throttled to rps requests per
// second. A non-positive rps disables throttling.
func NewHTTPRecognizer(endpoint, lang string, timeout time.Duration, rps float64) *HTTPRecognizer {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPRecognizer{
		endpoint: endpoint,
		lang:     lang,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Recognize posts the image URL and returns the recognized text.
func (r *HTTPRecognizer) Recognize(ctx context.Context, imageURL string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ocr: rate limiter wait: %w", err)
	}

	body, err := json.Marshal(recognizeRequest{URL: imageURL, Lang: r.lang})
	if err != nil {
		return "", fmt.Errorf("ocr: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ocr: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr: request %s: %w: %v", imageURL, models.ErrOCRUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("ocr: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr: status %d for %s: %w", resp.StatusCode, imageURL, models.ErrOCRUnavailable)
	}

	var out recognizeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("ocr: parse response: %w", err)
	}
	return out.Text, nil
}
