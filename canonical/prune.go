package canonical

import (
	"strings"

	"benefit-scraper/models"
)

// ComputePrune returns the prior records that this pipeline wrote (source
// equal to provenance) whose canonical URL is missing from current. Records
// with any other or no provenance are never returned, and an empty current
// set prunes nothing.
func ComputePrune(current map[string]struct{}, prior []*models.StoredRecord, provenance string, opts Options) []*models.StoredRecord {
	if len(current) == 0 {
		return nil
	}
	want := strings.ToLower(strings.TrimSpace(provenance))
	if want == "" {
		return nil
	}

	var out []*models.StoredRecord
	for _, rec := range prior {
		source := strings.ToLower(strings.TrimSpace(rec.Source))
		if source == "" || source != want {
			continue
		}
		candidate := strings.TrimSpace(rec.Canonical)
		if candidate == "" {
			candidate = strings.TrimSpace(rec.URL)
		}
		if !isHTTP(candidate) {
			continue
		}
		if _, ok := current[URL(candidate, opts)]; ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func isHTTP(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
