package models

import "errors"

var (
	// ErrMalformedListing marks a listing missing its title or URL.
	ErrMalformedListing = errors.New("malformed listing")
	// ErrStoreUnavailable marks an unreachable or misconfigured store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidCollection marks a collection name that is not a safe identifier.
	ErrInvalidCollection = errors.New("invalid collection name")
	// ErrOCRUnavailable marks a failed or timed out OCR request.
	ErrOCRUnavailable = errors.New("ocr unavailable")
)
