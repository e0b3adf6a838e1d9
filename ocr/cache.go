package ocr

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes recognized text by image URL for the lifetime of one run.
// Concurrent requests for the same image share a single upstream call.
// Failures are not cached so a later listing may retry the image.
type Cache struct {
	next  Recognizer
	group singleflight.Group

	mu   sync.RWMutex
	text map[string]string
}

// NewCache wraps next with a per-run cache.
func NewCache(next Recognizer) *Cache {
	return &Cache{next: next, text: make(map[string]string)}
}

// Recognize returns cached text or asks the wrapped recognizer.
func (c *Cache) Recognize(ctx context.Context, imageURL string) (string, error) {
	if txt, ok := c.lookup(imageURL); ok {
		return txt, nil
	}
	v, err, _ := c.group.Do(imageURL, func() (any, error) {
		if txt, ok := c.lookup(imageURL); ok {
			return txt, nil
		}
		txt, err := c.next.Recognize(ctx, imageURL)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.text[imageURL] = txt
		c.mu.Unlock()
		return txt, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.text)
}

func (c *Cache) lookup(imageURL string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	txt, ok := c.text[imageURL]
	return txt, ok
}
