// Package canonical derives listing identity: canonical URLs, stable IDs,
// completeness scores, and the prune set against a prior snapshot.
package canonical

import (
	"net/url"
	"regexp"
	"strings"
)

// Options tunes URL canonicalization.
type Options struct {
	// StripTrackingOnly keeps the query string but removes tracking
	// parameters. When false the whole query is dropped.
	StripTrackingOnly bool
}

var (
	dupSuffix      = regexp.MustCompile(`(-\d+)+$`)
	trackingExact  = map[string]struct{}{"fbclid": {}, "gclid": {}, "mc_cid": {}, "mc_eid": {}}
	trackingPrefix = "utm_"
)

// URL returns the canonical form of raw. Applying it twice yields the same
// value as applying it once.
func URL(raw string, opts Options) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fallback(s)
	}

	host := strings.ToLower(u.Host)
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false
	if opts.StripTrackingOnly {
		u.RawQuery = stripTracking(u.Query()).Encode()
	} else {
		u.RawQuery = ""
	}

	// Work on the escaped path so an encoded "/" stays inside its segment.
	escaped := cleanPath(u.EscapedPath())
	if p, err := url.PathUnescape(escaped); err == nil {
		u.Path, u.RawPath = p, escaped
	}
	return u.String()
}

// cleanPath trims trailing separators and a trailing run of "-N" suffixes
// from the last segment. A segment made only of suffixes is kept.
func cleanPath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	i := strings.LastIndex(p, "/")
	dir, last := p[:i+1], p[i+1:]
	if stripped := dupSuffix.ReplaceAllString(last, ""); stripped != "" {
		last = stripped
	}
	return dir + last
}

func stripTracking(q url.Values) url.Values {
	for k := range q {
		lk := strings.ToLower(k)
		if _, ok := trackingExact[lk]; ok || strings.HasPrefix(lk, trackingPrefix) {
			q.Del(k)
		}
	}
	return q
}

// fallback canonicalizes strings that are not absolute http(s) URLs.
func fallback(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimRight(s, "/")
	return cleanPath(s)
}
