// Package textnorm produces the canonical comparison form of free text used by
// every matcher in the pipeline.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case, strips diacritics through canonical decomposition and
// collapses whitespace. It is total: any input, including "", yields a value.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded := stripMarks(strings.ToLower(s))
	return strings.Join(strings.Fields(folded), " ")
}

// stripMarks removes combining marks. A transformer chain keeps internal
// state, so a fresh one is built per call.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ContainsWord reports whether needle occurs in haystack flanked on both
// sides by a non-alphanumeric rune or a string boundary. Both arguments are
// expected to be normalized already.
func ContainsWord(haystack, needle string) bool {
	if needle == "" || len(needle) > len(haystack) {
		return false
	}
	offset := 0
	for {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[start:])
		offset = start + size
	}
}

// ContainsAnyWord returns the first needle found by ContainsWord.
func ContainsAnyWord(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		if ContainsWord(haystack, n) {
			return n, true
		}
	}
	return "", false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isAlnum(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isAlnum(r)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Slug turns a title into a lowercase ASCII slug of at most max bytes, with
// runs of anything else collapsed to a single hyphen.
func Slug(s string, max int) string {
	base := stripMarks(norm.NFKD.String(s))
	var b strings.Builder
	pendingDash := false
	for _, r := range base {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingDash = true
	}
	out := b.String()
	if max > 0 && len(out) > max {
		out = strings.TrimRight(out[:max], "-")
	}
	return out
}
