package scan

import (
	"strconv"
	"unicode/utf16"
)

// Hash is the 32-bit rolling hash used for content fingerprints:
// h = ((h << 5) - h) + c, truncated to a signed 32-bit integer at each step.
//
// c iterates over UTF-16 code units (not runes) so values are bit-for-bit
// identical to the historical JavaScript implementation (String.charCodeAt).
// Fingerprints are opaque to the coordinator; stability only matters for
// cross-implementation determinism.
func Hash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return h
}

// HashString returns Hash(s) in its stringified wire form.
func HashString(s string) string {
	return strconv.FormatInt(int64(Hash(s)), 10)
}

// Fingerprint derives the content fingerprint attached to a detection event:
// full page text + matched order string + page URL, hashed and stringified.
func Fingerprint(fullText, order, pageURL string) string {
	return HashString(fullText + order + pageURL)
}
