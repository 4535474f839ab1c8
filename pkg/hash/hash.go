package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// Short returns the first n characters of SHA256(input).
// Used for log correlation without writing raw identifiers.
func Short(input string, n int) string {
	full := SHA256Hex(input)
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}

// NormalizeQuery lower-cases a search query and collapses whitespace, so
// "  Minecraft   Survival" and "minecraft survival" share cache entries.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// AnalysisKey derives a stable cache key for an analysis request.
func AnalysisKey(query string, maxResults, publishedWithinDays int, specificity string) string {
	raw := fmt.Sprintf("%s|%d|%d|%s", NormalizeQuery(query), maxResults, publishedWithinDays, specificity)
	return Short(raw, 24)
}
