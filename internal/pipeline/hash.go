package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeContent lowercases content and collapses runs of whitespace so
// that re-fetches of the same article with incidental whitespace or casing
// differences collapse to one hash.
func NormalizeContent(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

// HashContent computes the 64-hex-char SHA-256 digest of the normalized
// content. Pure function: no salt, no time component. Hash equality is
// treated as content equality.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// NewsContent builds the canonical hashing input for news-style content
// from its headline and description.
func NewsContent(headline, description string) string {
	if description == "" {
		return headline
	}
	return headline + "\n" + description
}
