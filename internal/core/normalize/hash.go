// Package normalize provides the pure content-preparation functions shared
// by every collector: hashing for deduplication, language detection, text
// cleaning, region inference and company-name extraction. Nothing in this
// package performs I/O.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// hashHexLength is the stable prefix of the sha256 digest used as the
// dedup key. Every producer must hash the same way or dedup silently
// fails, so collectors call Hash(content + sourceURL) without exception.
const hashHexLength = 32

var whitespaceRe = regexp.MustCompile(`\s+`)

// Hash returns the deduplication key for a piece of content: the content
// is NFC-normalized, lower-cased and whitespace-collapsed before hashing,
// so cosmetic differences between fetches of the same article map to the
// same key.
func Hash(content string) string {
	normalized := norm.NFC.String(content)
	normalized = strings.ToLower(normalized)
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])[:hashHexLength]
}
