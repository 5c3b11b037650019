// Package cache implements the tiered harvest cache over blob storage:
// key derivation, gzip handling, legacy-tier fallback, and metadata.
package cache

import (
	"strings"

	"taxicab/internal/doi"
)

const upperhex = "0123456789ABCDEF"

// shouldEscape mirrors percent-encoding with an unreserved set of
// alphanumerics plus "_.-~". The slash is optionally kept literal.
func shouldEscape(c byte, keepSlash bool) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '_', '.', '-', '~':
		return false
	case '/':
		return !keepSlash
	}
	return true
}

// quote percent-encodes s, optionally leaving "/" untouched.
func quote(s string, keepSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c, keepSlash) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// URLKey derives the cache key for a URL-keyed entry: the case-normalized,
// percent-encoded URL with path separators replaced by underscores. The
// function is pure; identical input always yields the identical key.
func URLKey(rawURL string) string {
	return strings.ReplaceAll(quote(strings.ToLower(rawURL), true), "/", "_")
}

// DOIKey derives the legacy landing-page key for a DOI: the lowercased DOI
// percent-encoded with nothing held safe.
func DOIKey(d string) string {
	return quote(strings.ToLower(d), false)
}

// PDFKey derives the legacy publisher-PDF key for a DOI and version:
// {versionPrefix}{percent-encoded-doi}.pdf, with an empty prefix for the
// published version.
func PDFKey(d string, v doi.Version) string {
	return v.KeyPrefix() + quote(d, false) + ".pdf"
}
