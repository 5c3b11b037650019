// Package content classifies fetched payloads and screens them for
// truncated PDFs and bot-challenge pages.
package content

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Type is the coarse content category assigned to a harvested payload.
type Type string

// Content categories. Only TypeHTML and TypePDF are accepted for storage.
const (
	TypeHTML    Type = "html"
	TypePDF     Type = "pdf"
	TypeDOCX    Type = "docx"
	TypeDOC     Type = "doc"
	TypeOther   Type = "other"
	TypeUnknown Type = "unknown"
)

// pdfSignature is the 5-byte magic every real PDF starts with.
var pdfSignature = []byte("%PDF-")

// minValidPDFBytes rejects placeholder or truncated PDF responses.
const minValidPDFBytes = 100

// Classify sniffs the payload and maps the detected MIME type onto a Type.
// HTML and javascript payloads both count as html because publishers routinely
// serve landing pages as script-built documents.
func Classify(data []byte) Type {
	if len(data) == 0 {
		return TypeUnknown
	}
	mime := mimetype.Detect(data).String()
	switch {
	case strings.Contains(mime, "html") || strings.Contains(mime, "javascript"):
		return TypeHTML
	case strings.Contains(mime, "pdf"):
		return TypePDF
	case strings.Contains(mime, "vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return TypeDOCX
	case strings.Contains(mime, "msword"):
		return TypeDOC
	default:
		return TypeOther
	}
}

// IsValidPDF reports whether data is a plausible PDF: declared as such,
// carrying the PDF signature, and long enough to hold actual content.
func IsValidPDF(data []byte, declared Type) bool {
	return declared == TypePDF &&
		bytes.HasPrefix(data, pdfSignature) &&
		len(data) >= minValidPDFBytes
}

// softBlockFingerprints are substrings that mark an HTTP 200 response as a
// bot-challenge, rate-limit, or access-denial page rather than real content.
// The list is an allow-list heuristic; false negatives are expected.
var softBlockFingerprints = []string{
	"ShieldSquare Captcha",
	"429 - Too many requests",
	"Just a moment...",
	"Attention Required! | Cloudflare",
	"Please complete the security check to access",
	"Your request cannot be processed at this time",
	"/cookieAbsent",
	"Access to this page has been denied",
	"been blocked from accessing this website",
}

// IsSoftBlocked reports whether a non-PDF payload is a known block page.
// PDFs are never soft blocks; binary challenge pages do not exist.
func IsSoftBlocked(data []byte, contentType Type) bool {
	if contentType == TypePDF {
		return false
	}
	text := string(data)
	for _, fp := range softBlockFingerprints {
		if strings.Contains(text, fp) {
			return true
		}
	}
	return false
}
