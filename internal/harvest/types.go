// Package harvest orchestrates fetching remote scholarly content and
// persisting it into the tiered cache.
package harvest

import (
	"context"
	"net/http"
	"time"

	"taxicab/internal/content"
	"taxicab/internal/policy"
)

// Result is the outcome of a single harvest. Content is populated whether
// or not the payload was persisted; CachePath is empty when it was not.
type Result struct {
	ID                string
	URL               string
	ResolvedURL       string
	Content           []byte
	ContentType       content.Type
	StatusCode        int
	CreatedAt         time.Time
	IsSoftBlock       bool
	CachePath         string
	NativeID          string
	NativeIDNamespace string
}

// URLRequest asks for the landing page at a URL.
type URLRequest struct {
	URL               string
	NativeID          string
	NativeIDNamespace string
}

// DOIRequest asks for the landing page behind a DOI.
type DOIRequest struct {
	DOI               string
	NativeID          string
	NativeIDNamespace string
}

// PDFRequest asks for the full-text PDF of a DOI at a given version.
type PDFRequest struct {
	URL               string
	DOI               string
	Version           string
	NativeID          string
	NativeIDNamespace string
}

// FetchRequest carries the target URL and the fetch strategy to use.
type FetchRequest struct {
	URL      string
	Strategy policy.Policy
}

// FetchResponse is the raw outcome of one fetch attempt.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Headers    http.Header
	Duration   time.Duration
}

// Fetcher retrieves a URL according to a fetch strategy.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints harvest identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
