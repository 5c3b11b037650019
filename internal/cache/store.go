package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"taxicab/internal/content"
	"taxicab/internal/doi"
	"taxicab/internal/storage"
)

// gzipHeader is the 3-byte magic sniffed on read. Stored gzip payloads are
// always HTML and are decompressed transparently.
var gzipHeader = []byte{0x1f, 0x8b, 0x08}

// StorageError wraps a backend failure during a cache write. The in-memory
// harvest result stays valid; only the cache path is lost.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "cache store: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// Buckets names the storage tiers. The first two are the primary tiers keyed
// by content type; the legacy tiers are consulted on a primary miss.
type Buckets struct {
	HTML            string
	PDF             string
	LegacyPDF       string
	LegacyPublisher string
	LegacyRepo      string
}

// Entry is one cache hit, decompressed and with its metadata decoded.
type Entry struct {
	Path        string
	Content     []byte
	ResolvedURL string
	ContentType content.Type
	CreatedAt   time.Time
	NativeID    string
}

// PutInput carries everything persisted with a stored harvest.
type PutInput struct {
	URL               string
	ResolvedURL       string
	Content           []byte
	ContentType       content.Type
	ID                string
	NativeID          string
	NativeIDNamespace string
	CreatedAt         time.Time
}

// Store is the tiered cache over blob storage.
type Store struct {
	blobs     storage.Provider
	buckets   Buckets
	crosswalk *Crosswalk
	logger    *zap.Logger
}

// NewStore builds a Store. The crosswalk may be nil when no legacy tiers are
// configured.
func NewStore(blobs storage.Provider, buckets Buckets, crosswalk *Crosswalk, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blobs:     blobs,
		buckets:   buckets,
		crosswalk: crosswalk,
		logger:    logger,
	}
}

// LookupURL checks the primary tiers for a URL-keyed entry, then the legacy
// repository tier through the crosswalk. Returns (nil, nil) on a clean miss.
func (s *Store) LookupURL(ctx context.Context, rawURL string) (*Entry, error) {
	key := URLKey(rawURL)
	entry, err := s.get(ctx, s.buckets.HTML, key)
	if err != nil || entry != nil {
		return entry, err
	}
	// Put writes PDFs under a .pdf-suffixed key; probe with the same rule.
	pdfKey := key
	if !strings.HasSuffix(pdfKey, ".pdf") {
		pdfKey += ".pdf"
	}
	entry, err = s.get(ctx, s.buckets.PDF, pdfKey)
	if err != nil || entry != nil {
		return entry, err
	}
	if s.crosswalk != nil && s.buckets.LegacyRepo != "" {
		if legacyKey, ok := s.crosswalk.LandingPageKey(rawURL); ok {
			return s.get(ctx, s.buckets.LegacyRepo, legacyKey)
		}
	}
	return nil, nil
}

// LookupDOI checks the primary tiers under the doi.org URL key, then the
// legacy publisher landing-page tier under the encoded DOI.
func (s *Store) LookupDOI(ctx context.Context, d string) (*Entry, error) {
	entry, err := s.LookupURL(ctx, "https://doi.org/"+d)
	if err != nil || entry != nil {
		return entry, err
	}
	if s.buckets.LegacyPublisher == "" {
		return nil, nil
	}
	return s.get(ctx, s.buckets.LegacyPublisher, DOIKey(d))
}

// LookupPDF checks for a publisher PDF by DOI and version: first the primary
// tiers via the crosswalked direct URL, then the legacy PDF tier under the
// version-prefixed key.
func (s *Store) LookupPDF(ctx context.Context, d string, v doi.Version) (*Entry, error) {
	if s.crosswalk != nil {
		if pdfURL, ok := s.crosswalk.PDFURL(d, v); ok {
			entry, err := s.LookupURL(ctx, pdfURL)
			if err != nil || entry != nil {
				return entry, err
			}
		}
	}
	if s.buckets.LegacyPDF == "" {
		return nil, nil
	}
	return s.get(ctx, s.buckets.LegacyPDF, PDFKey(d, v))
}

func (s *Store) get(ctx context.Context, bucket, key string) (*Entry, error) {
	if bucket == "" || key == "" {
		return nil, nil
	}
	obj, err := s.blobs.Get(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache lookup %s/%s: %w", bucket, key, err)
	}

	data := obj.Data
	if bytes.HasPrefix(data, gzipHeader) {
		data, err = gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("decompress cached %s/%s: %w", bucket, key, err)
		}
	}

	entry := &Entry{
		Path:        fmt.Sprintf("gs://%s/%s", bucket, key),
		Content:     data,
		ResolvedURL: unquoteMeta(obj.Metadata["resolved_url"]),
		ContentType: content.Type(obj.Metadata["content_type"]),
		CreatedAt:   obj.Updated,
		NativeID:    obj.Metadata["native_id"],
	}
	if raw := obj.Metadata["created_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			entry.CreatedAt = ts
		}
	}
	return entry, nil
}

// Put writes one harvested result to the primary tier selected by content
// type. HTML is gzip-compressed; PDFs keep a .pdf key suffix. Writes are
// at-most-once per successful harvest; the orchestrator enforces eligibility.
func (s *Store) Put(ctx context.Context, in PutInput) (string, error) {
	bucket := s.buckets.HTML
	key := URLKey(in.URL)
	data := in.Content

	switch in.ContentType {
	case content.TypePDF:
		bucket = s.buckets.PDF
		if !strings.HasSuffix(key, ".pdf") {
			key += ".pdf"
		}
	case content.TypeHTML:
		var err error
		data, err = gzipBytes(data)
		if err != nil {
			return "", &StorageError{Err: fmt.Errorf("compress content: %w", err)}
		}
	}

	metadata := map[string]string{
		"url":                 quote(in.URL, true),
		"resolved_url":        quote(in.ResolvedURL, true),
		"created_at":          in.CreatedAt.UTC().Format(time.RFC3339),
		"content_type":        string(in.ContentType),
		"id":                  in.ID,
		"native_id":           in.NativeID,
		"native_id_namespace": in.NativeIDNamespace,
	}

	path, err := s.blobs.Put(ctx, bucket, key, data, metadata)
	if err != nil {
		return "", &StorageError{Err: err}
	}
	s.logger.Debug("cached harvest",
		zap.String("path", path),
		zap.String("content_type", string(in.ContentType)),
		zap.Int("bytes", len(in.Content)),
	)
	return path, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck // read errors surface below
	return io.ReadAll(r)
}

// unquoteMeta reverses the percent-encoding applied to metadata values.
// Malformed escapes fall back to the raw value.
func unquoteMeta(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
