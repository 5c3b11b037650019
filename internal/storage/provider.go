// Package storage defines the interfaces for a blob storage provider.
// This abstraction keeps the cache independent of a specific backend
// (Google Cloud Storage in production, an in-memory map in tests).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the object does not exist.
// Backends translate their own not-found errors into this sentinel so the
// cache can treat a miss uniformly across tiers.
var ErrNotFound = errors.New("object not found")

// Object is a stored blob plus the metadata persisted alongside it.
type Object struct {
	Data     []byte
	Metadata map[string]string
	Updated  time.Time
}

// Provider defines the common interface for a blob storage provider.
type Provider interface {
	// Get fetches an object and its metadata, or ErrNotFound.
	Get(ctx context.Context, bucket, key string) (*Object, error)

	// Put uploads data with metadata and returns the fully qualified path.
	Put(ctx context.Context, bucket, key string, data []byte, metadata map[string]string) (string, error)
}

// NoOpProvider is a storage provider that stores nothing and never hits.
// It is useful for dry runs where content is fetched but not kept.
type NoOpProvider struct{}

// Get always misses.
func (NoOpProvider) Get(_ context.Context, _, _ string) (*Object, error) {
	return nil, ErrNotFound
}

// Put discards the data and returns a synthetic path.
func (NoOpProvider) Put(_ context.Context, bucket, key string, _ []byte, _ map[string]string) (string, error) {
	return "noop://" + bucket + "/" + key, nil
}
