// Package gcs provides a storage.Provider backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	gstorage "cloud.google.com/go/storage"

	"taxicab/internal/storage"
)

// Provider reads and writes cache objects in GCS buckets. Authentication is
// handled via Application Default Credentials.
type Provider struct {
	client *gstorage.Client
}

// New wraps an existing GCS client.
func New(client *gstorage.Client) (*Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return &Provider{client: client}, nil
}

// Get downloads an object and its metadata. A missing object maps to
// storage.ErrNotFound.
func (p *Provider) Get(ctx context.Context, bucket, key string) (*storage.Object, error) {
	obj := p.client.Bucket(bucket).Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("object attrs %s/%s: %w", bucket, key, err)
	}
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("open object %s/%s: %w", bucket, key, err)
	}
	defer reader.Close() //nolint:errcheck // read errors surface below

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return &storage.Object{
		Data:     data,
		Metadata: attrs.Metadata,
		Updated:  attrs.Updated,
	}, nil
}

// Put uploads data with metadata and returns a gs:// path.
func (p *Provider) Put(ctx context.Context, bucket, key string, data []byte, metadata map[string]string) (string, error) {
	writer := p.client.Bucket(bucket).Object(key).NewWriter(ctx)
	writer.Metadata = metadata
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object %s/%s: %w (close: %v)", bucket, key, err, closeErr)
		}
		return "", fmt.Errorf("write object %s/%s: %w", bucket, key, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer %s/%s: %w", bucket, key, err)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, key), nil
}
