// Package memory stores cache objects in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taxicab/internal/storage"
)

// Provider keeps objects in a per-bucket map and returns pseudo gs:// paths.
type Provider struct {
	mu      sync.RWMutex
	buckets map[string]map[string]storage.Object
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{buckets: make(map[string]map[string]storage.Object)}
}

// Get returns a copy of the stored object or storage.ErrNotFound.
func (p *Provider) Get(_ context.Context, bucket, key string) (*storage.Object, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	obj, ok := p.buckets[bucket][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := storage.Object{
		Data:     append([]byte(nil), obj.Data...),
		Metadata: make(map[string]string, len(obj.Metadata)),
		Updated:  obj.Updated,
	}
	for k, v := range obj.Metadata {
		out.Metadata[k] = v
	}
	return &out, nil
}

// Put stores a copy of the data and returns a gs://-style path.
func (p *Provider) Put(_ context.Context, bucket, key string, data []byte, metadata map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buckets[bucket] == nil {
		p.buckets[bucket] = make(map[string]storage.Object)
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	p.buckets[bucket][key] = storage.Object{
		Data:     append([]byte(nil), data...),
		Metadata: meta,
		Updated:  time.Now().UTC(),
	}
	return fmt.Sprintf("gs://%s/%s", bucket, key), nil
}

// Len reports how many objects a bucket holds. Test helper.
func (p *Provider) Len(bucket string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.buckets[bucket])
}
