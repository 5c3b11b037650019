package memory

import (
	"context"
	"errors"
	"testing"

	"taxicab/internal/storage"
)

func TestProviderRoundTrip(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()

	path, err := p.Put(ctx, "bucket-a", "some_key", []byte("payload"), map[string]string{"resolved_url": "https://example.org"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if path != "gs://bucket-a/some_key" {
		t.Fatalf("Put() path = %q", path)
	}

	obj, err := p.Get(ctx, "bucket-a", "some_key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(obj.Data) != "payload" {
		t.Fatalf("Get() data = %q", obj.Data)
	}
	if obj.Metadata["resolved_url"] != "https://example.org" {
		t.Fatalf("Get() metadata = %v", obj.Metadata)
	}
}

func TestProviderMiss(t *testing.T) {
	t.Parallel()

	p := New()
	if _, err := p.Get(context.Background(), "nope", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProviderCopiesData(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()
	data := []byte("original")
	if _, err := p.Put(ctx, "b", "k", data, nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data[0] = 'X'

	obj, err := p.Get(ctx, "b", "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(obj.Data) != "original" {
		t.Fatalf("stored data aliased caller buffer: %q", obj.Data)
	}
}
