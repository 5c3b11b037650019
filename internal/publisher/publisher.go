// Package publisher defines the interface for downstream harvest
// notifications. This abstraction keeps the orchestrator independent of the
// message transport (GCP Pub/Sub in production, an in-memory list in tests).
package publisher

import "context"

// Message summarizes one stored harvest for downstream consumers.
type Message struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ResolvedURL string `json:"resolved_url"`
	CachePath   string `json:"cache_path"`
	ContentType string `json:"content_type"`
	StatusCode  int    `json:"status_code"`
}

// Provider publishes harvest notifications.
type Provider interface {
	// Publish sends the message to the configured topic. Implementations may
	// be asynchronous; a nil error means the message was accepted.
	Publish(ctx context.Context, msg Message) error

	// Close cleans up client connections and resources.
	Close() error
}

// NoOpProvider publishes nothing. Useful for dry runs and tests.
type NoOpProvider struct{}

// Publish for NoOpProvider does nothing and returns nil.
func (NoOpProvider) Publish(_ context.Context, _ Message) error { return nil }

// Close for NoOpProvider does nothing and returns nil.
func (NoOpProvider) Close() error { return nil }
