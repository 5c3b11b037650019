// Package memory provides an in-memory publisher for tests.
package memory

import (
	"context"
	"sync"

	"taxicab/internal/publisher"
)

// Provider records every published message.
type Provider struct {
	mu       sync.Mutex
	messages []publisher.Message
}

// NewProvider returns an empty recording publisher.
func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Publish(_ context.Context, msg publisher.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *Provider) Close() error {
	return nil
}

// Messages returns a copy of everything published so far.
func (p *Provider) Messages() []publisher.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publisher.Message, len(p.messages))
	copy(out, p.messages)
	return out
}
