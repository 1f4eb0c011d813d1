// Package mock provides a configurable in-memory test double for
// [chat.Provider].
package mock

import (
	"context"
	"sync"

	"github.com/mnemo-app/mnemo/pkg/provider/chat"
)

// Ensure Provider implements the chat.Provider interface.
var _ chat.Provider = (*Provider)(nil)

// Provider is a configurable test double for [chat.Provider].
// It records every request for assertion and is safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// requests records every Complete request, in order.
	requests []chat.CompletionRequest

	// CompleteResult is returned by Complete when CompleteErr is nil.
	CompleteResult string

	// CompleteErr is returned by Complete when non-nil.
	CompleteErr error

	// ModelIDResult is returned by ModelID. Defaults to "mock-chat".
	ModelIDResult string
}

// Complete implements chat.Provider.
func (p *Provider) Complete(_ context.Context, req chat.CompletionRequest) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.CompleteErr != nil {
		return "", p.CompleteErr
	}
	return p.CompleteResult, nil
}

// ModelID implements chat.Provider.
func (p *Provider) ModelID() string {
	if p.ModelIDResult == "" {
		return "mock-chat"
	}
	return p.ModelIDResult
}

// CallCount returns how many times Complete was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of all Complete requests so far.
func (p *Provider) Requests() []chat.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chat.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
