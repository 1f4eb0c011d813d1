// Package mock provides a configurable in-memory test double for
// [embeddings.Provider].
//
// Typical usage:
//
//	p := &mock.Provider{EmbedResult: []float32{0.1, 0.2, 0.3}}
//
//	// inject p into the system under test …
//
//	if got := p.CallCount(); got != 1 {
//	    t.Errorf("expected 1 Embed call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/mnemo-app/mnemo/pkg/provider/embeddings"
)

// Ensure Provider implements the embeddings.Provider interface.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a configurable test double for [embeddings.Provider].
// It records every Embed input for assertion and is safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// inputs records the text argument of every Embed call, in order.
	inputs []string

	// EmbedResult is returned by Embed when EmbedFunc and EmbedErr are unset.
	EmbedResult []float32

	// EmbedErr is returned by Embed when non-nil.
	EmbedErr error

	// EmbedFunc, when set, computes Embed's result per call. It takes
	// precedence over EmbedResult and EmbedErr.
	EmbedFunc func(text string) ([]float32, error)

	// DimensionsResult is returned by Dimensions.
	DimensionsResult int

	// ModelIDResult is returned by ModelID. Defaults to "mock-embed".
	ModelIDResult string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.inputs = append(p.inputs, text)
	fn := p.EmbedFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	return p.EmbedResult, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	return p.DimensionsResult
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	if p.ModelIDResult == "" {
		return "mock-embed"
	}
	return p.ModelIDResult
}

// CallCount returns how many times Embed was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inputs)
}

// Inputs returns a copy of the text arguments of all Embed calls so far.
func (p *Provider) Inputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.inputs))
	copy(out, p.inputs)
	return out
}
