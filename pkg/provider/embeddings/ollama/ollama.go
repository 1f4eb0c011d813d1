// Package ollama provides the self-hosted embeddings provider backed by an
// Ollama server.
//
// Owners who prefer not to send journal content to a hosted API point the
// journal at their own Ollama instance (https://ollama.com) and pick an
// embedding model such as nomic-embed-text or all-minilm. The provider talks
// to Ollama's native /api/embed endpoint with plain net/http — no SDK exists
// for this endpoint and none is needed.
//
// Self-hosted models rarely match the journal's storage dimensionality
// (nomic-embed-text emits 768 components against a 1536-wide column), so every
// vector from this provider passes through vector.Normalize before use.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mnemo-app/mnemo/pkg/provider/embeddings"
)

// DefaultBaseURL is the default base URL for a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// DefaultModel is the embedding model used when the owner's settings leave it
// empty.
const DefaultModel = "nomic-embed-text"

// Ensure Provider implements the embeddings.Provider interface at compile time.
var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using an Ollama server.
// It is safe for concurrent use.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout on the underlying HTTP client.
// A zero or negative value means no timeout (the default).
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a self-hosted embeddings Provider.
//
// baseURL is the base URL of the Ollama server; if empty, DefaultBaseURL is
// used. A trailing slash is stripped. model is the Ollama model name; if
// empty, DefaultModel is used.
func New(baseURL string, model string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Provider{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}, nil
}

// embedRequest is the JSON request body sent to Ollama's /api/embed endpoint.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the JSON response body returned by Ollama's /api/embed endpoint.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider by posting the text to /api/embed and
// returning the first (and only) embedding from the response.
//
// Returns an error if the HTTP request fails, the server returns a non-200
// status, the response cannot be decoded or contains no embeddings, or ctx is
// cancelled.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model: p.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embeddings: unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embeddings: decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embeddings: empty embeddings in response")
	}
	return result.Embeddings[0], nil
}

// Dimensions implements embeddings.Provider by returning the well-known output
// dimension for recognised Ollama embedding models. Returns 0 for unknown
// models; callers rely on vector.Normalize rather than this value, so an
// unknown dimension is not an error.
func (p *Provider) Dimensions() int {
	lower := strings.ToLower(p.model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	default:
		return 0
	}
}

// ModelID implements embeddings.Provider by returning the Ollama model name
// supplied at construction time.
func (p *Provider) ModelID() string {
	return p.model
}
