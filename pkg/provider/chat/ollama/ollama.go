// Package ollama provides the self-hosted chat provider backed by an Ollama
// server's native /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mnemo-app/mnemo/pkg/provider/chat"
)

// DefaultBaseURL is the default base URL for a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// DefaultModel is the chat model used when the owner's settings leave it empty.
const DefaultModel = "llama3.2"

// defaultTemperature is applied when the request leaves Temperature at zero.
const defaultTemperature = 0.7

// Ensure Provider implements the chat.Provider interface at compile time.
var _ chat.Provider = (*Provider)(nil)

// Provider implements chat.Provider using an Ollama server.
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
// A zero or negative value means no timeout (the default). Local models can be
// slow on first load, so prefer generous values.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a self-hosted chat Provider.
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

// chatMessage is the wire form of a single message for /api/chat.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON request body sent to Ollama's /api/chat endpoint.
// Stream is always false — the journal only needs complete replies.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
	Format   string        `json:"format,omitempty"`
}

// chatOptions carries model sampling options.
type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

// chatResponse is the JSON response body returned by Ollama's /api/chat
// endpoint in non-streaming mode.
type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Complete implements chat.Provider by posting the conversation to /api/chat
// and returning the assistant message content.
func (p *Provider) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("ollama chat: messages must not be empty")
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	wireReq := chatRequest{
		Model:   p.model,
		Stream:  false,
		Options: chatOptions{Temperature: temperature},
	}
	for _, m := range req.Messages {
		wireReq.Messages = append(wireReq.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if req.JSONObject {
		wireReq.Format = "json"
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return "", fmt.Errorf("ollama chat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama chat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama chat: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama chat: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama chat: decode response: %w", err)
	}
	if result.Message.Content == "" {
		return "", fmt.Errorf("ollama chat: empty message content in response")
	}
	return result.Message.Content, nil
}

// ModelID implements chat.Provider by returning the Ollama model name supplied
// at construction time.
func (p *Provider) ModelID() string {
	return p.model
}
