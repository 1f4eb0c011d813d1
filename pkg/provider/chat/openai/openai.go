// Package openai provides the hosted chat provider backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/mnemo-app/mnemo/pkg/provider/chat"
)

// DefaultModel is the chat model used when none is specified.
const DefaultModel = "gpt-4o-mini"

// defaultTemperature is applied when the request leaves Temperature at zero.
const defaultTemperature = 0.7

// Ensure Provider implements the chat.Provider interface.
var _ chat.Provider = (*Provider)(nil)

// Provider implements chat.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a hosted chat Provider.
// If model is empty, DefaultModel (gpt-4o-mini) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai chat: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Complete implements chat.Provider.
func (p *Provider) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return "", fmt.Errorf("openai chat: build params: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelID implements chat.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

// buildParams converts a CompletionRequest into OpenAI SDK params.
func (p *Provider) buildParams(req chat.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return oai.ChatCompletionNewParams{}, fmt.Errorf("messages must not be empty")
	}

	var messages []oai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		switch m.Role {
		case chat.RoleSystem:
			messages = append(messages, oai.SystemMessage(m.Content))
		case chat.RoleUser:
			messages = append(messages, oai.UserMessage(m.Content))
		case chat.RoleAssistant:
			messages = append(messages, oai.AssistantMessage(m.Content))
		default:
			return oai.ChatCompletionNewParams{}, fmt.Errorf("unknown message role %q", m.Role)
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	params := oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    messages,
		Temperature: param.NewOpt(temperature),
	}

	if req.JSONObject {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params, nil
}
