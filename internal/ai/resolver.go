// Package ai resolves which AI backend serves a given journal owner.
//
// Owners choose their own provider in settings: a hosted OpenAI account with
// their own API key, or a self-hosted Ollama server. A deployment-wide OpenAI
// key, when configured, covers owners who enabled OpenAI without bringing a
// key. Owners with no usable backend get [ErrNoProvider]; callers treat that
// as "AI features off", not as a failure.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mnemo-app/mnemo/pkg/journal"
	"github.com/mnemo-app/mnemo/pkg/provider/chat"
	chatollama "github.com/mnemo-app/mnemo/pkg/provider/chat/ollama"
	chatopenai "github.com/mnemo-app/mnemo/pkg/provider/chat/openai"
	"github.com/mnemo-app/mnemo/pkg/provider/embeddings"
	embollama "github.com/mnemo-app/mnemo/pkg/provider/embeddings/ollama"
	embopenai "github.com/mnemo-app/mnemo/pkg/provider/embeddings/openai"
)

// ErrNoProvider reports that the owner has no usable AI backend. Search and
// tagging engines map it to graceful no-op behaviour.
var ErrNoProvider = errors.New("ai: no provider configured")

// Providers bundles the embedding and chat backends resolved for one owner.
// Both always come from the same backend; mixing vendors per capability is
// not supported.
type Providers struct {
	Embeddings embeddings.Provider
	Chat       chat.Provider
}

// Resolver builds per-owner [Providers] from stored settings. Resolution is
// pure wiring: no network traffic happens until a provider is used.
type Resolver struct {
	settings      journal.SettingsStore
	defaultAPIKey string
}

// NewResolver creates a Resolver. defaultOpenAIKey may be empty; when set it
// serves owners who selected OpenAI without saving their own key, and owners
// with no settings at all.
func NewResolver(settings journal.SettingsStore, defaultOpenAIKey string) *Resolver {
	return &Resolver{settings: settings, defaultAPIKey: defaultOpenAIKey}
}

// Resolve returns the providers for ownerID, or [ErrNoProvider] (possibly
// wrapped) when the owner has no usable backend.
func (r *Resolver) Resolve(ctx context.Context, ownerID string) (*Providers, error) {
	ps, err := r.settings.Settings(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ai: load settings for %s: %w", ownerID, err)
	}

	switch {
	case ps != nil && ps.Provider == journal.ProviderOllama && ps.OllamaBaseURL != "":
		return r.ollamaProviders(ps)
	case ps != nil && ps.Provider == journal.ProviderOpenAI:
		key := ps.OpenAIAPIKey
		if key == "" {
			key = r.defaultAPIKey
		}
		return r.openaiProviders(key)
	default:
		// No settings, provider explicitly off, or Ollama selected without a
		// base URL. The deployment default key still serves such owners so a
		// fresh account can search out of the box.
		return r.openaiProviders(r.defaultAPIKey)
	}
}

func (r *Resolver) openaiProviders(apiKey string) (*Providers, error) {
	if apiKey == "" {
		return nil, ErrNoProvider
	}
	emb, err := embopenai.New(apiKey, "")
	if err != nil {
		return nil, fmt.Errorf("ai: openai embeddings: %w", err)
	}
	ch, err := chatopenai.New(apiKey, "")
	if err != nil {
		return nil, fmt.Errorf("ai: openai chat: %w", err)
	}
	return &Providers{Embeddings: emb, Chat: ch}, nil
}

func (r *Resolver) ollamaProviders(ps *journal.ProviderSettings) (*Providers, error) {
	emb, err := embollama.New(ps.OllamaBaseURL, ps.OllamaEmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("ai: ollama embeddings: %w", err)
	}
	ch, err := chatollama.New(ps.OllamaBaseURL, ps.OllamaChatModel)
	if err != nil {
		return nil, fmt.Errorf("ai: ollama chat: %w", err)
	}
	return &Providers{Embeddings: emb, Chat: ch}, nil
}
