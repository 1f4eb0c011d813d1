package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/mnemo-app/mnemo/pkg/journal"
	"github.com/mnemo-app/mnemo/pkg/journal/mock"
	chatollama "github.com/mnemo-app/mnemo/pkg/provider/chat/ollama"
	embollama "github.com/mnemo-app/mnemo/pkg/provider/embeddings/ollama"
)

func saveSettings(t *testing.T, store *mock.Store, ps journal.ProviderSettings) {
	t.Helper()
	if err := store.SaveSettings(context.Background(), ps); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
}

func TestResolve_NoSettingsNoDefaultKey(t *testing.T) {
	r := NewResolver(&mock.Store{}, "")

	_, err := r.Resolve(context.Background(), "alice")
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("want ErrNoProvider, got %v", err)
	}
}

func TestResolve_NoSettingsFallsBackToDefaultKey(t *testing.T) {
	r := NewResolver(&mock.Store{}, "sk-deployment")

	providers, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if providers.Embeddings == nil || providers.Chat == nil {
		t.Fatal("want both providers wired")
	}
}

func TestResolve_OpenAIWithOwnKey(t *testing.T) {
	store := &mock.Store{}
	saveSettings(t, store, journal.ProviderSettings{
		OwnerID:      "alice",
		Provider:     journal.ProviderOpenAI,
		OpenAIAPIKey: "sk-alice",
	})
	r := NewResolver(store, "")

	providers, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if providers.Embeddings.ModelID() == "" {
		t.Error("want a concrete embedding model")
	}
}

func TestResolve_OpenAIWithoutKeyUsesDefault(t *testing.T) {
	store := &mock.Store{}
	saveSettings(t, store, journal.ProviderSettings{
		OwnerID:  "alice",
		Provider: journal.ProviderOpenAI,
	})

	// With a deployment key the owner resolves fine.
	r := NewResolver(store, "sk-deployment")
	if _, err := r.Resolve(context.Background(), "alice"); err != nil {
		t.Fatalf("Resolve with default key: %v", err)
	}

	// Without one the owner has no backend.
	r = NewResolver(store, "")
	if _, err := r.Resolve(context.Background(), "alice"); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("want ErrNoProvider, got %v", err)
	}
}

func TestResolve_Ollama(t *testing.T) {
	store := &mock.Store{}
	saveSettings(t, store, journal.ProviderSettings{
		OwnerID:              "alice",
		Provider:             journal.ProviderOllama,
		OllamaBaseURL:        "http://gpu-box:11434",
		OllamaEmbeddingModel: "mxbai-embed-large",
		OllamaChatModel:      "llama3.2",
	})
	r := NewResolver(store, "sk-unused")

	providers, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if providers.Embeddings.ModelID() != "mxbai-embed-large" {
		t.Errorf("embedding model: got %q", providers.Embeddings.ModelID())
	}
	if providers.Chat.ModelID() != "llama3.2" {
		t.Errorf("chat model: got %q", providers.Chat.ModelID())
	}
}

func TestResolve_OllamaDefaults(t *testing.T) {
	store := &mock.Store{}
	saveSettings(t, store, journal.ProviderSettings{
		OwnerID:       "alice",
		Provider:      journal.ProviderOllama,
		OllamaBaseURL: "http://localhost:11434",
	})
	r := NewResolver(store, "")

	providers, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if providers.Embeddings.ModelID() != embollama.DefaultModel {
		t.Errorf("embedding model: got %q, want %q", providers.Embeddings.ModelID(), embollama.DefaultModel)
	}
	if providers.Chat.ModelID() != chatollama.DefaultModel {
		t.Errorf("chat model: got %q, want %q", providers.Chat.ModelID(), chatollama.DefaultModel)
	}
}

func TestResolve_OllamaWithoutBaseURLFallsBack(t *testing.T) {
	store := &mock.Store{}
	saveSettings(t, store, journal.ProviderSettings{
		OwnerID:  "alice",
		Provider: journal.ProviderOllama,
	})

	// Ollama without a base URL is not a usable backend; the deployment key
	// takes over.
	r := NewResolver(store, "sk-deployment")
	providers, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if providers.Embeddings.ModelID() == embollama.DefaultModel {
		t.Errorf("want the hosted default backend, got ollama model %q", providers.Embeddings.ModelID())
	}

	// Without a deployment key either, the owner has no backend at all.
	r = NewResolver(store, "")
	if _, err := r.Resolve(context.Background(), "alice"); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("want ErrNoProvider, got %v", err)
	}
}

func TestResolve_SettingsError(t *testing.T) {
	store := &mock.Store{SettingsErr: errors.New("boom")}
	r := NewResolver(store, "sk-deployment")

	if _, err := r.Resolve(context.Background(), "alice"); err == nil {
		t.Fatal("want error when settings load fails")
	} else if errors.Is(err, ErrNoProvider) {
		t.Fatal("settings failure must not be reported as ErrNoProvider")
	}
}
