package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// Settings implements [journal.SettingsStore].
func (s *Store) Settings(ctx context.Context, ownerID string) (*journal.ProviderSettings, error) {
	const q = `
		SELECT owner_id, provider, openai_api_key, ollama_base_url,
		       ollama_embedding_model, ollama_chat_model, embedding_dimensions, updated_at
		FROM   provider_settings
		WHERE  owner_id = $1`

	var ps journal.ProviderSettings
	err := s.pool.QueryRow(ctx, q, ownerID).Scan(
		&ps.OwnerID, &ps.Provider, &ps.OpenAIAPIKey, &ps.OllamaBaseURL,
		&ps.OllamaEmbeddingModel, &ps.OllamaChatModel, &ps.EmbeddingDimensions, &ps.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get provider settings: %w", err)
	}
	return &ps, nil
}

// SaveSettings implements [journal.SettingsStore]. Saving only writes the
// settings row; invalidating stored embeddings after a provider switch is a
// separate, explicit call to [Store.ClearEmbeddings].
func (s *Store) SaveSettings(ctx context.Context, settings journal.ProviderSettings) error {
	const q = `
		INSERT INTO provider_settings
		       (owner_id, provider, openai_api_key, ollama_base_url,
		        ollama_embedding_model, ollama_chat_model, embedding_dimensions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (owner_id) DO UPDATE SET
		       provider               = EXCLUDED.provider,
		       openai_api_key         = EXCLUDED.openai_api_key,
		       ollama_base_url        = EXCLUDED.ollama_base_url,
		       ollama_embedding_model = EXCLUDED.ollama_embedding_model,
		       ollama_chat_model      = EXCLUDED.ollama_chat_model,
		       embedding_dimensions   = EXCLUDED.embedding_dimensions,
		       updated_at             = now()`

	_, err := s.pool.Exec(ctx, q,
		settings.OwnerID, settings.Provider, settings.OpenAIAPIKey,
		settings.OllamaBaseURL, settings.OllamaEmbeddingModel, settings.OllamaChatModel,
		settings.EmbeddingDimensions,
	)
	if err != nil {
		return fmt.Errorf("postgres: save provider settings: %w", err)
	}
	return nil
}
