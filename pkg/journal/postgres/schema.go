// Package postgres provides the PostgreSQL implementation of the journal
// storage contracts: memories with pgvector embeddings, tags, media metadata,
// per-owner provider settings, and aggregate read models.
//
// The pgvector extension must be available in the target database; [Migrate]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	mem, _ := store.Create(ctx, ownerID, "first entry")
//	_ = store.SetEmbedding(ctx, ownerID, mem.ID, vec)
//	matches, _ := store.Match(ctx, ownerID, queryVec, 0.3, 20)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlMemories returns the memories DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time; an HNSW index accelerates cosine nearest-neighbour search
// and a GIN index backs keyword search.
func ddlMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id          UUID         PRIMARY KEY,
    owner_id    TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memories_owner
    ON memories (owner_id);

CREATE INDEX IF NOT EXISTS idx_memories_owner_created
    ON memories (owner_id, created_at);

CREATE INDEX IF NOT EXISTS idx_memories_unembedded
    ON memories (owner_id, created_at) WHERE embedding IS NULL;

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_memories_fts
    ON memories USING GIN (to_tsvector('english', content));
`, embeddingDimensions)
}

const ddlTags = `
CREATE TABLE IF NOT EXISTS tags (
    id          UUID         PRIMARY KEY,
    owner_id    TEXT         NOT NULL,
    name        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (owner_id, name)
);

CREATE TABLE IF NOT EXISTS memory_tags (
    memory_id   UUID NOT NULL REFERENCES memories (id) ON DELETE CASCADE,
    tag_id      UUID NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
    PRIMARY KEY (memory_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_memory_tags_tag
    ON memory_tags (tag_id);
`

const ddlMedia = `
CREATE TABLE IF NOT EXISTS media (
    id            UUID         PRIMARY KEY,
    memory_id     UUID         NOT NULL REFERENCES memories (id) ON DELETE CASCADE,
    type          TEXT         NOT NULL,
    storage_path  TEXT         NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_media_memory
    ON media (memory_id);
`

const ddlProviderSettings = `
CREATE TABLE IF NOT EXISTS provider_settings (
    owner_id                TEXT         PRIMARY KEY,
    provider                TEXT         NOT NULL DEFAULT '',
    openai_api_key          TEXT         NOT NULL DEFAULT '',
    ollama_base_url         TEXT         NOT NULL DEFAULT '',
    ollama_embedding_model  TEXT         NOT NULL DEFAULT '',
    ollama_chat_model       TEXT         NOT NULL DEFAULT '',
    embedding_dimensions    INTEGER      NOT NULL DEFAULT 0,
    updated_at              TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT
// EXISTS) and safe to call on every application start.
//
// embeddingDimensions must match the normalization target configured for the
// deployment (e.g., 1536 for OpenAI text-embedding-3-small). Changing this
// value after the first migration requires a manual schema update — and a
// [Store.ClearEmbeddings] pass, since existing vectors would no longer fit.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlMemories(embeddingDimensions),
		ddlTags,
		ddlMedia,
		ddlProviderSettings,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
