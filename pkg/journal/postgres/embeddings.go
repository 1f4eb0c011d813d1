package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// SetEmbedding implements [journal.Store].
func (s *Store) SetEmbedding(ctx context.Context, ownerID, id string, embedding []float32) error {
	const q = `
		UPDATE memories
		SET    embedding = $3
		WHERE  owner_id = $1 AND id = $2::uuid`

	tag, err := s.pool.Exec(ctx, q, ownerID, id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("postgres: set embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: set embedding: memory %s not found", id)
	}
	return nil
}

// ClearEmbeddings implements [journal.Store]. Only rows that actually carry an
// embedding are touched, so the returned count reflects vectors removed rather
// than rows scanned.
func (s *Store) ClearEmbeddings(ctx context.Context, ownerID string) (int64, error) {
	const q = `
		UPDATE memories
		SET    embedding = NULL
		WHERE  owner_id = $1 AND embedding IS NOT NULL`

	tag, err := s.pool.Exec(ctx, q, ownerID)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear embeddings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListUnembedded implements [journal.Store]. Results are oldest-first so
// repeated backfill rounds drain the backlog in capture order; no tag or media
// hydration is done because callers only need the content to embed.
func (s *Store) ListUnembedded(ctx context.Context, ownerID string, limit int) ([]journal.Memory, error) {
	const q = `
		SELECT id, owner_id, content, embedding, created_at, updated_at
		FROM   memories
		WHERE  owner_id = $1 AND embedding IS NULL
		ORDER  BY created_at ASC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unembedded: %w", err)
	}
	return collectMemories(rows)
}

// CountUnembedded implements [journal.Store].
func (s *Store) CountUnembedded(ctx context.Context, ownerID string) (int, error) {
	const q = `SELECT count(*) FROM memories WHERE owner_id = $1 AND embedding IS NULL`

	var n int
	if err := s.pool.QueryRow(ctx, q, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count unembedded: %w", err)
	}
	return n, nil
}

// CountMemories implements [journal.Store].
func (s *Store) CountMemories(ctx context.Context, ownerID string) (int, error) {
	const q = `SELECT count(*) FROM memories WHERE owner_id = $1`

	var n int
	if err := s.pool.QueryRow(ctx, q, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count memories: %w", err)
	}
	return n, nil
}

// Match implements [journal.Store]. The <=> operator is pgvector's cosine
// distance; 1 - distance is the similarity reported to callers. Ordering by
// the raw distance expression keeps the HNSW index usable.
func (s *Store) Match(ctx context.Context, ownerID string, embedding []float32, minSimilarity float64, limit int) ([]journal.Match, error) {
	const q = `
		SELECT id, 1 - (embedding <=> $2) AS similarity
		FROM   memories
		WHERE  owner_id = $1
		  AND  embedding IS NOT NULL
		  AND  1 - (embedding <=> $2) >= $3
		ORDER  BY embedding <=> $2
		LIMIT  $4`

	rows, err := s.pool.Query(ctx, q, ownerID, pgvector.NewVector(embedding), minSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: match memories: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Match, error) {
		var m journal.Match
		err := row.Scan(&m.ID, &m.Similarity)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan matches: %w", err)
	}
	if matches == nil {
		matches = []journal.Match{}
	}
	return matches, nil
}
