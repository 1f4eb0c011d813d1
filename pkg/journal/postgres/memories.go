package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// defaultListLimit caps List results when opts.Limit is zero.
const defaultListLimit = 50

// Create implements [journal.Store].
func (s *Store) Create(ctx context.Context, ownerID, content string) (*journal.Memory, error) {
	const q = `
		INSERT INTO memories (id, owner_id, content)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	m := journal.Memory{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Content: content,
		Tags:    []journal.Tag{},
		Media:   []journal.Media{},
	}
	if err := s.pool.QueryRow(ctx, q, m.ID, ownerID, content).Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, fmt.Errorf("postgres: create memory: %w", err)
	}
	return &m, nil
}

// Get implements [journal.Store].
func (s *Store) Get(ctx context.Context, ownerID, id string) (*journal.Memory, error) {
	const q = `
		SELECT id, owner_id, content, embedding, created_at, updated_at
		FROM   memories
		WHERE  owner_id = $1 AND id = $2::uuid`

	m, err := scanMemory(s.pool.QueryRow(ctx, q, ownerID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get memory: %w", err)
	}

	hydrated, err := s.hydrate(ctx, []journal.Memory{*m})
	if err != nil {
		return nil, err
	}
	return &hydrated[0], nil
}

// GetByIDs implements [journal.Store]. Hydration is batched: one query for
// the memory rows, one for all tag links, one for all media rows.
func (s *Store) GetByIDs(ctx context.Context, ownerID string, ids []string) ([]journal.Memory, error) {
	if len(ids) == 0 {
		return []journal.Memory{}, nil
	}

	const q = `
		SELECT id, owner_id, content, embedding, created_at, updated_at
		FROM   memories
		WHERE  owner_id = $1 AND id = ANY($2::uuid[])`

	rows, err := s.pool.Query(ctx, q, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get memories by ids: %w", err)
	}
	memories, err := collectMemories(rows)
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, memories)
}

// List implements [journal.Store].
func (s *Store) List(ctx context.Context, ownerID string, opts journal.ListOpts) ([]journal.Memory, error) {
	args := []any{ownerID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"owner_id = $1"}
	if opts.Query != "" {
		conditions = append(conditions,
			"to_tsvector('english', content) @@ plainto_tsquery('english', "+next(opts.Query)+")")
	}
	if opts.Tag != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM memory_tags mt
			JOIN   tags t ON t.id = mt.tag_id
			WHERE  mt.memory_id = memories.id AND t.owner_id = $1 AND t.name = `+next(opts.Tag)+")")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limitArg := next(limit)

	q := fmt.Sprintf(`
		SELECT id, owner_id, content, embedding, created_at, updated_at
		FROM   memories
		WHERE  %s
		ORDER  BY created_at DESC
		LIMIT  %s`, strings.Join(conditions, "\n  AND "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list memories: %w", err)
	}
	memories, err := collectMemories(rows)
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, memories)
}

// UpdateContent implements [journal.Store]. The embedding is cleared in the
// same statement: the stored vector described the old text, and a record with
// a stale vector would silently rank wrong in search.
func (s *Store) UpdateContent(ctx context.Context, ownerID, id, content string) error {
	const q = `
		UPDATE memories
		SET    content = $3, embedding = NULL, updated_at = now()
		WHERE  owner_id = $1 AND id = $2::uuid`

	tag, err := s.pool.Exec(ctx, q, ownerID, id, content)
	if err != nil {
		return fmt.Errorf("postgres: update memory content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update memory content: memory %s not found", id)
	}
	return nil
}

// Delete implements [journal.Store]. Tag links and media rows go with the
// memory via ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	const q = `DELETE FROM memories WHERE owner_id = $1 AND id = $2::uuid`
	if _, err := s.pool.Exec(ctx, q, ownerID, id); err != nil {
		return fmt.Errorf("postgres: delete memory: %w", err)
	}
	return nil
}

// scanMemory scans one memories row (id, owner_id, content, embedding,
// created_at, updated_at) into a journal.Memory.
func scanMemory(row pgx.Row) (*journal.Memory, error) {
	var (
		m   journal.Memory
		vec *pgvector.Vector
	)
	if err := row.Scan(&m.ID, &m.OwnerID, &m.Content, &vec, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if vec != nil {
		m.Embedding = vec.Slice()
	}
	return &m, nil
}

// collectMemories drains rows of the standard memories column set.
func collectMemories(rows pgx.Rows) ([]journal.Memory, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Memory, error) {
		m, err := scanMemory(row)
		if err != nil {
			return journal.Memory{}, err
		}
		return *m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan memories: %w", err)
	}
	if out == nil {
		out = []journal.Memory{}
	}
	return out, nil
}

// hydrate attaches tags and media to the given memories with one batched
// query per relation. Media URLs stay empty — signing is the media package's
// concern.
func (s *Store) hydrate(ctx context.Context, memories []journal.Memory) ([]journal.Memory, error) {
	if len(memories) == 0 {
		return []journal.Memory{}, nil
	}

	ids := make([]string, len(memories))
	index := make(map[string]int, len(memories))
	for i := range memories {
		memories[i].Tags = []journal.Tag{}
		memories[i].Media = []journal.Media{}
		ids[i] = memories[i].ID
		index[memories[i].ID] = i
	}

	const tagQ = `
		SELECT mt.memory_id, t.id, t.name
		FROM   memory_tags mt
		JOIN   tags t ON t.id = mt.tag_id
		WHERE  mt.memory_id = ANY($1::uuid[])
		ORDER  BY t.name`

	tagRows, err := s.pool.Query(ctx, tagQ, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: hydrate tags: %w", err)
	}
	for tagRows.Next() {
		var (
			memoryID string
			tag      journal.Tag
		)
		if err := tagRows.Scan(&memoryID, &tag.ID, &tag.Name); err != nil {
			tagRows.Close()
			return nil, fmt.Errorf("postgres: scan tag link: %w", err)
		}
		if i, ok := index[memoryID]; ok {
			memories[i].Tags = append(memories[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan tag links: %w", err)
	}

	const mediaQ = `
		SELECT memory_id, id, type, storage_path
		FROM   media
		WHERE  memory_id = ANY($1::uuid[])
		ORDER  BY created_at`

	mediaRows, err := s.pool.Query(ctx, mediaQ, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: hydrate media: %w", err)
	}
	for mediaRows.Next() {
		var (
			memoryID string
			md       journal.Media
		)
		if err := mediaRows.Scan(&memoryID, &md.ID, &md.Type, &md.StoragePath); err != nil {
			mediaRows.Close()
			return nil, fmt.Errorf("postgres: scan media row: %w", err)
		}
		if i, ok := index[memoryID]; ok {
			memories[i].Media = append(memories[i].Media, md)
		}
	}
	if err := mediaRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan media: %w", err)
	}

	return memories, nil
}
