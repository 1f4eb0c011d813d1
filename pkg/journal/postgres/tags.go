package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// ListTags implements [journal.TagStore].
func (s *Store) ListTags(ctx context.Context, ownerID string) ([]journal.TagCount, error) {
	const q = `
		SELECT t.id, t.name, count(mt.memory_id)
		FROM   tags t
		LEFT JOIN memory_tags mt ON mt.tag_id = t.id
		WHERE  t.owner_id = $1
		GROUP  BY t.id, t.name
		ORDER  BY t.name`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tags: %w", err)
	}

	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.TagCount, error) {
		var tc journal.TagCount
		err := row.Scan(&tc.ID, &tc.Name, &tc.Memories)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tags: %w", err)
	}
	if tags == nil {
		tags = []journal.TagCount{}
	}
	return tags, nil
}

// EnsureTag implements [journal.TagStore]. The upsert races cleanly with
// concurrent callers thanks to the (owner_id, name) unique constraint; the
// DO UPDATE arm makes RETURNING yield the existing row's id.
func (s *Store) EnsureTag(ctx context.Context, ownerID, name string) (*journal.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("postgres: ensure tag: empty name")
	}

	const q = `
		INSERT INTO tags (id, owner_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name`

	var tag journal.Tag
	if err := s.pool.QueryRow(ctx, q, uuid.NewString(), ownerID, name).Scan(&tag.ID, &tag.Name); err != nil {
		return nil, fmt.Errorf("postgres: ensure tag: %w", err)
	}
	return &tag, nil
}

// LinkTag implements [journal.TagStore]. The memory must belong to ownerID;
// linking someone else's memory affects zero rows and reports not found.
func (s *Store) LinkTag(ctx context.Context, ownerID, memoryID, tagID string) error {
	const q = `
		INSERT INTO memory_tags (memory_id, tag_id)
		SELECT m.id, $3::uuid
		FROM   memories m
		WHERE  m.owner_id = $1 AND m.id = $2::uuid
		ON CONFLICT (memory_id, tag_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, ownerID, memoryID, tagID)
	if err != nil {
		return fmt.Errorf("postgres: link tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the pair already exists (fine) or the memory is missing.
		// Distinguish the two so callers do not silently drop links.
		const check = `SELECT EXISTS (SELECT 1 FROM memories WHERE owner_id = $1 AND id = $2::uuid)`
		var exists bool
		if err := s.pool.QueryRow(ctx, check, ownerID, memoryID).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: link tag: %w", err)
		}
		if !exists {
			return fmt.Errorf("postgres: link tag: memory %s not found", memoryID)
		}
	}
	return nil
}

// TaggedMemoryIDs implements [journal.TagStore].
func (s *Store) TaggedMemoryIDs(ctx context.Context, ownerID string) (map[string]bool, error) {
	const q = `
		SELECT DISTINCT m.id
		FROM   memories m
		JOIN   memory_tags mt ON mt.memory_id = m.id
		WHERE  m.owner_id = $1`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: tagged memory ids: %w", err)
	}

	tagged := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan tagged memory id: %w", err)
		}
		tagged[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: tagged memory ids: %w", err)
	}
	return tagged, nil
}
