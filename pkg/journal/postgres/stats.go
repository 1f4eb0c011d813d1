package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// topTagLimit caps the tag breakdown in [Store.Stats].
const topTagLimit = 5

// Stats implements [journal.StatsStore].
func (s *Store) Stats(ctx context.Context, ownerID string) (*journal.Stats, error) {
	const q = `
		SELECT count(DISTINCT m.id),
		       count(DISTINCT mt.memory_id),
		       coalesce(min(m.created_at), 'epoch'::timestamptz),
		       coalesce(max(m.created_at), 'epoch'::timestamptz)
		FROM   memories m
		LEFT JOIN memory_tags mt ON mt.memory_id = m.id
		WHERE  m.owner_id = $1`

	var (
		st    journal.Stats
		first time.Time
		last  time.Time
	)
	if err := s.pool.QueryRow(ctx, q, ownerID).Scan(&st.TotalMemories, &st.TaggedMemories, &first, &last); err != nil {
		return nil, fmt.Errorf("postgres: stats: %w", err)
	}
	if st.TotalMemories > 0 {
		st.FirstMemory = first
		st.LastMemory = last
	}

	const tagQ = `
		SELECT t.id, t.name, count(mt.memory_id)
		FROM   tags t
		JOIN   memory_tags mt ON mt.tag_id = t.id
		WHERE  t.owner_id = $1
		GROUP  BY t.id, t.name
		ORDER  BY count(mt.memory_id) DESC, t.name
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, tagQ, ownerID, topTagLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats top tags: %w", err)
	}
	st.TopTags, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.TagCount, error) {
		var tc journal.TagCount
		err := row.Scan(&tc.ID, &tc.Name, &tc.Memories)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan top tags: %w", err)
	}
	if st.TopTags == nil {
		st.TopTags = []journal.TagCount{}
	}
	return &st, nil
}

// Calendar implements [journal.StatsStore].
func (s *Store) Calendar(ctx context.Context, ownerID string, year int, month time.Month) ([]journal.CalendarDay, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	const q = `
		SELECT extract(day FROM created_at)::int AS day, count(*)
		FROM   memories
		WHERE  owner_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP  BY day
		ORDER  BY day`

	rows, err := s.pool.Query(ctx, q, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: calendar: %w", err)
	}
	days, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.CalendarDay, error) {
		var d journal.CalendarDay
		err := row.Scan(&d.Day, &d.Count)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan calendar: %w", err)
	}
	if days == nil {
		days = []journal.CalendarDay{}
	}
	return days, nil
}
