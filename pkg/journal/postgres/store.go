package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// Compile-time interface checks.
var (
	_ journal.Store         = (*Store)(nil)
	_ journal.TagStore      = (*Store)(nil)
	_ journal.SettingsStore = (*Store)(nil)
	_ journal.StatsStore    = (*Store)(nil)
)

// Store is the PostgreSQL-backed implementation of all journal storage
// contracts. It holds a single [pgxpool.Pool]; all methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool

	// dims is the vector column width; queries never depend on it directly,
	// but it is exposed via Dimensions for callers wiring normalization.
	dims int
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the normalization target used when producing
// [journal.Memory.Embedding] values (1536 by default). Changing it after the
// first migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool, dims: embeddingDimensions}, nil
}

// Dimensions returns the vector column width configured at migration time.
func (s *Store) Dimensions() int { return s.dims }

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}
