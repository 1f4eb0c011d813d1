// Package backfill computes embeddings for memories that lack one.
//
// Memories accumulate without embeddings whenever entries are written while
// no provider is configured, when content edits invalidate the stored vector,
// or after a provider switch cleared everything. Backfill drains that backlog
// in bounded batches, oldest entries first, so repeated rounds converge
// without ever holding a whole journal in memory.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mnemo-app/mnemo/internal/ai"
	"github.com/mnemo-app/mnemo/internal/observe"
	"github.com/mnemo-app/mnemo/pkg/journal"
	"github.com/mnemo-app/mnemo/pkg/vector"
)

// DefaultBatchSize bounds how many memories one RunOnce round embeds.
const DefaultBatchSize = 25

// Resolver yields per-owner AI providers. Implemented by [ai.Resolver].
type Resolver interface {
	Resolve(ctx context.Context, ownerID string) (*ai.Providers, error)
}

// Progress reports the outcome of one backfill round.
type Progress struct {
	// Processed is how many memories received an embedding this round.
	Processed int

	// Skipped is how many memories failed to embed and were left for a
	// later round.
	Skipped int

	// Remaining is the number of unembedded memories left after the round,
	// counted fresh so concurrent writes are reflected.
	Remaining int
}

// Status is a point-in-time embedding census for one owner.
type Status struct {
	Total      int
	Embedded   int
	Unembedded int
}

// Backfiller runs embedding backfill rounds. Create with [New]; safe for
// concurrent use.
type Backfiller struct {
	resolver  Resolver
	store     journal.Store
	dims      int
	batchSize int
	log       *slog.Logger
	metrics   *observe.Metrics
}

// Option configures a [Backfiller].
type Option func(*Backfiller)

// WithDimensions sets the storage dimensionality embeddings are normalized
// to. Default: [vector.DefaultDimensions].
func WithDimensions(dims int) Option {
	return func(b *Backfiller) { b.dims = dims }
}

// WithBatchSize overrides the per-round batch bound. Non-positive values
// keep the default.
func WithBatchSize(n int) Option {
	return func(b *Backfiller) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(b *Backfiller) { b.log = log }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Backfiller) { b.metrics = m }
}

// New creates a Backfiller.
func New(resolver Resolver, store journal.Store, opts ...Option) *Backfiller {
	b := &Backfiller{
		resolver:  resolver,
		store:     store,
		dims:      vector.DefaultDimensions,
		batchSize: DefaultBatchSize,
		log:       slog.Default(),
		metrics:   observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunOnce embeds up to one batch of the owner's unembedded memories, oldest
// first. A memory whose embedding fails is logged, skipped, and retried in a
// later round; storage failures abort the round. Owners without a provider
// get an immediate zero round; [Backfiller.Status] reports the backlog.
func (b *Backfiller) RunOnce(ctx context.Context, ownerID string) (*Progress, error) {
	providers, err := b.resolver.Resolve(ctx, ownerID)
	if errors.Is(err, ai.ErrNoProvider) {
		// Nothing can be embedded without a provider; report an idle round
		// without touching the store.
		return &Progress{}, nil
	}
	if err != nil {
		return nil, err
	}

	pending, err := b.store.ListUnembedded(ctx, ownerID, b.batchSize)
	if err != nil {
		return nil, fmt.Errorf("backfill: list unembedded: %w", err)
	}

	progress := &Progress{}
	for _, m := range pending {
		embedding, err := providers.Embeddings.Embed(ctx, m.Content)
		if err != nil {
			// One stubborn record must not wedge the whole backlog.
			b.log.Warn("backfill: embedding failed, skipping memory",
				"owner", ownerID, "memory", m.ID, "error", err)
			b.metrics.RecordProviderError(ctx, providers.Embeddings.ModelID(), "embed")
			progress.Skipped++
			continue
		}
		b.metrics.RecordProviderRequest(ctx, providers.Embeddings.ModelID(), "embed", "ok")

		embedding = vector.Normalize(embedding, b.dims)
		if err := b.store.SetEmbedding(ctx, ownerID, m.ID, embedding); err != nil {
			return nil, fmt.Errorf("backfill: store embedding for %s: %w", m.ID, err)
		}
		progress.Processed++
	}

	b.metrics.RecordBackfill(ctx, "embedded", int64(progress.Processed))
	if progress.Skipped > 0 {
		b.metrics.RecordBackfill(ctx, "skipped", int64(progress.Skipped))
	}

	// Counted fresh rather than derived from the batch: entries written
	// during the round belong in the number callers see.
	progress.Remaining, err = b.store.CountUnembedded(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("backfill: count unembedded: %w", err)
	}

	b.log.Info("backfill round complete", "owner", ownerID,
		"processed", progress.Processed, "skipped", progress.Skipped, "remaining", progress.Remaining)
	return progress, nil
}

// Status reports the owner's embedding coverage.
func (b *Backfiller) Status(ctx context.Context, ownerID string) (*Status, error) {
	total, err := b.store.CountMemories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("backfill: count memories: %w", err)
	}
	unembedded, err := b.store.CountUnembedded(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("backfill: count unembedded: %w", err)
	}
	return &Status{Total: total, Embedded: total - unembedded, Unembedded: unembedded}, nil
}

// EmbedOne embeds a single memory's content and stores the vector. Write
// paths call it right after creating or editing an entry; callers treat a
// failure as "leave it for backfill", not as a failed write.
func (b *Backfiller) EmbedOne(ctx context.Context, ownerID, memoryID, content string) error {
	providers, err := b.resolver.Resolve(ctx, ownerID)
	if errors.Is(err, ai.ErrNoProvider) {
		return nil
	}
	if err != nil {
		return err
	}

	embedding, err := providers.Embeddings.Embed(ctx, content)
	if err != nil {
		b.metrics.RecordProviderError(ctx, providers.Embeddings.ModelID(), "embed")
		return fmt.Errorf("backfill: embed memory %s: %w", memoryID, err)
	}
	b.metrics.RecordProviderRequest(ctx, providers.Embeddings.ModelID(), "embed", "ok")

	embedding = vector.Normalize(embedding, b.dims)
	if err := b.store.SetEmbedding(ctx, ownerID, memoryID, embedding); err != nil {
		return fmt.Errorf("backfill: store embedding for %s: %w", memoryID, err)
	}
	return nil
}
