// Package search implements semantic search over journal memories.
//
// A query is embedded with the owner's resolved provider, normalized to the
// storage dimensionality, and matched against stored vectors by cosine
// similarity. Matches are hydrated in one batched read and returned with
// signed media URLs, best match first.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mnemo-app/mnemo/internal/ai"
	"github.com/mnemo-app/mnemo/internal/media"
	"github.com/mnemo-app/mnemo/internal/observe"
	"github.com/mnemo-app/mnemo/pkg/journal"
	"github.com/mnemo-app/mnemo/pkg/vector"
)

// Default ranking parameters.
const (
	DefaultMinSimilarity = 0.3
	DefaultMaxResults    = 20
)

// Resolver yields per-owner AI providers. Implemented by [ai.Resolver].
type Resolver interface {
	Resolve(ctx context.Context, ownerID string) (*ai.Providers, error)
}

// Result is one search hit: the hydrated memory plus its similarity score.
type Result struct {
	journal.Memory
	Similarity float64
}

// Engine runs semantic searches. Create with [NewEngine]; safe for concurrent
// use.
type Engine struct {
	resolver Resolver
	store    journal.Store
	signer   media.Signer

	dims          int
	minSimilarity float64
	maxResults    int

	log     *slog.Logger
	metrics *observe.Metrics
}

// Option configures an [Engine].
type Option func(*Engine)

// WithDimensions sets the storage dimensionality queries are normalized to.
// Default: [vector.DefaultDimensions].
func WithDimensions(dims int) Option {
	return func(e *Engine) { e.dims = dims }
}

// WithRanking overrides the similarity threshold and result cap. Zero values
// keep the defaults.
func WithRanking(minSimilarity float64, maxResults int) Option {
	return func(e *Engine) {
		if minSimilarity > 0 {
			e.minSimilarity = minSimilarity
		}
		if maxResults > 0 {
			e.maxResults = maxResults
		}
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a search engine over the given resolver, store, and media
// signer. Pass [media.NoSigner] when no object storage is configured.
func NewEngine(resolver Resolver, store journal.Store, signer media.Signer, opts ...Option) *Engine {
	e := &Engine{
		resolver:      resolver,
		store:         store,
		signer:        signer,
		dims:          vector.DefaultDimensions,
		minSimilarity: DefaultMinSimilarity,
		maxResults:    DefaultMaxResults,
		log:           slog.Default(),
		metrics:       observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns the owner's memories most similar to the query, best match
// first. Owners without a configured AI backend get an empty result, not an
// error; only embedded memories can match, so recently written entries may be
// invisible until backfill catches up.
func (e *Engine) Search(ctx context.Context, ownerID, query string) ([]Result, error) {
	start := time.Now()
	defer func() {
		e.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	}()

	providers, err := e.resolver.Resolve(ctx, ownerID)
	if errors.Is(err, ai.ErrNoProvider) {
		e.log.Debug("search skipped, no provider", "owner", ownerID)
		return []Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	embedding, err := providers.Embeddings.Embed(ctx, query)
	if err != nil {
		e.metrics.RecordProviderError(ctx, providers.Embeddings.ModelID(), "embed")
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	e.metrics.RecordProviderRequest(ctx, providers.Embeddings.ModelID(), "embed", "ok")
	embedding = vector.Normalize(embedding, e.dims)

	matches, err := e.store.Match(ctx, ownerID, embedding, e.minSimilarity, e.maxResults)
	if err != nil {
		return nil, fmt.Errorf("search: match: %w", err)
	}
	if len(matches) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(matches))
	similarity := make(map[string]float64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		similarity[m.ID] = m.Similarity
	}

	memories, err := e.store.GetByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("search: hydrate results: %w", err)
	}

	// Media URLs are best-effort: a broken object store should not take
	// search down with it.
	if paths := media.CollectPaths(memories); len(paths) > 0 {
		urls, err := e.signer.SignURLs(ctx, paths)
		if err != nil {
			e.log.Warn("media URL signing failed", "owner", ownerID, "error", err)
		} else {
			media.FillURLs(memories, urls)
		}
	}

	results := make([]Result, 0, len(memories))
	for _, m := range memories {
		results = append(results, Result{Memory: m, Similarity: similarity[m.ID]})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	e.log.Debug("search complete",
		"owner", ownerID, "results", len(results), "elapsed", time.Since(start))
	return results, nil
}
