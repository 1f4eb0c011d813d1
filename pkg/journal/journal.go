// Package journal defines the domain model and storage contracts for the
// mnemo journaling service.
//
// A journal is a per-owner collection of [Memory] records — free-form text
// entries with optional tags and media attachments. Each memory may carry a
// vector embedding used for semantic search; the embedding is absent until
// computed, recomputed when the content changes, and cleared wholesale when
// the owner switches embedding providers (vectors from different models are
// not comparable).
//
// Storage is split into four narrow interfaces so engines depend only on what
// they use: [Store] (memories and their embeddings), [TagStore] (tag
// vocabulary and links), [SettingsStore] (per-owner provider configuration),
// and [StatsStore] (aggregate read models). The postgres subpackage implements
// all four on a single pgx pool; the mock subpackage provides functional
// in-memory doubles for tests.
//
// Every implementation must be safe for concurrent use.
package journal

import (
	"context"
	"time"
)

// Provider names stored in [ProviderSettings.Provider]. An empty string means
// the owner has not enabled AI features.
const (
	ProviderNone   = ""
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Memory is a single journal entry.
type Memory struct {
	// ID is the unique identifier (a UUID).
	ID string

	// OwnerID identifies the owning user. Owners are opaque strings supplied
	// by the caller; authentication is outside this core.
	OwnerID string

	// Content is the entry text.
	Content string

	// Embedding is the stored vector representation of Content, already
	// normalized to the storage dimensionality. Nil means no embedding has
	// been computed yet (or it was invalidated by a provider change).
	Embedding []float32

	// Tags are the tags linked to this memory. Populated by hydrating reads
	// (Get, GetByIDs, List); nil on lighter-weight reads such as
	// ListUnembedded.
	Tags []Tag

	// Media are the media attachments. Populated like Tags. The URL field is
	// filled by the media signer, not by the store.
	Media []Media

	// CreatedAt is when the memory was captured.
	CreatedAt time.Time

	// UpdatedAt is when the memory was last modified.
	UpdatedAt time.Time
}

// Tag is a named label in an owner's tag vocabulary.
type Tag struct {
	ID   string
	Name string
}

// TagCount pairs a tag with the number of memories linked to it.
type TagCount struct {
	Tag
	Memories int
}

// Media is a photo or video attached to a memory. The binary lives in object
// storage under StoragePath; URL is a time-limited signed URL filled in at
// read time.
type Media struct {
	ID          string
	Type        string // "photo" or "video"
	StoragePath string
	URL         string
}

// Match is a single nearest-neighbour result from [Store.Match].
type Match struct {
	// ID is the matched memory's ID.
	ID string

	// Similarity is a cosine similarity score in [0, 1]; higher is more
	// similar.
	Similarity float64
}

// ProviderSettings is an owner's AI provider configuration. At most one row
// exists per owner; [SettingsStore.SaveSettings] upserts.
type ProviderSettings struct {
	OwnerID string

	// Provider selects the backend: ProviderOpenAI, ProviderOllama, or
	// ProviderNone.
	Provider string

	// OpenAIAPIKey is the owner's own API key, used when Provider is
	// ProviderOpenAI.
	OpenAIAPIKey string

	// OllamaBaseURL is the owner's Ollama server address, used when Provider
	// is ProviderOllama.
	OllamaBaseURL string

	// OllamaEmbeddingModel overrides the default embedding model
	// ("nomic-embed-text") for the Ollama backend.
	OllamaEmbeddingModel string

	// OllamaChatModel overrides the default chat model ("llama3.2") for the
	// Ollama backend.
	OllamaChatModel string

	// EmbeddingDimensions records the native width of the chosen embedding
	// model. Informational: stored vectors are always normalized to the
	// storage column width regardless.
	EmbeddingDimensions int

	UpdatedAt time.Time
}

// Stats is the aggregate read model behind the stats view.
type Stats struct {
	TotalMemories  int
	TaggedMemories int
	FirstMemory    time.Time
	LastMemory     time.Time
	TopTags        []TagCount
}

// CalendarDay reports how many memories were captured on one day of a month.
type CalendarDay struct {
	Day   int
	Count int
}

// ListOpts refines [Store.List]. All non-zero fields are applied as AND
// conditions; results are always newest-first.
type ListOpts struct {
	// Query restricts results to memories whose content matches this keyword
	// query (full-text search).
	Query string

	// Tag restricts results to memories linked to a tag with this name.
	Tag string

	// Limit caps the number of results. A value of 0 means the implementation
	// may apply its own default.
	Limit int
}

// Store is the primary storage contract for memories and their embeddings.
type Store interface {
	// Create inserts a new memory owned by ownerID and returns it. The
	// embedding starts absent; computing it is the caller's (best-effort)
	// concern.
	Create(ctx context.Context, ownerID, content string) (*Memory, error)

	// Get returns the memory with the given id, hydrated with tags and media.
	// Returns (nil, nil) when no such memory exists for ownerID.
	Get(ctx context.Context, ownerID, id string) (*Memory, error)

	// GetByIDs returns the memories with the given ids, hydrated with tags and
	// media, in one batched round of queries (never one query per id). IDs not
	// owned by ownerID or not present are silently omitted; result order is
	// unspecified.
	GetByIDs(ctx context.Context, ownerID string, ids []string) ([]Memory, error)

	// List returns memories newest-first, refined by opts, hydrated with tags
	// and media. Returns an empty (non-nil) slice when nothing matches.
	List(ctx context.Context, ownerID string, opts ListOpts) ([]Memory, error)

	// UpdateContent replaces the memory's content, refreshes UpdatedAt, and
	// clears the stored embedding in the same statement — the old vector
	// described the old text. The record becomes eligible for backfill until
	// the caller recomputes the embedding.
	// Returns an error when the memory does not exist for ownerID.
	UpdateContent(ctx context.Context, ownerID, id, content string) error

	// Delete removes the memory and, via cascade, its tag links and media
	// rows. Deleting a non-existent memory is not an error.
	Delete(ctx context.Context, ownerID, id string) error

	// SetEmbedding stores an embedding for the memory as a single-field
	// atomic update. The vector must already have the storage dimensionality.
	SetEmbedding(ctx context.Context, ownerID, id string, embedding []float32) error

	// ClearEmbeddings removes the embeddings of all of ownerID's memories and
	// returns how many were cleared. Called when the owner switches providers.
	ClearEmbeddings(ctx context.Context, ownerID string) (int64, error)

	// ListUnembedded returns up to limit memories lacking an embedding,
	// ordered oldest-created-first, without tags or media hydration.
	// Returns an empty (non-nil) slice when all memories are embedded.
	ListUnembedded(ctx context.Context, ownerID string, limit int) ([]Memory, error)

	// CountUnembedded returns the current number of ownerID's memories lacking
	// an embedding.
	CountUnembedded(ctx context.Context, ownerID string) (int, error)

	// CountMemories returns the total number of ownerID's memories.
	CountMemories(ctx context.Context, ownerID string) (int, error)

	// Match returns up to limit memories whose embeddings are nearest to the
	// query embedding, restricted to ownerID's records and to similarity >=
	// minSimilarity, sorted by similarity descending. Memories without an
	// embedding never match. Returns an empty (non-nil) slice when nothing
	// clears the threshold.
	Match(ctx context.Context, ownerID string, embedding []float32, minSimilarity float64, limit int) ([]Match, error)
}

// TagStore manages the tag vocabulary and memory-tag links.
type TagStore interface {
	// ListTags returns all of ownerID's tags with usage counts, ordered by
	// name. Returns an empty (non-nil) slice when the vocabulary is empty.
	ListTags(ctx context.Context, ownerID string) ([]TagCount, error)

	// EnsureTag returns the tag with the given name, creating it if absent.
	// Names are stored trimmed and lowercased.
	EnsureTag(ctx context.Context, ownerID, name string) (*Tag, error)

	// LinkTag associates a tag with a memory. Linking an already-linked pair
	// is a no-op, not an error.
	LinkTag(ctx context.Context, ownerID, memoryID, tagID string) error

	// TaggedMemoryIDs returns the set of ownerID's memory IDs that have at
	// least one tag.
	TaggedMemoryIDs(ctx context.Context, ownerID string) (map[string]bool, error)
}

// SettingsStore persists per-owner provider configuration.
type SettingsStore interface {
	// Settings returns the owner's settings, or (nil, nil) when none are
	// saved.
	Settings(ctx context.Context, ownerID string) (*ProviderSettings, error)

	// SaveSettings upserts the settings keyed by settings.OwnerID. Saving
	// never touches stored embeddings — invalidation after a provider switch
	// is the caller's explicit decision via [Store.ClearEmbeddings].
	SaveSettings(ctx context.Context, settings ProviderSettings) error
}

// StatsStore exposes aggregate read models for the stats and calendar views.
type StatsStore interface {
	// Stats returns aggregate counts for the owner's journal.
	Stats(ctx context.Context, ownerID string) (*Stats, error)

	// Calendar returns, for each day of the given month that has at least one
	// memory, the number of memories captured that day. Days without memories
	// are omitted.
	Calendar(ctx context.Context, ownerID string, year int, month time.Month) ([]CalendarDay, error)
}
