// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider maps journal entry text to a dense float32 vector used
// for semantic retrieval. Two backends exist: a hosted variant backed by the
// OpenAI API and a self-hosted variant backed by an Ollama server. Which one a
// caller gets is decided per owner by the resolver in internal/ai.
//
// Vectors from different providers (or different models on the same provider)
// live in unrelated spaces and must never be compared against each other. The
// journal enforces this by clearing stored embeddings whenever the active
// provider changes.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Embedding generation is the only network suspension point on the journal's
// write and search paths, so implementations must respect context
// cancellation on every call.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The text is
	// forwarded verbatim; no truncation or prompt formatting is applied.
	//
	// The returned vector has the model's native length, which may differ from
	// the journal's storage dimensionality — callers normalize it via
	// vector.Normalize before persisting or querying. Returns an error if the
	// request fails, the response is malformed, or ctx is cancelled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the native vector length produced by this provider's
	// model, constant for the lifetime of the instance. A return of 0 means the
	// dimension is unknown (e.g., an unrecognised self-hosted model).
	Dimensions() int

	// ModelID returns the provider-specific model identifier used for
	// embeddings (e.g., "text-embedding-3-small", "nomic-embed-text"). Used for
	// logging and metrics attributes.
	ModelID() string
}
