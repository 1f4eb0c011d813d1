// Package vector provides dimension normalization for embedding vectors.
//
// The journal's vector column has a fixed dimensionality chosen at schema
// creation time (1536 by default, matching OpenAI text-embedding-3-small).
// Self-hosted embedding models emit vectors of other lengths — nomic-embed-text
// produces 768, all-minilm produces 384 — and pgvector rejects inserts whose
// length differs from the column type. Normalize reconciles the two.
//
// The reconciliation is deliberately naive: shorter vectors are zero-padded on
// the right, longer vectors are truncated to the first target-length
// components. This assumes the leading dimensions of a smaller model's space
// are meaningful in isolation, which is an approximation rather than a
// principled projection — vectors from different models remain incomparable,
// which is why stored embeddings are cleared whenever the active provider
// changes.
package vector

// DefaultDimensions is the default target dimensionality, matching OpenAI
// text-embedding-3-small and the default vector column width.
const DefaultDimensions = 1536

// Normalize returns a vector of exactly dims components derived from v.
//
// When len(v) < dims the result is v right-padded with zeros; when
// len(v) > dims the result is v's first dims components; when the lengths
// already match, v is returned unchanged (no copy). An empty or nil input is
// legal and yields an all-zero vector, which is maximally dissimilar to every
// stored embedding under cosine similarity.
//
// dims must be positive; Normalize panics otherwise, since a non-positive
// target can only come from a programming error in configuration plumbing.
func Normalize(v []float32, dims int) []float32 {
	if dims <= 0 {
		panic("vector: non-positive target dimensionality")
	}
	switch {
	case len(v) == dims:
		return v
	case len(v) > dims:
		return v[:dims]
	default:
		out := make([]float32, dims)
		copy(out, v)
		return out
	}
}
