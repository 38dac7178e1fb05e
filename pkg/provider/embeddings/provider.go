// Package embeddings defines the Provider interface for text embedding
// backends.
//
// The simulator embeds crime synonyms and spoken statements to find the
// closest synonym when no literal match exists. Implementations must be safe
// for concurrent use.
package embeddings

import "context"

// Provider maps text to dense float32 vectors.
//
// Every vector from one Provider has length Dimensions(). Vectors from
// different providers or models must not be compared with each other.
type Provider interface {
	// Embed returns the vector for text. Text is passed through verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one request. The i-th vector belongs to
	// texts[i]. On error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed vector length of the model.
	Dimensions() int

	// ModelID identifies the model, e.g. "text-embedding-3-small". Cached
	// vectors are keyed by it.
	ModelID() string
}
