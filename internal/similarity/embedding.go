// Package similarity implements matcher.SimilarityModel on top of text
// embeddings.
//
// [EmbeddingModel] keeps candidate vectors in memory and scores them with
// cosine similarity. The pgindex subpackage stores them in PostgreSQL and lets
// pgvector find the nearest one.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/courtroom/internal/matcher"
	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/pkg/provider/embeddings"
)

// ErrNoCandidates is returned by BestMatch when the candidate list is empty.
var ErrNoCandidates = errors.New("similarity: no candidates")

var _ matcher.SimilarityModel = (*EmbeddingModel)(nil)

// EmbeddingModel scores a query against candidates by cosine similarity of
// their embeddings. Candidate vectors are computed once per phrase and cached
// for the lifetime of the model. Safe for concurrent use.
type EmbeddingModel struct {
	provider embeddings.Provider
	name     string
	metrics  *observe.Metrics

	mu    sync.Mutex
	cache map[string][]float32
}

// Option configures an [EmbeddingModel].
type Option func(*EmbeddingModel)

// WithMetrics records embedding requests under the given provider name.
func WithMetrics(m *observe.Metrics, providerName string) Option {
	return func(e *EmbeddingModel) {
		e.metrics = m
		e.name = providerName
	}
}

// NewEmbeddingModel returns a model backed by p.
func NewEmbeddingModel(p embeddings.Provider, opts ...Option) *EmbeddingModel {
	e := &EmbeddingModel{
		provider: p,
		name:     p.ModelID(),
		cache:    make(map[string][]float32),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Warm embeds every phrase not yet cached in a single batch request. Calling
// it at startup moves the cost out of the first match.
func (e *EmbeddingModel) Warm(ctx context.Context, phrases []string) error {
	_, err := e.vectors(ctx, phrases)
	return err
}

// Cached returns the number of cached phrase vectors.
func (e *EmbeddingModel) Cached() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// BestMatch implements matcher.SimilarityModel. Ties resolve to the lowest
// index.
func (e *EmbeddingModel) BestMatch(ctx context.Context, query string, candidates []string) (int, float64, error) {
	if len(candidates) == 0 {
		return -1, 0, ErrNoCandidates
	}

	vecs, err := e.vectors(ctx, candidates)
	if err != nil {
		return -1, 0, err
	}

	q, err := e.provider.Embed(ctx, query)
	e.record(ctx, err)
	if err != nil {
		return -1, 0, fmt.Errorf("similarity: embed query: %w", err)
	}

	best, bestScore := -1, math.Inf(-1)
	for i, v := range vecs {
		s := Cosine(q, v)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore, nil
}

// vectors returns one vector per phrase, embedding the uncached ones in a
// single batch.
func (e *EmbeddingModel) vectors(ctx context.Context, phrases []string) ([][]float32, error) {
	e.mu.Lock()
	var missing []string
	seen := make(map[string]bool)
	for _, p := range phrases {
		if _, ok := e.cache[p]; !ok && !seen[p] {
			missing = append(missing, p)
			seen[p] = true
		}
	}
	e.mu.Unlock()

	if len(missing) > 0 {
		vecs, err := e.provider.EmbedBatch(ctx, missing)
		e.record(ctx, err)
		if err != nil {
			return nil, fmt.Errorf("similarity: embed %d candidates: %w", len(missing), err)
		}
		if len(vecs) != len(missing) {
			return nil, fmt.Errorf("similarity: embed candidates: got %d vectors for %d phrases", len(vecs), len(missing))
		}
		e.mu.Lock()
		for i, p := range missing {
			e.cache[p] = vecs[i]
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]float32, len(phrases))
	for i, p := range phrases {
		out[i] = e.cache[p]
	}
	return out, nil
}

func (e *EmbeddingModel) record(ctx context.Context, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		e.metrics.RecordProviderError(ctx, e.name, "embeddings")
	}
	e.metrics.RecordProviderRequest(ctx, e.name, "embeddings", status)
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different length or with zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
