// Package pgindex stores crime synonym embeddings in PostgreSQL and finds the
// closest synonym to a statement with a pgvector cosine-distance search.
//
// Vectors are keyed by (model, phrase) so several embedding models can share
// one table. Synonyms are embedded once and reused across process restarts.
package pgindex

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/courtroom/internal/matcher"
	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/pkg/provider/embeddings"
)

var _ matcher.SimilarityModel = (*Index)(nil)

// Index implements matcher.SimilarityModel over a pgvector table. Safe for
// concurrent use.
type Index struct {
	pool     *pgxpool.Pool
	provider embeddings.Provider
	model    string

	mu     sync.Mutex
	synced map[string]bool
}

// New connects to dsn, registers the pgvector types on every connection and
// runs [Migrate] with the provider's vector dimension.
func New(ctx context.Context, dsn string, p embeddings.Provider) (*Index, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgindex: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgindex: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgindex: ping: %w", err)
	}
	if err := Migrate(ctx, pool, p.Dimensions()); err != nil {
		pool.Close()
		return nil, err
	}
	return &Index{
		pool:     pool,
		provider: p,
		model:    p.ModelID(),
		synced:   make(map[string]bool),
	}, nil
}

// Close releases the connection pool.
func (ix *Index) Close() { ix.pool.Close() }

// Ping checks the database connection. It backs the readiness probe.
func (ix *Index) Ping(ctx context.Context) error { return ix.pool.Ping(ctx) }

// Sync makes sure every phrase has a stored vector for the current model.
// Phrases already in the table are not re-embedded. It returns the number of
// phrases embedded by this call.
func (ix *Index) Sync(ctx context.Context, phrases []string) (int, error) {
	ix.mu.Lock()
	var unknown []string
	seen := make(map[string]bool)
	for _, p := range phrases {
		if !ix.synced[p] && !seen[p] {
			unknown = append(unknown, p)
			seen[p] = true
		}
	}
	ix.mu.Unlock()
	if len(unknown) == 0 {
		return 0, nil
	}

	rows, err := ix.pool.Query(ctx,
		`SELECT phrase FROM synonym_embeddings WHERE model = $1 AND phrase = ANY($2)`,
		ix.model, unknown)
	if err != nil {
		return 0, fmt.Errorf("pgindex: sync: query stored: %w", err)
	}
	stored, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("pgindex: sync: scan stored: %w", err)
	}
	have := make(map[string]bool, len(stored))
	for _, s := range stored {
		have[s] = true
	}

	var missing []string
	for _, p := range unknown {
		if !have[p] {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		vecs, err := ix.provider.EmbedBatch(ctx, missing)
		if err != nil {
			return 0, fmt.Errorf("pgindex: sync: embed: %w", err)
		}
		if len(vecs) != len(missing) {
			return 0, fmt.Errorf("pgindex: sync: got %d vectors for %d phrases", len(vecs), len(missing))
		}

		batch := &pgx.Batch{}
		for i, p := range missing {
			batch.Queue(`
				INSERT INTO synonym_embeddings (model, phrase, embedding)
				VALUES ($1, $2, $3)
				ON CONFLICT (model, phrase) DO UPDATE SET embedding = EXCLUDED.embedding`,
				ix.model, p, pgvector.NewVector(vecs[i]))
		}
		if err := ix.pool.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("pgindex: sync: insert: %w", err)
		}
		observe.Logger(ctx).Info("pgindex: stored synonym embeddings",
			"model", ix.model, "count", len(missing))
	}

	ix.mu.Lock()
	for _, p := range unknown {
		ix.synced[p] = true
	}
	ix.mu.Unlock()
	return len(missing), nil
}

// Warm is [Index.Sync] without the count.
func (ix *Index) Warm(ctx context.Context, phrases []string) error {
	_, err := ix.Sync(ctx, phrases)
	return err
}

// BestMatch implements matcher.SimilarityModel. The score is
// 1 - cosine distance, i.e. the cosine similarity. Every candidate's distance
// is fetched and ranked here, so ties resolve to the lowest candidate index.
func (ix *Index) BestMatch(ctx context.Context, query string, candidates []string) (int, float64, error) {
	if len(candidates) == 0 {
		return -1, 0, fmt.Errorf("pgindex: no candidates")
	}
	if _, err := ix.Sync(ctx, candidates); err != nil {
		return -1, 0, err
	}

	q, err := ix.provider.Embed(ctx, query)
	if err != nil {
		return -1, 0, fmt.Errorf("pgindex: embed query: %w", err)
	}

	rows, err := ix.pool.Query(ctx, `
		SELECT phrase, embedding <=> $1 AS distance
		FROM synonym_embeddings
		WHERE model = $2 AND phrase = ANY($3)`,
		pgvector.NewVector(q), ix.model, candidates,
	)
	if err != nil {
		return -1, 0, fmt.Errorf("pgindex: candidate distances: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByPos[phraseDistance])
	if err != nil {
		return -1, 0, fmt.Errorf("pgindex: candidate distances: %w", err)
	}
	distances := make(map[string]float64, len(found))
	for _, f := range found {
		distances[f.Phrase] = f.Distance
	}

	idx, dist := nearest(candidates, distances)
	if idx < 0 {
		return -1, 0, fmt.Errorf("pgindex: no stored embedding for any of %d candidates", len(candidates))
	}
	return idx, 1 - dist, nil
}

type phraseDistance struct {
	Phrase   string
	Distance float64
}

// nearest returns the position of the candidate with the smallest distance
// and that distance. Earlier candidates win ties; candidates without a
// distance are skipped. It returns -1 when none has one.
func nearest(candidates []string, distances map[string]float64) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, c := range candidates {
		d, ok := distances[c]
		if ok && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
