package pgindex

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddl returns the schema with the vector dimension baked into the column
// type. Changing the dimension later requires dropping the table.
func ddl(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS synonym_embeddings (
    model       TEXT         NOT NULL,
    phrase      TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (model, phrase)
);

DROP INDEX IF EXISTS idx_synonym_embeddings_hnsw;
`, dimensions)
}

// Migrate creates the pgvector extension and the synonym table. Lookups scan
// only the few hundred rows of one model, so no approximate index is kept;
// one left by an older schema is dropped. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("pgindex: migrate: dimensions must be positive, got %d", dimensions)
	}
	if _, err := pool.Exec(ctx, ddl(dimensions)); err != nil {
		return fmt.Errorf("pgindex: migrate: %w", err)
	}
	return nil
}
