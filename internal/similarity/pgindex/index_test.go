package pgindex

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/MrWong99/courtroom/pkg/provider/embeddings/mock"
)

func TestDDL(t *testing.T) {
	t.Parallel()

	got := ddl(384)
	for _, want := range []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"embedding   vector(384)",
		"PRIMARY KEY (model, phrase)",
		"DROP INDEX IF EXISTS idx_synonym_embeddings_hnsw",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ddl missing %q", want)
		}
	}
	if strings.Contains(got, "USING hnsw") {
		t.Error("ddl still creates an approximate index")
	}
}

func TestNearest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		candidates []string
		distances  map[string]float64
		wantIdx    int
		wantDist   float64
	}{
		{
			name:       "smallest distance",
			candidates: []string{"murder", "stole", "fraud"},
			distances:  map[string]float64{"murder": 0.8, "stole": 0.05, "fraud": 0.9},
			wantIdx:    1,
			wantDist:   0.05,
		},
		{
			name:       "tie goes to the earlier candidate",
			candidates: []string{"robbed", "stole", "theft"},
			distances:  map[string]float64{"robbed": 0.3, "stole": 0.2, "theft": 0.2},
			wantIdx:    1,
			wantDist:   0.2,
		},
		{
			name:       "duplicate phrase keeps first position",
			candidates: []string{"self harm", "suicide", "self harm"},
			distances:  map[string]float64{"self harm": 0.1, "suicide": 0.4},
			wantIdx:    0,
			wantDist:   0.1,
		},
		{
			name:       "candidates without a row are skipped",
			candidates: []string{"kill", "stab"},
			distances:  map[string]float64{"stab": 0.5},
			wantIdx:    1,
			wantDist:   0.5,
		},
		{
			name:       "no rows",
			candidates: []string{"kill"},
			distances:  map[string]float64{},
			wantIdx:    -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx, dist := nearest(tt.candidates, tt.distances)
			if idx != tt.wantIdx {
				t.Fatalf("nearest index = %d, want %d", idx, tt.wantIdx)
			}
			if idx >= 0 && dist != tt.wantDist {
				t.Errorf("nearest distance = %v, want %v", dist, tt.wantDist)
			}
		})
	}
}

// newTestIndex connects to the database named by COURTROOM_TEST_POSTGRES_DSN
// and skips the test when it is unset.
func newTestIndex(t *testing.T, p *mock.Provider) *Index {
	t.Helper()
	dsn := os.Getenv("COURTROOM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("COURTROOM_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration test")
	}
	ix, err := New(context.Background(), dsn, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_, _ = ix.pool.Exec(context.Background(), `DELETE FROM synonym_embeddings WHERE model = $1`, ix.model)
		ix.Close()
	})
	return ix
}

func TestIndex_BestMatch(t *testing.T) {
	vectors := map[string][]float32{
		"stole":            {1, 0, 0},
		"murder":           {0, 1, 0},
		"fraud":            {0, 0, 1},
		"he took my phone": {0.9, 0.1, 0},
	}
	p := &mock.Provider{
		EmbedFunc:       func(text string) []float32 { return vectors[text] },
		DimensionsValue: 3,
		ModelIDValue:    "pgindex-test-" + t.Name(),
	}
	ix := newTestIndex(t, p)
	ctx := context.Background()

	candidates := []string{"murder", "stole", "fraud"}
	n, err := ix.Sync(ctx, candidates)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 3 {
		t.Errorf("Sync embedded %d phrases, want 3", n)
	}
	if n, _ := ix.Sync(ctx, candidates); n != 0 {
		t.Errorf("second Sync embedded %d phrases, want 0", n)
	}

	idx, score, err := ix.BestMatch(ctx, "he took my phone", candidates)
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if idx != 1 {
		t.Errorf("index = %d, want 1", idx)
	}
	if score < 0.9 {
		t.Errorf("score = %v, want >= 0.9", score)
	}
	if p.BatchCallCount() != 1 {
		t.Errorf("EmbedBatch calls = %d, want 1", p.BatchCallCount())
	}
}
