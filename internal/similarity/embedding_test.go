package similarity_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/courtroom/internal/similarity"
	"github.com/MrWong99/courtroom/pkg/provider/embeddings/mock"
)

// vectors places a few phrases on fixed axes so similarities are predictable.
var vectors = map[string][]float32{
	"stole":            {1, 0, 0},
	"murder":           {0, 1, 0},
	"fraud":            {0, 0, 1},
	"he took my phone": {0.9, 0.1, 0},
	"unrelated":        {-1, 0, 0},
}

func newProvider() *mock.Provider {
	return &mock.Provider{
		EmbedFunc:       func(text string) []float32 { return vectors[text] },
		DimensionsValue: 3,
		ModelIDValue:    "axes",
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := similarity.Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBestMatch(t *testing.T) {
	t.Parallel()

	m := similarity.NewEmbeddingModel(newProvider())
	idx, score, err := m.BestMatch(context.Background(), "he took my phone", []string{"murder", "stole", "fraud"})
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if idx != 1 {
		t.Errorf("index = %d, want 1 (stole)", idx)
	}
	if score <= 0.6 || score > 1 {
		t.Errorf("score = %v, want in (0.6, 1]", score)
	}
}

func TestBestMatch_NegativeScores(t *testing.T) {
	t.Parallel()

	m := similarity.NewEmbeddingModel(newProvider())
	idx, score, err := m.BestMatch(context.Background(), "unrelated", []string{"stole"})
	if err != nil {
		t.Fatalf("BestMatch: %v", err)
	}
	if idx != 0 || score != -1 {
		t.Errorf("BestMatch = (%d, %v), want (0, -1)", idx, score)
	}
}

func TestBestMatch_CachesCandidates(t *testing.T) {
	t.Parallel()

	p := newProvider()
	m := similarity.NewEmbeddingModel(p)
	candidates := []string{"stole", "murder", "stole", "fraud"}

	if err := m.Warm(context.Background(), candidates); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	for range 3 {
		if _, _, err := m.BestMatch(context.Background(), "he took my phone", candidates); err != nil {
			t.Fatalf("BestMatch: %v", err)
		}
	}

	if n := p.BatchCallCount(); n != 1 {
		t.Errorf("EmbedBatch calls = %d, want 1", n)
	}
	if diff := cmp.Diff([]string{"stole", "murder", "fraud"}, p.EmbedBatchCalls[0].Texts); diff != "" {
		t.Errorf("batched texts mismatch (-want +got):\n%s", diff)
	}
	if m.Cached() != 3 {
		t.Errorf("Cached() = %d, want 3", m.Cached())
	}
	if len(p.EmbedCalls) != 3 {
		t.Errorf("query embeds = %d, want 3", len(p.EmbedCalls))
	}
}

func TestBestMatch_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no candidates", func(t *testing.T) {
		t.Parallel()
		m := similarity.NewEmbeddingModel(newProvider())
		if _, _, err := m.BestMatch(context.Background(), "x", nil); !errors.Is(err, similarity.ErrNoCandidates) {
			t.Errorf("err = %v, want ErrNoCandidates", err)
		}
	})

	t.Run("batch failure", func(t *testing.T) {
		t.Parallel()
		p := newProvider()
		p.EmbedBatchErr = errors.New("quota exceeded")
		m := similarity.NewEmbeddingModel(p)
		if _, _, err := m.BestMatch(context.Background(), "x", []string{"stole"}); err == nil {
			t.Fatal("expected error")
		}
		if m.Cached() != 0 {
			t.Errorf("Cached() = %d after failure, want 0", m.Cached())
		}
	})

	t.Run("query failure", func(t *testing.T) {
		t.Parallel()
		p := newProvider()
		p.EmbedErr = errors.New("timeout")
		m := similarity.NewEmbeddingModel(p)
		if _, _, err := m.BestMatch(context.Background(), "x", []string{"stole"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("short batch", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{EmbedBatchResult: [][]float32{{1}}}
		m := similarity.NewEmbeddingModel(p)
		if _, _, err := m.BestMatch(context.Background(), "x", []string{"a", "b"}); err == nil {
			t.Fatal("expected error for mismatched batch length")
		}
	})
}
