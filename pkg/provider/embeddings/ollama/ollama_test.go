package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/courtroom/pkg/provider/embeddings/ollama"
)

// embedServer answers /api/embed with one vector per input whose single
// component is the input's length.
func embedServer(t *testing.T, wantModel string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.Model != wantModel {
			t.Errorf("model = %q, want %q", req.Model, wantModel)
		}
		vecs := make([][]float32, len(req.Input))
		for i, in := range req.Input {
			vecs[i] = []float32{float32(len(in)), 0, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": vecs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	p, err := ollama.New("", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != ollama.DefaultModel {
		t.Errorf("ModelID() = %q, want %q", p.ModelID(), ollama.DefaultModel)
	}
	if p.Dimensions() != 384 {
		t.Errorf("Dimensions() = %d, want 384", p.Dimensions())
	}
}

func TestEmbedAndBatch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := embedServer(t, "all-minilm", &calls)
	p, err := ollama.New(srv.URL+"/", "all-minilm")
	if err != nil {
		t.Fatal(err)
	}

	vec, err := p.Embed(context.Background(), "stole")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vec[0] != 5 {
		t.Errorf("Embed vector = %v", vec)
	}

	vecs, err := p.EmbedBatch(context.Background(), []string{"kill", "chain snatching"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 4 || vecs[1][0] != 15 {
		t.Errorf("EmbedBatch = %v", vecs)
	}

	if _, err := p.EmbedBatch(context.Background(), nil); err != nil {
		t.Errorf("EmbedBatch(nil): %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server calls = %d, want 2", n)
	}
}

func TestDimensions_Probe(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := embedServer(t, "custom-embed", &calls)
	p, err := ollama.New(srv.URL, "custom-embed")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Dimensions(); got != 3 {
		t.Errorf("Dimensions() = %d, want 3", got)
	}
	_ = p.Dimensions()
	if n := calls.Load(); n != 1 {
		t.Errorf("probe calls = %d, want 1", n)
	}
}

func TestDimensions_Explicit(t *testing.T) {
	t.Parallel()

	p, err := ollama.New("http://127.0.0.1:1", "custom-embed", ollama.WithDimensions(512))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Dimensions(); got != 512 {
		t.Errorf("Dimensions() = %d, want 512", got)
	}
}

func TestEmbed_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	p, err := ollama.New(srv.URL, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Embed(context.Background(), "theft"); err == nil {
		t.Fatal("expected error for 404")
	}
}
