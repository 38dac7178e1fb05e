package lexicon_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/courtroom/internal/lexicon"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	lx := lexicon.Default()
	if lx.Len() != 80 {
		t.Errorf("Len() = %d, want 80", lx.Len())
	}
	if got := lx.Entry(0).Category; got != "rape" {
		t.Errorf("first category = %q, want %q", got, "rape")
	}
	theft, ok := lx.Lookup("theft")
	if !ok {
		t.Fatal("Lookup(theft): not found")
	}
	want := []string{"IPC 378 - Theft", "IPC 379 - Punishment for theft"}
	if diff := cmp.Diff(want, theft.Citations); diff != "" {
		t.Errorf("theft citations mismatch (-want +got):\n%s", diff)
	}
	for _, e := range lx.Entries() {
		for _, s := range e.Synonyms {
			if s != strings.ToLower(s) {
				t.Errorf("category %s: synonym %q is not lowercase", e.Category, s)
			}
		}
	}
}

func TestMatchSynonyms(t *testing.T) {
	t.Parallel()

	lx := lexicon.Default()
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "theft from stole",
			query: "He STOLE my bike",
			want:  []string{"IPC 378 - Theft", "IPC 379 - Punishment for theft"},
		},
		{
			name:  "category contributes once despite several synonyms",
			query: "theft by a pickpocket",
			want:  []string{"IPC 378 - Theft", "IPC 379 - Punishment for theft"},
		},
		{
			name:  "multiple categories in declared order",
			query: "they robbed and tried to kill him",
			want: []string{
				"IPC 302 - Punishment for murder",
				"IPC 390 - Robbery", "IPC 392 - Punishment for robbery",
				"IPC 307 - Attempt to murder",
			},
		},
		{
			name:  "nothing",
			query: "a quiet afternoon",
			want:  nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := lx.MatchSynonyms(tc.query)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("MatchSynonyms(%q) mismatch (-want +got):\n%s", tc.query, diff)
			}
		})
	}
}

func TestParse_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "no crimes",
			input:   "crimes: []\n",
			wantErr: "at least one crime category",
		},
		{
			name: "empty synonyms",
			input: `crimes:
  - category: theft
    synonyms: []
    citations: ["IPC 378 - Theft"]
`,
			wantErr: "synonyms must not be empty",
		},
		{
			name: "empty citations",
			input: `crimes:
  - category: theft
    synonyms: ["stole"]
    citations: []
`,
			wantErr: "citations must not be empty",
		},
		{
			name: "duplicate category",
			input: `crimes:
  - category: theft
    synonyms: ["stole"]
    citations: ["IPC 378 - Theft"]
  - category: theft
    synonyms: ["pickpocket"]
    citations: ["IPC 379 - Punishment for theft"]
`,
			wantErr: "duplicate category",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := lexicon.Parse(strings.NewReader(tc.input))
			if err == nil {
				t.Fatal("Parse: expected error, got nil")
			}
			if !errors.Is(err, lexicon.ErrInvalid) {
				t.Errorf("Parse error %v does not wrap ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Parse error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := lexicon.Parse(strings.NewReader("crimez: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_LowercasesSynonyms(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	content := `crimes:
  - category: identity_theft
    synonyms: ["Fake Aadhaar", "  used my details "]
    citations: ["IT Act 66C - Identity theft"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	lx, err := lexicon.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"fake aadhaar", "used my details"}
	if diff := cmp.Diff(want, lx.PhraseTexts()); diff != "" {
		t.Errorf("phrases mismatch (-want +got):\n%s", diff)
	}
	for _, p := range lx.Phrases() {
		if p.Category != 0 {
			t.Errorf("phrase %q category = %d, want 0", p.Text, p.Category)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := lexicon.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
