package corpus_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/courtroom/internal/corpus"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestReadCSVColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "header skipped and first column joined",
			content: "Article,Title\nArticle 14,Equality before law\nArticle 21,\"Protection of life, liberty\"\n",
			want:    "Article 14\nArticle 21",
		},
		{
			name:    "quoted first column with comma",
			content: "Text\n\"Right to equality, non-discrimination\",x\n",
			want:    "Right to equality, non-discrimination",
		},
		{
			name:    "utf8 bom",
			content: "\xef\xbb\xbfText\nPreamble\n",
			want:    "Preamble",
		},
		{
			name:    "windows-1252 fallback",
			content: "Text\nArticle 19 \x96 Freedom of speech\n",
			want:    "Article 19 – Freedom of speech",
		},
		{
			name:    "header only",
			content: "Text\n",
			want:    "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, t.TempDir(), "table.csv", tc.content)
			got, err := corpus.ReadCSVColumn(context.Background(), p)
			if err != nil {
				t.Fatalf("ReadCSVColumn: %v", err)
			}
			if got != tc.want {
				t.Errorf("ReadCSVColumn = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFileSource_Discovery(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "Constitution_of_India.csv", "Article\nArticle 21 Protection of life and personal liberty\n")
	writeFile(t, dir, "legal_index.csv", "Entry\nTheft see IPC 378\n")
	writeFile(t, dir, "indian_penal_code.txt", "378. Theft\n379. Punishment for theft\n")
	writeFile(t, dir, "notes.txt", "ignored")

	src := &corpus.FileSource{Dir: dir, IPC: "indian_penal_code.txt"}
	c, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Constitution != "Article 21 Protection of life and personal liberty" {
		t.Errorf("Constitution = %q", c.Constitution)
	}
	if c.Index != "Theft see IPC 378" {
		t.Errorf("Index = %q", c.Index)
	}
	if c.IPC != "378. Theft\n379. Punishment for theft\n" {
		t.Errorf("IPC = %q", c.IPC)
	}
	if c.Empty() {
		t.Error("Empty() = true, want false")
	}
}

func TestFileSource_MissingFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		src   func(dir string) *corpus.FileSource
	}{
		{
			name:  "no constitution",
			files: map[string]string{"index.csv": "h\nx\n", "ipc.pdf": ""},
			src:   func(dir string) *corpus.FileSource { return &corpus.FileSource{Dir: dir} },
		},
		{
			name:  "no index",
			files: map[string]string{"constitution.csv": "h\nx\n", "ipc.pdf": ""},
			src:   func(dir string) *corpus.FileSource { return &corpus.FileSource{Dir: dir} },
		},
		{
			name:  "no penal code",
			files: map[string]string{"constitution.csv": "h\nx\n", "index.csv": "h\nx\n"},
			src:   func(dir string) *corpus.FileSource { return &corpus.FileSource{Dir: dir} },
		},
		{
			name:  "explicit path missing",
			files: map[string]string{"constitution.csv": "h\nx\n", "index.csv": "h\nx\n"},
			src: func(dir string) *corpus.FileSource {
				return &corpus.FileSource{Dir: dir, IPC: "missing.pdf"}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			_, err := tc.src(dir).Load(context.Background())
			if !errors.Is(err, corpus.ErrNotFound) {
				t.Errorf("Load error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestReadPenalCode_PDF(t *testing.T) {
	t.Parallel()

	got, err := corpus.ReadPenalCode(context.Background(), filepath.Join("testdata", "penal_code.pdf"))
	if err != nil {
		t.Fatalf("ReadPenalCode: %v", err)
	}
	first := strings.Index(got, "378. Theft")
	second := strings.Index(got, "379. Punishment for theft")
	if first < 0 || second < 0 {
		t.Fatalf("ReadPenalCode = %q, want the text of both pages", got)
	}
	if second < first {
		t.Errorf("pages out of order in %q", got)
	}
	if between := got[first+len("378. Theft") : second]; !strings.Contains(between, "\n") {
		t.Errorf("pages not separated by a newline: %q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("last page not terminated by a newline: %q", got)
	}
}

func TestFileSource_PDF(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(filepath.Join("testdata", "penal_code.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeFile(t, dir, "constitution.csv", "h\nArticle 21\n")
	writeFile(t, dir, "index.csv", "h\nTheft see IPC 378\n")
	writeFile(t, dir, "ipc.pdf", string(raw))

	c, err := (&corpus.FileSource{Dir: dir}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(c.IPC, "378. Theft") || !strings.Contains(c.IPC, "379. Punishment for theft") {
		t.Errorf("IPC = %q, want both pages", c.IPC)
	}
}

func TestFileSource_CorruptPDF(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(filepath.Join("testdata", "penal_code.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		body string
	}{
		{name: "not a pdf", body: "378. Theft\n"},
		{name: "empty", body: ""},
		{name: "truncated", body: string(raw[:len(raw)/2])},
		{name: "bad xref offset", body: strings.Replace(string(raw), "startxref\n667", "startxref\n9999", 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			writeFile(t, dir, "constitution.csv", "h\nx\n")
			writeFile(t, dir, "index.csv", "h\nx\n")
			writeFile(t, dir, "ipc.pdf", tc.body)

			_, err := (&corpus.FileSource{Dir: dir}).Load(context.Background())
			if err == nil {
				t.Fatal("Load succeeded on a corrupt pdf")
			}
			if errors.Is(err, corpus.ErrNotFound) {
				t.Errorf("Load error = %v, want a read error", err)
			}
		})
	}
}

func TestCorpus_Sections(t *testing.T) {
	t.Parallel()

	c := corpus.Corpus{Constitution: "a\nb", Index: "c", IPC: ""}
	secs := c.Sections()
	wantLabels := []corpus.Label{corpus.LabelConstitution, corpus.LabelIndex, corpus.LabelIPC}
	for i, s := range secs {
		if s.Label != wantLabels[i] {
			t.Errorf("Sections()[%d].Label = %q, want %q", i, s.Label, wantLabels[i])
		}
	}
	if got := c.Lines(); got != 3 {
		t.Errorf("Lines() = %d, want 3", got)
	}
}

func TestStatic(t *testing.T) {
	t.Parallel()

	want := corpus.Corpus{IPC: "378. Theft"}
	got, err := corpus.Static(want).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}
