// Package corpus loads the reference texts the matcher searches: the
// constitution and index tables (CSV) and the penal code (PDF).
//
// A [Corpus] is built once at startup and is read-only afterwards. Loading
// failures are fatal for the caller; nothing here retries.
package corpus

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a corpus file cannot be located.
	ErrNotFound = errors.New("corpus: file not found")

	// ErrEncoding is returned when a text file is neither valid UTF-8 nor
	// decodable as Windows-1252.
	ErrEncoding = errors.New("corpus: unsupported encoding")
)

// Label names a corpus text in match results.
type Label string

const (
	LabelConstitution Label = "Constitution"
	LabelIndex        Label = "Index"
	LabelIPC          Label = "IPC"
)

// Corpus holds the three newline-joined reference texts.
type Corpus struct {
	Constitution string
	Index        string
	IPC          string
}

// Section is one labelled corpus text.
type Section struct {
	Label Label
	Text  string
}

// Sections returns the texts in search order: constitution, index, IPC.
func (c Corpus) Sections() []Section {
	return []Section{
		{Label: LabelConstitution, Text: c.Constitution},
		{Label: LabelIndex, Text: c.Index},
		{Label: LabelIPC, Text: c.IPC},
	}
}

// Empty reports whether all three texts are blank.
func (c Corpus) Empty() bool {
	return strings.TrimSpace(c.Constitution) == "" &&
		strings.TrimSpace(c.Index) == "" &&
		strings.TrimSpace(c.IPC) == ""
}

// Lines returns the number of lines across all three texts.
func (c Corpus) Lines() int {
	n := 0
	for _, s := range c.Sections() {
		if s.Text != "" {
			n += strings.Count(s.Text, "\n") + 1
		}
	}
	return n
}

// Source supplies a Corpus.
type Source interface {
	Load(ctx context.Context) (Corpus, error)
}

// Static is a Source that returns a fixed Corpus. Useful for tests and for
// callers that already hold the texts.
type Static Corpus

// Load returns the wrapped corpus.
func (s Static) Load(context.Context) (Corpus, error) { return Corpus(s), nil }

var (
	_ Source = Static{}
	_ Source = (*FileSource)(nil)
)
