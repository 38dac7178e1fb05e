// Package lexicon holds the crime lexicon: an ordered table mapping crime
// categories to the synonym phrases that identify them and the statute
// citations they carry.
//
// A [Lexicon] is immutable after construction. Iteration order is the declared
// order of the source file and is significant: it decides the order in which
// citations appear in match results.
//
// Lexicon files are YAML:
//
//	crimes:
//	  - category: theft
//	    synonyms: ["theft", "stole", "pickpocket"]
//	    citations: ["IPC 378 - Theft", "IPC 379 - Punishment for theft"]
package lexicon

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalid is wrapped by every validation failure returned from [Parse].
var ErrInvalid = errors.New("lexicon: invalid")

// CrimeEntry is one crime category.
type CrimeEntry struct {
	// Category is the unique category key (e.g. "theft").
	Category string `yaml:"category"`

	// Synonyms are lowercase phrases whose presence in a statement selects
	// this category. Order is preserved.
	Synonyms []string `yaml:"synonyms"`

	// Citations are statute references in "<Act> <Section> - <description>"
	// form. Order is preserved.
	Citations []string `yaml:"citations"`
}

// Phrase is a single synonym paired with the position of its category.
// It is the candidate unit for semantic similarity.
type Phrase struct {
	Text     string
	Category int
}

type file struct {
	Crimes []CrimeEntry `yaml:"crimes"`
}

// Lexicon is an ordered, read-only set of crime entries. Safe for concurrent
// use.
type Lexicon struct {
	entries []CrimeEntry
	phrases []Phrase
}

// New builds a Lexicon from entries after validating them. Synonyms are
// lowercased and trimmed. The slice is copied.
func New(entries []CrimeEntry) (*Lexicon, error) {
	cp := make([]CrimeEntry, len(entries))
	for i, e := range entries {
		syn := make([]string, len(e.Synonyms))
		for j, s := range e.Synonyms {
			syn[j] = strings.ToLower(strings.TrimSpace(s))
		}
		cp[i] = CrimeEntry{
			Category:  strings.TrimSpace(e.Category),
			Synonyms:  syn,
			Citations: append([]string(nil), e.Citations...),
		}
	}
	if err := validate(cp); err != nil {
		return nil, err
	}

	lx := &Lexicon{entries: cp}
	for i, e := range cp {
		for _, s := range e.Synonyms {
			lx.phrases = append(lx.phrases, Phrase{Text: s, Category: i})
		}
	}
	return lx, nil
}

// Default returns the lexicon compiled into the binary.
func Default() *Lexicon {
	lx, err := Parse(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("lexicon: embedded default is broken: %v", err))
	}
	return lx
}

// Load reads a lexicon YAML file from disk.
func Load(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()

	lx, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon: parse %q: %w", path, err)
	}
	return lx, nil
}

// Parse decodes lexicon YAML from r. Unknown keys are rejected.
func Parse(r io.Reader) (*Lexicon, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("lexicon: decode yaml: %w", err)
	}
	return New(f.Crimes)
}

// Entries returns the crime entries in declared order. The returned slice
// must not be modified.
func (lx *Lexicon) Entries() []CrimeEntry { return lx.entries }

// Len returns the number of categories.
func (lx *Lexicon) Len() int { return len(lx.entries) }

// Entry returns the entry at position i.
func (lx *Lexicon) Entry(i int) CrimeEntry { return lx.entries[i] }

// Lookup returns the entry for category.
func (lx *Lexicon) Lookup(category string) (CrimeEntry, bool) {
	for _, e := range lx.entries {
		if e.Category == category {
			return e, true
		}
	}
	return CrimeEntry{}, false
}

// Phrases returns every synonym across all categories, flattened in declared
// order. A synonym listed under two categories appears twice. The returned
// slice must not be modified.
func (lx *Lexicon) Phrases() []Phrase { return lx.phrases }

// PhraseTexts returns the text of every phrase from [Lexicon.Phrases].
func (lx *Lexicon) PhraseTexts() []string {
	out := make([]string, len(lx.phrases))
	for i, p := range lx.phrases {
		out[i] = p.Text
	}
	return out
}

// MatchSynonyms returns the citations of every category that has at least one
// synonym occurring in query. Each category contributes at most once, in
// declared order.
func (lx *Lexicon) MatchSynonyms(query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, e := range lx.entries {
		for _, s := range e.Synonyms {
			if strings.Contains(q, s) {
				out = append(out, e.Citations...)
				break
			}
		}
	}
	return out
}

func validate(entries []CrimeEntry) error {
	var errs []error
	if len(entries) == 0 {
		errs = append(errs, errors.New("at least one crime category is required"))
	}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		prefix := fmt.Sprintf("crimes[%d]", i)
		if e.Category == "" {
			errs = append(errs, fmt.Errorf("%s: category must not be empty", prefix))
		} else if seen[e.Category] {
			errs = append(errs, fmt.Errorf("%s: duplicate category %q", prefix, e.Category))
		}
		seen[e.Category] = true

		if len(e.Synonyms) == 0 {
			errs = append(errs, fmt.Errorf("%s (%s): synonyms must not be empty", prefix, e.Category))
		}
		for j, s := range e.Synonyms {
			if s == "" {
				errs = append(errs, fmt.Errorf("%s (%s): synonyms[%d] is blank", prefix, e.Category, j))
			}
		}
		if len(e.Citations) == 0 {
			errs = append(errs, fmt.Errorf("%s (%s): citations must not be empty", prefix, e.Category))
		}
		for j, c := range e.Citations {
			if strings.TrimSpace(c) == "" {
				errs = append(errs, fmt.Errorf("%s (%s): citations[%d] is blank", prefix, e.Category, j))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
