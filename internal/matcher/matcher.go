// Package matcher finds the statutes relevant to a free-text statement.
//
// [Matcher.Match] applies four strategies in a fixed order and concatenates
// their output without deduplication:
//
//  1. Corpus scan: every corpus line containing the statement
//     (case-insensitive) is emitted as "<Label>: <line>".
//  2. Synonym lookup: every crime category with a synonym occurring in the
//     statement contributes all of its citations.
//  3. Entity annotation: when an [EntityTagger] is configured, each detected
//     entity of a reported type is emitted as
//     "Context Entity Detected: <text> (<type>)".
//  4. Semantic fallback: when a [SimilarityModel] is configured, the single
//     closest synonym contributes its category's citations if its score is
//     strictly above the threshold.
//
// Strategies 3 and 4 are optional. Their failures are logged and skipped, so
// the matcher always degrades to strategies 1 and 2.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/courtroom/internal/corpus"
	"github.com/MrWong99/courtroom/internal/lexicon"
	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/pkg/types"
)

// NoMatch is the single result line returned when no strategy produced
// anything.
const NoMatch = "No direct law/article/section found."

// ErrUnavailable marks a collaborator error that means the collaborator is
// deliberately not being called right now. Such errors are logged at debug
// level only.
var ErrUnavailable = errors.New("matcher: collaborator unavailable")

// DefaultSimilarityThreshold is the cosine similarity a best-matching synonym
// must exceed to count.
const DefaultSimilarityThreshold = 0.6

// EntityTagger detects named entities in text.
type EntityTagger interface {
	Tag(ctx context.Context, text string) ([]types.Entity, error)
}

// SimilarityModel scores a query against candidate phrases and returns the
// index of the best candidate with its cosine similarity in [-1, 1].
type SimilarityModel interface {
	BestMatch(ctx context.Context, query string, candidates []string) (index int, score float64, err error)
}

// DefaultEntityTypes are the entity types reported by strategy 3.
var DefaultEntityTypes = []types.EntityType{
	types.EntityPerson,
	types.EntityOrganization,
	types.EntityMoney,
	types.EntityDate,
	types.EntityLocation,
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithTagger enables entity annotation. A nil tagger leaves it disabled.
func WithTagger(t EntityTagger) Option {
	return func(m *Matcher) { m.tagger = t }
}

// WithSimilarity enables the semantic fallback. A nil model leaves it
// disabled.
func WithSimilarity(s SimilarityModel) Option {
	return func(m *Matcher) { m.similarity = s }
}

// WithThreshold overrides [DefaultSimilarityThreshold].
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) { m.threshold = threshold }
}

// WithEntityTypes overrides [DefaultEntityTypes].
func WithEntityTypes(ts ...types.EntityType) Option {
	return func(m *Matcher) {
		m.entityTypes = make(map[types.EntityType]bool, len(ts))
		for _, t := range ts {
			m.entityTypes[t] = true
		}
	}
}

// WithLiteralEmptyQuery makes an empty or blank statement run through every
// strategy like any other text. Because the empty string is a substring of
// every line, this returns the whole corpus. By default such statements
// short-circuit to [NoMatch].
func WithLiteralEmptyQuery(literal bool) Option {
	return func(m *Matcher) { m.literalEmpty = literal }
}

// WithMetrics records match latency and per-strategy hit counts.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Matcher) { m.metrics = met }
}

// Matcher runs the four matching strategies against a lexicon. It is
// read-only after construction and safe for concurrent use as long as its
// collaborators are.
type Matcher struct {
	lexicon      *lexicon.Lexicon
	phrases      []string
	tagger       EntityTagger
	similarity   SimilarityModel
	threshold    float64
	entityTypes  map[types.EntityType]bool
	literalEmpty bool
	metrics      *observe.Metrics
}

// New creates a Matcher over lx.
func New(lx *lexicon.Lexicon, opts ...Option) *Matcher {
	m := &Matcher{
		lexicon:   lx,
		phrases:   lx.PhraseTexts(),
		threshold: DefaultSimilarityThreshold,
	}
	WithEntityTypes(DefaultEntityTypes...)(m)
	for _, o := range opts {
		o(m)
	}
	return m
}

// Lexicon returns the lexicon the matcher was built with.
func (m *Matcher) Lexicon() *lexicon.Lexicon { return m.lexicon }

// HasTagger reports whether entity annotation is enabled.
func (m *Matcher) HasTagger() bool { return m.tagger != nil }

// HasSimilarity reports whether the semantic fallback is enabled.
func (m *Matcher) HasSimilarity() bool { return m.similarity != nil }

// Match returns the result lines for query against c. The result is never
// empty: when nothing matched it is exactly []string{NoMatch}.
func (m *Matcher) Match(ctx context.Context, query string, c corpus.Corpus) []string {
	ctx, span := observe.StartSpan(ctx, "matcher.Match")
	defer span.End()
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.MatchDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	if !m.literalEmpty && strings.TrimSpace(query) == "" {
		m.record(ctx, observe.StrategyNone, 1)
		return []string{NoMatch}
	}

	var found []string

	corpusHits := ScanCorpus(query, c)
	m.record(ctx, observe.StrategyCorpus, len(corpusHits))
	found = append(found, corpusHits...)

	synonymHits := m.lexicon.MatchSynonyms(query)
	m.record(ctx, observe.StrategySynonym, len(synonymHits))
	found = append(found, synonymHits...)

	entityHits := m.annotateEntities(ctx, query)
	m.record(ctx, observe.StrategyEntity, len(entityHits))
	found = append(found, entityHits...)

	similarityHits := m.semanticFallback(ctx, query)
	m.record(ctx, observe.StrategySimilarity, len(similarityHits))
	found = append(found, similarityHits...)

	if len(found) == 0 {
		m.record(ctx, observe.StrategyNone, 1)
		return []string{NoMatch}
	}
	return found
}

// ScanCorpus returns "<Label>: <trimmed line>" for every corpus line whose
// lowercase form contains the lowercase query, in source then line order.
// Empty corpus texts contribute no lines.
func ScanCorpus(query string, c corpus.Corpus) []string {
	q := strings.ToLower(query)
	var out []string
	for _, sec := range c.Sections() {
		if sec.Text == "" {
			continue
		}
		for line := range strings.SplitSeq(sec.Text, "\n") {
			if strings.Contains(strings.ToLower(line), q) {
				out = append(out, string(sec.Label)+": "+strings.TrimSpace(line))
			}
		}
	}
	return out
}

// logSkip logs a collaborator failure at warn, or at debug when the
// collaborator is unavailable on purpose.
func logSkip(ctx context.Context, msg string, err error) {
	log := observe.Logger(ctx)
	if errors.Is(err, ErrUnavailable) {
		log.Debug(msg, "err", err)
		return
	}
	log.Warn(msg, "err", err)
}

func (m *Matcher) annotateEntities(ctx context.Context, query string) []string {
	if m.tagger == nil {
		return nil
	}
	ents, err := m.tagger.Tag(ctx, query)
	if err != nil {
		logSkip(ctx, "matcher: entity tagging failed, skipping", err)
		return nil
	}
	var out []string
	for _, e := range ents {
		if !m.entityTypes[e.Type] {
			continue
		}
		out = append(out, fmt.Sprintf("Context Entity Detected: %s (%s)", e.Text, e.Type))
	}
	return out
}

func (m *Matcher) semanticFallback(ctx context.Context, query string) []string {
	if m.similarity == nil || len(m.phrases) == 0 {
		return nil
	}
	idx, score, err := m.similarity.BestMatch(ctx, query, m.phrases)
	if err != nil {
		logSkip(ctx, "matcher: similarity lookup failed, skipping", err)
		return nil
	}
	if idx < 0 || idx >= len(m.phrases) {
		observe.Logger(ctx).Warn("matcher: similarity index out of range, skipping",
			"index", idx, "candidates", len(m.phrases))
		return nil
	}
	phrase := m.lexicon.Phrases()[idx]
	if score <= m.threshold {
		observe.Logger(ctx).Debug("matcher: best synonym below threshold",
			"synonym", phrase.Text, "score", score, "threshold", m.threshold)
		return nil
	}
	entry := m.lexicon.Entry(phrase.Category)
	observe.Logger(ctx).Debug("matcher: semantic match",
		"synonym", phrase.Text, "category", entry.Category, "score", score)
	return append([]string(nil), entry.Citations...)
}

func (m *Matcher) record(ctx context.Context, strategy string, n int) {
	if m.metrics != nil {
		m.metrics.RecordStrategyHits(ctx, strategy, n)
	}
}
