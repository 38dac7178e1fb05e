// Package verdict simulates the outcome of a case from the statutes matched
// against each side's statement.
//
// The win percentages are flavour rather than legal reasoning. They come from
// an [OddsPolicy] so callers can seed or fix them.
package verdict

import (
	"context"
	"strconv"
	"strings"

	"github.com/MrWong99/courtroom/internal/corpus"
	"github.com/MrWong99/courtroom/internal/observe"
)

// ReportLimit is the default number of citations per side shown in a report.
const ReportLimit = 5

// Matcher turns a statement into result lines. *matcher.Matcher satisfies it.
type Matcher interface {
	Match(ctx context.Context, query string, c corpus.Corpus) []string
}

// Verdict is the outcome of one simulated case. ProsecutionWinPct plus
// DefenseWinPct is always 100.
type Verdict struct {
	ProsecutionStatement string
	DefenseStatement     string

	// ProsecutionMatches and DefenseMatches hold the complete matcher output.
	// Report truncates them.
	ProsecutionMatches []string
	DefenseMatches     []string

	ProsecutionWinPct int
	DefenseWinPct     int

	limit int
}

// Option configures a [Simulator].
type Option func(*Simulator)

// WithOdds replaces the default random 40–80 policy.
func WithOdds(p OddsPolicy) Option {
	return func(s *Simulator) { s.odds = p }
}

// WithReportLimit sets how many citations per side the report shows.
// Values below 1 keep [ReportLimit].
func WithReportLimit(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithMetrics counts rendered verdicts.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// Simulator runs the matcher on both sides and splits the odds.
type Simulator struct {
	matcher Matcher
	odds    OddsPolicy
	limit   int
	metrics *observe.Metrics
}

// New returns a Simulator over m. Without [WithOdds] it draws the
// prosecution's chance uniformly from [DefaultMinPct, DefaultMaxPct].
func New(m Matcher, opts ...Option) *Simulator {
	s := &Simulator{matcher: m, limit: ReportLimit}
	for _, o := range opts {
		o(s)
	}
	if s.odds == nil {
		// The default range is always valid.
		s.odds, _ = NewRandomOdds(DefaultMinPct, DefaultMaxPct)
	}
	return s
}

// Simulate matches both statements against c and draws the odds. Empty
// statements are passed to the matcher unchanged.
func (s *Simulator) Simulate(ctx context.Context, prosecution, defense string, c corpus.Corpus) Verdict {
	ctx, span := observe.StartSpan(ctx, "verdict.Simulate")
	defer span.End()

	pct := clampPct(s.odds.ProsecutionPct())
	v := Verdict{
		ProsecutionStatement: prosecution,
		DefenseStatement:     defense,
		ProsecutionMatches:   s.matcher.Match(ctx, prosecution, c),
		DefenseMatches:       s.matcher.Match(ctx, defense, c),
		ProsecutionWinPct:    pct,
		DefenseWinPct:        100 - pct,
		limit:                s.limit,
	}
	if s.metrics != nil {
		s.metrics.Verdicts.Add(ctx, 1)
	}
	observe.Logger(ctx).Debug("verdict: simulated",
		"prosecution_matches", len(v.ProsecutionMatches),
		"defense_matches", len(v.DefenseMatches),
		"prosecution_pct", v.ProsecutionWinPct)
	return v
}

func clampPct(p int) int {
	return min(max(p, 0), 100)
}

// Truncated returns at most the first n entries of lines.
func Truncated(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[:n]
}

// Report renders the verdict as display and speech text.
func (v Verdict) Report() string {
	limit := v.limit
	if limit <= 0 {
		limit = ReportLimit
	}

	var b strings.Builder
	b.WriteString("Case Simulation Result:\n\n")
	writeSide(&b, "Prosecution", v.ProsecutionStatement, Truncated(v.ProsecutionMatches, limit))
	b.WriteString("\n")
	writeSide(&b, "Defense", v.DefenseStatement, Truncated(v.DefenseMatches, limit))
	b.WriteString("\nPossible Ruling:\n")
	b.WriteString("- If prosecution proves case → Win chance: " + strconv.Itoa(v.ProsecutionWinPct) + "%\n")
	b.WriteString("- If defense proves case → Win chance: " + strconv.Itoa(v.DefenseWinPct) + "%")
	return b.String()
}

func writeSide(b *strings.Builder, side, statement string, laws []string) {
	b.WriteString(side + " Evidence: " + statement + "\n")
	b.WriteString("Relevant Laws/Sections Found:\n")
	for _, l := range laws {
		b.WriteString("- " + l + "\n")
	}
}
