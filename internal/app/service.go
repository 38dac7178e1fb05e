package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/courtroom/internal/config"
	"github.com/MrWong99/courtroom/internal/corpus"
	"github.com/MrWong99/courtroom/internal/health"
	"github.com/MrWong99/courtroom/internal/lexicon"
	"github.com/MrWong99/courtroom/internal/matcher"
	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/internal/verdict"
	"github.com/MrWong99/courtroom/pkg/types"
)

// warmer is implemented by similarity models that precompute candidate
// vectors.
type warmer interface {
	Warm(ctx context.Context, phrases []string) error
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithTagger enables entity annotation in every matcher the service builds.
func WithTagger(t matcher.EntityTagger) ServiceOption {
	return func(s *Service) { s.tagger = t }
}

// WithSimilarity enables the semantic fallback in every matcher the service
// builds.
func WithSimilarity(m matcher.SimilarityModel) ServiceOption {
	return func(s *Service) { s.similarity = m }
}

// WithMetrics instruments the matcher and simulator.
func WithMetrics(m *observe.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogLevel lets [Service.Reload] adjust the running log level.
func WithLogLevel(lv *slog.LevelVar) ServiceOption {
	return func(s *Service) { s.level = lv }
}

// WithCorpusSource replaces the file-based corpus loader.
func WithCorpusSource(src corpus.Source) ServiceOption {
	return func(s *Service) {
		s.source = func(config.CorpusConfig) corpus.Source { return src }
	}
}

// state is everything derived from one config. It is replaced as a whole.
type state struct {
	cfg     *config.Config
	corpus  corpus.Corpus
	lexicon *lexicon.Lexicon
	matcher *matcher.Matcher
	sim     *verdict.Simulator
}

// Service owns the loaded corpus, the lexicon and the matcher and simulator
// built from them. A config reload swaps all of them atomically, so callers
// never see a matcher paired with the wrong corpus. Safe for concurrent use.
type Service struct {
	tagger     matcher.EntityTagger
	similarity matcher.SimilarityModel
	metrics    *observe.Metrics
	level      *slog.LevelVar
	source     func(config.CorpusConfig) corpus.Source

	corpusGate  *health.Gate
	lexiconGate *health.Gate

	reloadMu sync.Mutex
	state    atomic.Pointer[state]
}

// NewService loads the corpus and lexicon named by cfg and builds the
// matcher and simulator. Load failures are returned; the caller treats them
// as fatal.
func NewService(ctx context.Context, cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		source: func(cc config.CorpusConfig) corpus.Source {
			return &corpus.FileSource{
				Dir:          cc.Dir,
				Constitution: cc.Constitution,
				Index:        cc.Index,
				IPC:          cc.IPC,
			}
		},
		corpusGate:  health.NewGate("corpus"),
		lexiconGate: health.NewGate("lexicon"),
	}
	for _, o := range opts {
		o(s)
	}

	st, err := s.build(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	s.state.Store(st)
	s.corpusGate.Open()
	s.lexiconGate.Open()
	return s, nil
}

// build derives a state from cfg. Corpus and lexicon are reused from prev
// when their config sections did not change.
func (s *Service) build(ctx context.Context, cfg *config.Config, prev *state) (*state, error) {
	st := &state{cfg: cfg}

	if prev != nil && prev.cfg.Corpus == cfg.Corpus {
		st.corpus = prev.corpus
	} else {
		c, err := s.source(cfg.Corpus).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load corpus: %w", err)
		}
		st.corpus = c
	}

	if prev != nil && prev.cfg.Lexicon == cfg.Lexicon {
		st.lexicon = prev.lexicon
	} else {
		lx, err := loadLexicon(cfg.Lexicon)
		if err != nil {
			return nil, fmt.Errorf("app: load lexicon: %w", err)
		}
		st.lexicon = lx
		s.warm(ctx, lx)
	}

	st.matcher = matcher.New(st.lexicon, s.matcherOptions(cfg.Matcher)...)

	odds, err := buildOdds(cfg.Simulation)
	if err != nil {
		return nil, err
	}
	simOpts := []verdict.Option{
		verdict.WithOdds(odds),
		verdict.WithReportLimit(cfg.Simulation.ReportLimit),
	}
	if s.metrics != nil {
		simOpts = append(simOpts, verdict.WithMetrics(s.metrics))
	}
	st.sim = verdict.New(st.matcher, simOpts...)

	slog.Info("case service ready",
		"corpus_lines", st.corpus.Lines(),
		"categories", st.lexicon.Len(),
		"entities", st.matcher.HasTagger(),
		"semantic", st.matcher.HasSimilarity(),
	)
	return st, nil
}

func loadLexicon(lc config.LexiconConfig) (*lexicon.Lexicon, error) {
	if lc.Path == "" {
		return lexicon.Default(), nil
	}
	return lexicon.Load(lc.Path)
}

func (s *Service) matcherOptions(mc config.MatcherConfig) []matcher.Option {
	opts := []matcher.Option{
		matcher.WithThreshold(mc.SimilarityThreshold),
		matcher.WithLiteralEmptyQuery(mc.LiteralEmptyQuery),
	}
	if s.tagger != nil {
		opts = append(opts, matcher.WithTagger(s.tagger))
	}
	if s.similarity != nil {
		opts = append(opts, matcher.WithSimilarity(s.similarity))
	}
	if s.metrics != nil {
		opts = append(opts, matcher.WithMetrics(s.metrics))
	}
	if len(mc.EntityTypes) > 0 {
		ts := make([]types.EntityType, len(mc.EntityTypes))
		for i, t := range mc.EntityTypes {
			ts[i] = types.EntityType(t)
		}
		opts = append(opts, matcher.WithEntityTypes(ts...))
	}
	return opts
}

func buildOdds(sc config.SimulationConfig) (verdict.OddsPolicy, error) {
	if sc.Seed != nil {
		return verdict.NewSeededOdds(sc.MinProsecutionPct, sc.MaxProsecutionPct, *sc.Seed)
	}
	return verdict.NewRandomOdds(sc.MinProsecutionPct, sc.MaxProsecutionPct)
}

// warm precomputes synonym vectors. Failure only costs latency later.
func (s *Service) warm(ctx context.Context, lx *lexicon.Lexicon) {
	w, ok := s.similarity.(warmer)
	if !ok {
		return
	}
	if err := w.Warm(ctx, lx.PhraseTexts()); err != nil {
		slog.Warn("app: warming similarity model failed", "err", err)
	}
}

// Reload applies the hot-reloadable part of the difference between old and
// new. It is shaped to be a [config.Watcher] callback. A failed rebuild keeps
// the current state.
func (s *Service) Reload(ctx context.Context, old, new *config.Config) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	d := config.Diff(old, new)
	if d.LogLevelChanged && s.level != nil {
		s.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}

	cur := s.state.Load()
	if !d.NeedsRebuild() {
		next := *cur
		next.cfg = new
		s.state.Store(&next)
		return
	}

	st, err := s.build(ctx, new, cur)
	if err != nil {
		slog.Error("app: reload failed, keeping previous configuration", "err", err)
		return
	}
	s.state.Store(st)
}

// Match runs the matcher against the loaded corpus.
func (s *Service) Match(ctx context.Context, query string) []string {
	st := s.state.Load()
	return st.matcher.Match(ctx, query, st.corpus)
}

// Simulate runs the simulator against the loaded corpus.
func (s *Service) Simulate(ctx context.Context, prosecution, defense string) verdict.Verdict {
	st := s.state.Load()
	return st.sim.Simulate(ctx, prosecution, defense, st.corpus)
}

// Lexicon returns the lexicon in use.
func (s *Service) Lexicon() *lexicon.Lexicon { return s.state.Load().lexicon }

// Corpus returns the loaded corpus.
func (s *Service) Corpus() corpus.Corpus { return s.state.Load().corpus }

// Config returns the config the current state was built from.
func (s *Service) Config() *config.Config { return s.state.Load().cfg }

// Checkers returns the readiness checks for the loaded data.
func (s *Service) Checkers() []health.Checker {
	return []health.Checker{s.corpusGate.Checker(), s.lexiconGate.Checker()}
}
