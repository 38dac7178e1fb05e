package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/courtroom/internal/app"
	"github.com/MrWong99/courtroom/internal/config"
	"github.com/MrWong99/courtroom/internal/health"
	"github.com/MrWong99/courtroom/internal/matcher"
	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/internal/resilience"
	"github.com/MrWong99/courtroom/internal/similarity"
	"github.com/MrWong99/courtroom/internal/similarity/pgindex"
	"github.com/MrWong99/courtroom/internal/tagger"
)

// env is what every subcommand builds on: the loaded config, the logger's
// level, metrics, providers and the case service.
type env struct {
	cfg       *config.Config
	level     *slog.LevelVar
	metrics   *observe.Metrics
	providers providers
	index     *pgindex.Index
	svc       *app.Service

	closers []func()
}

// newRegistry is swapped by tests to inject mock providers.
var newRegistry = func(cfg *config.Config) *config.Registry {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Voice.SampleRate)
	return reg
}

// setup loads the config, installs the logger, creates providers and
// builds the case service. overrides adjust the loaded config, e.g. from
// flags. The caller must call close.
func setup(cmd *cobra.Command, overrides ...func(*config.Config)) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	e := &env{cfg: cfg, level: new(slog.LevelVar)}
	e.level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), e.level))

	if cfg.Server.MetricsAddr != "" {
		shutdown, err := observe.InitProvider(cmd.Context(), observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		e.closers = append(e.closers, func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		})
	}
	e.metrics = observe.DefaultMetrics()

	if e.providers, err = buildProviders(cfg, newRegistry(cfg)); err != nil {
		e.close()
		return nil, err
	}

	if e.svc, err = app.NewService(cmd.Context(), cfg, e.serviceOptions(cmd.Context())...); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

// serviceOptions turns the optional providers into matcher collaborators.
func (e *env) serviceOptions(ctx context.Context) []app.ServiceOption {
	opts := []app.ServiceOption{
		app.WithMetrics(e.metrics),
		app.WithLogLevel(e.level),
	}
	if e.providers.LLM != nil {
		topts := []tagger.Option{tagger.WithMetrics(e.metrics, e.cfg.Providers.LLM.Name)}
		if temp, ok := optFloat(e.cfg.Providers.LLM.Options, "temperature"); ok {
			topts = append(topts, tagger.WithTemperature(temp))
		}
		t := tagger.New(e.providers.LLM, topts...)
		opts = append(opts, app.WithTagger(resilience.GuardTagger(t, e.breaker("tagger"))))
	}
	if e.providers.Embeddings != nil {
		opts = append(opts, app.WithSimilarity(resilience.GuardSimilarity(e.similarityModel(ctx), e.breaker("similarity"))))
	}
	return opts
}

func (e *env) breaker(name string) *resilience.Breaker {
	return resilience.NewBreaker(resilience.Config{
		Name:        name,
		MaxFailures: e.cfg.Resilience.MaxFailures,
		Cooldown:    e.cfg.Resilience.Cooldown,
	})
}

// similarityModel prefers the pgvector index when a DSN is configured and
// falls back to in-memory vectors when the database is unreachable.
func (e *env) similarityModel(ctx context.Context) matcher.SimilarityModel {
	p := e.providers.Embeddings
	if dsn := e.cfg.Index.PostgresDSN; dsn != "" {
		ix, err := e.openIndex(ctx)
		if err == nil {
			return ix
		}
		slog.Warn("synonym index unavailable, using in-memory vectors", "err", err)
	}
	return similarity.NewEmbeddingModel(p, similarity.WithMetrics(e.metrics, e.cfg.Providers.Embeddings.Name))
}

// openIndex connects to the pgvector index once and registers its cleanup.
func (e *env) openIndex(ctx context.Context) (*pgindex.Index, error) {
	if e.index != nil {
		return e.index, nil
	}
	p := e.providers.Embeddings
	if want := e.cfg.Index.EmbeddingDimensions; p.Dimensions() != want {
		return nil, fmt.Errorf("index.embedding_dimensions is %d but model %q produces %d", want, p.ModelID(), p.Dimensions())
	}
	ix, err := pgindex.New(ctx, e.cfg.Index.PostgresDSN, p)
	if err != nil {
		return nil, err
	}
	e.index = ix
	e.closers = append(e.closers, ix.Close)
	return ix, nil
}

// checkers returns the readiness checks for everything setup built.
func (e *env) checkers() []health.Checker {
	cs := e.svc.Checkers()
	if e.index != nil {
		cs = append(cs, health.PingChecker("index", e.index))
	}
	return cs
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// loadConfig reads --config. When the flag was left at its default and the
// file does not exist, built-in defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := rootFlags.configPath
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.LoadFromReader(strings.NewReader(""))
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found", path)
	}
	return nil, err
}

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
