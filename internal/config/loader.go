package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/courtroom/internal/voice"
	"github.com/MrWong99/courtroom/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind. [Validate]
// warns about names outside this list.
var ValidProviderNames = map[string][]string{
	"stt":        {"deepgram", "whisper"},
	"tts":        {"elevenlabs", "coqui"},
	"embeddings": {"openai", "ollama"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads and validates the YAML file at path. Defaults are applied
// before validation.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates. An
// empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent and returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if t := cfg.Matcher.SimilarityThreshold; t < -1 || t > 1 {
		errs = append(errs, fmt.Errorf("matcher.similarity_threshold %.2f is out of range [-1, 1]", t))
	}
	for i, et := range cfg.Matcher.EntityTypes {
		if !types.EntityType(et).IsValid() {
			errs = append(errs, fmt.Errorf("matcher.entity_types[%d] %q is not a known entity type", i, et))
		}
	}

	sim := cfg.Simulation
	if sim.MinProsecutionPct < 0 || sim.MaxProsecutionPct > 100 || sim.MinProsecutionPct > sim.MaxProsecutionPct {
		errs = append(errs, fmt.Errorf("simulation: prosecution range [%d, %d] must satisfy 0 <= min <= max <= 100",
			sim.MinProsecutionPct, sim.MaxProsecutionPct))
	}
	if sim.ReportLimit < 0 {
		errs = append(errs, fmt.Errorf("simulation.report_limit %d must not be negative", sim.ReportLimit))
	}

	if cfg.Voice.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("voice.sample_rate %d must be positive", cfg.Voice.SampleRate))
	}
	if cfg.Voice.ListenTimeout < 0 {
		errs = append(errs, fmt.Errorf("voice.listen_timeout %s must be positive", cfg.Voice.ListenTimeout))
	}
	if f := cfg.Voice.SpeedFactor; f != 0 && (f < 0.5 || f > 2.0) {
		errs = append(errs, fmt.Errorf("voice.speed_factor %.2f is out of range [0.5, 2.0]", f))
	}
	if cfg.Voice.DefaultLanguage != "" {
		if _, ok := voice.LookupLanguage(cfg.Voice.DefaultLanguage); !ok {
			errs = append(errs, fmt.Errorf("voice.default_language %q is not supported", cfg.Voice.DefaultLanguage))
		}
	}

	if cfg.Providers.Embeddings.Name == "" && cfg.Index.PostgresDSN != "" {
		slog.Warn("index.postgres_dsn is set but providers.embeddings is not; the semantic index cannot be used")
	}
	if cfg.Index.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("index.embedding_dimensions %d must be positive", cfg.Index.EmbeddingDimensions))
	}

	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must be positive", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("resilience.cooldown %s must be positive", cfg.Resilience.Cooldown))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not listed in
// [ValidProviderNames] for kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
