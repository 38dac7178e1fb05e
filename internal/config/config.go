// Package config provides the configuration schema, loader, provider
// registry and hot-reload watcher for courtroom.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to its slog level. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultSimilarityThreshold = 0.6
	DefaultMinProsecutionPct   = 40
	DefaultMaxProsecutionPct   = 80
	DefaultReportLimit         = 5
	DefaultSampleRate          = 16000
	DefaultListenTimeout       = 15 * time.Second
	DefaultLanguage            = "english"
	DefaultEmbeddingDimensions = 1536
	DefaultBreakerFailures     = 3
	DefaultBreakerCooldown     = 30 * time.Second
)

// Config is the root configuration structure, loaded from YAML with [Load]
// or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Lexicon    LexiconConfig    `yaml:"lexicon"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Voice      VoiceConfig      `yaml:"voice"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Simulation SimulationConfig `yaml:"simulation"`
	Index      IndexConfig      `yaml:"index"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds logging and the optional observability listener.
type ServerConfig struct {
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr, when set, serves /metrics, /healthz and /readyz
	// (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`
}

// CorpusConfig locates the legal reference files. Empty paths are
// discovered in Dir.
type CorpusConfig struct {
	Dir          string `yaml:"dir"`
	Constitution string `yaml:"constitution"`
	Index        string `yaml:"index"`

	// IPC is the Indian Penal Code PDF, or a pre-extracted .txt file.
	IPC string `yaml:"ipc"`
}

// LexiconConfig selects the crime lexicon. An empty Path uses the built-in
// table.
type LexiconConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig selects a registered implementation per capability.
// An empty name leaves the capability absent.
type ProvidersConfig struct {
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`
	LLM        ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
// Name selects the factory in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "deepgram").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g. "nova-3").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// Option returns Options[key] as a string, or "" when absent.
func (e ProviderEntry) Option(key string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return ""
}

// VoiceConfig controls microphone capture and playback.
type VoiceConfig struct {
	// RecorderCommand captures raw PCM on stdout. Empty uses arecord.
	RecorderCommand []string `yaml:"recorder_command"`

	// PlayerCommand plays a WAV file given as its last argument. Empty
	// uses aplay.
	PlayerCommand []string `yaml:"player_command"`

	SampleRate    int           `yaml:"sample_rate"`
	ListenTimeout time.Duration `yaml:"listen_timeout"`

	// VoiceID is the TTS voice used for every utterance.
	VoiceID string `yaml:"voice_id"`

	// SpeedFactor adjusts speaking rate in [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`

	// DefaultLanguage is used when the spoken language choice is not
	// recognised.
	DefaultLanguage string `yaml:"default_language"`
}

// MatcherConfig tunes law matching.
type MatcherConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// LiteralEmptyQuery makes a blank statement match every corpus line
	// instead of short-circuiting to the no-match sentinel.
	LiteralEmptyQuery bool `yaml:"literal_empty_query"`

	// EntityTypes overrides the reported entity types.
	EntityTypes []string `yaml:"entity_types"`
}

// SimulationConfig tunes the outcome simulator.
type SimulationConfig struct {
	MinProsecutionPct int `yaml:"min_prosecution_pct"`
	MaxProsecutionPct int `yaml:"max_prosecution_pct"`

	// Seed makes the odds reproducible. Nil draws a random seed.
	Seed *uint64 `yaml:"seed"`

	ReportLimit int `yaml:"report_limit"`
}

// IndexConfig configures the pgvector synonym index.
type IndexConfig struct {
	PostgresDSN         string `yaml:"postgres_dsn"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
}

// ResilienceConfig tunes the circuit breakers around the optional entity
// tagger and similarity model. While a breaker is open the collaborator is
// skipped and matching degrades to the remaining strategies.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive failures that open a breaker.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long an open breaker rejects calls before letting a
	// probe through.
	Cooldown time.Duration `yaml:"cooldown"`
}

// ApplyDefaults fills zero values with the documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Matcher.SimilarityThreshold == 0 {
		cfg.Matcher.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Simulation.MinProsecutionPct == 0 && cfg.Simulation.MaxProsecutionPct == 0 {
		cfg.Simulation.MinProsecutionPct = DefaultMinProsecutionPct
		cfg.Simulation.MaxProsecutionPct = DefaultMaxProsecutionPct
	}
	if cfg.Simulation.ReportLimit == 0 {
		cfg.Simulation.ReportLimit = DefaultReportLimit
	}
	if cfg.Voice.SampleRate == 0 {
		cfg.Voice.SampleRate = DefaultSampleRate
	}
	if cfg.Voice.ListenTimeout == 0 {
		cfg.Voice.ListenTimeout = DefaultListenTimeout
	}
	if cfg.Voice.DefaultLanguage == "" {
		cfg.Voice.DefaultLanguage = DefaultLanguage
	}
	if cfg.Index.EmbeddingDimensions == 0 {
		cfg.Index.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.Resilience.MaxFailures == 0 {
		cfg.Resilience.MaxFailures = DefaultBreakerFailures
	}
	if cfg.Resilience.Cooldown == 0 {
		cfg.Resilience.Cooldown = DefaultBreakerCooldown
	}
}
