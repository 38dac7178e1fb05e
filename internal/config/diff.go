package config

import (
	"fmt"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MatcherChanged is set when threshold, empty-query policy or entity
	// types changed.
	MatcherChanged bool

	// SimulationChanged is set when the odds range, seed or report limit
	// changed.
	SimulationChanged bool

	// CorpusChanged is set when any corpus or lexicon path changed.
	CorpusChanged bool

	// RestartRequired names the sections whose changes are not applied
	// until restart.
	RestartRequired []string
}

// NeedsRebuild reports whether the corpus, matcher or simulator must be
// rebuilt to apply d. Log level and restart-required changes do not count.
func (d ConfigDiff) NeedsRebuild() bool {
	return d.MatcherChanged || d.SimulationChanged || d.CorpusChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	om, nm := old.Matcher, new.Matcher
	d.MatcherChanged = om.SimilarityThreshold != nm.SimilarityThreshold ||
		om.LiteralEmptyQuery != nm.LiteralEmptyQuery ||
		!slices.Equal(om.EntityTypes, nm.EntityTypes)

	oldSim, newSim := old.Simulation, new.Simulation
	d.SimulationChanged = oldSim.MinProsecutionPct != newSim.MinProsecutionPct ||
		oldSim.MaxProsecutionPct != newSim.MaxProsecutionPct ||
		oldSim.ReportLimit != newSim.ReportLimit ||
		!sameSeed(oldSim.Seed, newSim.Seed)

	d.CorpusChanged = old.Corpus != new.Corpus || old.Lexicon != new.Lexicon

	if !sameProviders(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Server.MetricsAddr != new.Server.MetricsAddr {
		d.RestartRequired = append(d.RestartRequired, "server.metrics_addr")
	}
	if old.Index != new.Index {
		d.RestartRequired = append(d.RestartRequired, "index")
	}
	if old.Resilience != new.Resilience {
		d.RestartRequired = append(d.RestartRequired, "resilience")
	}

	return d
}

func sameSeed(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameProviders(a, b ProvidersConfig) bool {
	return sameEntry(a.STT, b.STT) && sameEntry(a.TTS, b.TTS) &&
		sameEntry(a.Embeddings, b.Embeddings) && sameEntry(a.LLM, b.LLM)
}

// sameEntry compares the scalar fields of two entries and the string form of
// their options.
func sameEntry(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		w, ok := b.Options[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(w) {
			return false
		}
	}
	return true
}
