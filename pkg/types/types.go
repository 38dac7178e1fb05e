// Package types defines the data structures shared between the courtroom
// providers and the application packages.
//
// Each package owns its own domain types. Only values that cross provider
// boundaries (transcripts, chat messages, voices, entities) live here so that
// provider implementations do not import application code.
package types

import "time"

// Transcript is a speech-to-text result. Partial (interim) and final results
// share this type.
type Transcript struct {
	// Text is the recognised speech.
	Text string

	// IsFinal reports whether the provider considers this result authoritative.
	IsFinal bool

	// Confidence is the overall confidence (0.0–1.0). Zero when the provider
	// does not report one.
	Confidence float64

	// Words holds per-word detail when the provider supplies it.
	Words []WordDetail

	// Language is the language the provider recognised, when reported.
	Language string

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a phrase whose recognition an STT provider should favour.
// The simulator boosts crime synonyms so statements like "pickpocket" survive
// recognition.
type KeywordBoost struct {
	// Keyword is the phrase to boost.
	Keyword string

	// Boost is the intensity (provider-specific scale).
	Boost float64
}

// Message is a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name.
	Name string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens generated in one completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool

	// SupportsJSONMode indicates the model can be forced to emit JSON.
	SupportsJSONMode bool
}

// VoiceProfile describes a TTS voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider the voice belongs to.
	Provider string

	// Language is the synthesis language code (e.g. "hi", "en").
	// Empty means the provider default.
	Language string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64

	// Metadata holds provider-specific attributes (gender, accent, ...).
	Metadata map[string]string
}

// EntityType classifies a named entity found in free text.
type EntityType string

// Entity types the simulator reports. Taggers may detect others; those are
// dropped before they reach a match result.
const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityMoney        EntityType = "MONEY"
	EntityDate         EntityType = "DATE"
	EntityLocation     EntityType = "LOCATION"
)

// IsValid reports whether t is one of the reported entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityPerson, EntityOrganization, EntityMoney, EntityDate, EntityLocation:
		return true
	}
	return false
}

// Entity is a named entity detected in a statement.
type Entity struct {
	// Text is the entity span as it appeared in the input.
	Text string

	// Type is the entity class.
	Type EntityType
}
