package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/pkg/audio"
	"github.com/MrWong99/courtroom/pkg/provider/tts"
	"github.com/MrWong99/courtroom/pkg/types"
)

// SpeakerOption configures a [TTSSpeaker].
type SpeakerOption func(*TTSSpeaker)

// WithVoice sets the voice profile. Its Language is replaced by the
// synthesis code of each Speak call.
func WithVoice(v types.VoiceProfile) SpeakerOption {
	return func(s *TTSSpeaker) { s.voice = v }
}

// WithSpeakerMetrics records synthesis plus playback latency.
func WithSpeakerMetrics(m *observe.Metrics) SpeakerOption {
	return func(s *TTSSpeaker) { s.metrics = m }
}

// TTSSpeaker synthesises text with a TTS provider and plays the PCM through
// an audio player.
type TTSSpeaker struct {
	provider tts.Provider
	player   audio.Player
	voice    types.VoiceProfile
	metrics  *observe.Metrics
}

var _ Output = (*TTSSpeaker)(nil)

// NewTTSSpeaker returns a speaker using p and player.
func NewTTSSpeaker(p tts.Provider, player audio.Player, opts ...SpeakerOption) *TTSSpeaker {
	s := &TTSSpeaker{provider: p, player: player}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak implements Output. Blank text is not synthesised.
func (s *TTSSpeaker) Speak(ctx context.Context, text string, lang Language) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, span := observe.StartSpan(ctx, "voice.Speak")
	defer span.End()
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	voice := s.voice
	voice.Language = lang.SynthesisCode
	pcm, err := tts.Synthesize(ctx, s.provider, text, voice)
	if err != nil {
		return fmt.Errorf("voice: synthesize: %w", err)
	}
	if err := s.player.Play(ctx, pcm, s.provider.OutputFormat()); err != nil {
		return fmt.Errorf("voice: play: %w", err)
	}
	return nil
}

// ErrUnknownVoice is returned by [TTSSpeaker.CheckVoice] when the provider
// does not offer the configured voice.
var ErrUnknownVoice = errors.New("voice: voice not offered by the provider")

// CheckVoice asks the provider for its voices and reports ErrUnknownVoice
// when the configured voice ID is not among them. An empty ID selects the
// provider default and always passes.
func (s *TTSSpeaker) CheckVoice(ctx context.Context) error {
	if s.voice.ID == "" {
		return nil
	}
	voices, err := s.provider.ListVoices(ctx)
	if err != nil {
		return fmt.Errorf("voice: list voices: %w", err)
	}
	for _, v := range voices {
		if v.ID == s.voice.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownVoice, s.voice.ID)
}
