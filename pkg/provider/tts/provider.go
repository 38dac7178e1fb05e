// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider turns text into raw 16-bit PCM. SynthesizeStream accepts a
// channel of text fragments so long reports can be split into sentences and
// synthesised while earlier sentences are already being played. [Synthesize]
// wraps the streaming call for callers that want the whole utterance at once.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/courtroom/pkg/audio"
	"github.com/MrWong99/courtroom/pkg/types"
)

// ErrNoAudio is returned by [Synthesize] when the provider produced no PCM.
var ErrNoAudio = errors.New("tts: provider produced no audio")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments and returns a channel that emits
	// PCM chunks in [Provider.OutputFormat] as they are synthesised.
	//
	// The returned channel is closed when all text has been synthesised, when
	// synthesis fails or when ctx is cancelled. Callers must drain it. A non-nil
	// error is returned only when the stream cannot be started.
	SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the voice profiles the backend currently offers.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)

	// OutputFormat is the PCM format of every chunk SynthesizeStream emits.
	OutputFormat() audio.Format
}

// Synthesize sends text as a single fragment and collects the resulting PCM.
// It returns ErrNoAudio when the stream closed without producing any bytes,
// or ctx.Err() when ctx ended first.
func Synthesize(ctx context.Context, p Provider, text string, voice types.VoiceProfile) ([]byte, error) {
	in := make(chan string, 1)
	in <- text
	close(in)

	out, err := p.SynthesizeStream(ctx, in, voice)
	if err != nil {
		return nil, err
	}

	var pcm []byte
	for chunk := range out {
		pcm = append(pcm, chunk...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	return pcm, nil
}
