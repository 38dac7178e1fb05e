// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider opens a streaming session that accepts raw 16-bit PCM and emits
// interim and final transcripts. Batch engines such as a whisper.cpp server
// emulate streaming by cutting utterances at silence.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/courtroom/pkg/types"
)

// ErrSessionClosed is returned by SendAudio after Close.
var ErrSessionClosed = errors.New("stt: session is closed")

// StreamConfig describes the audio and recognition settings of a session.
type StreamConfig struct {
	// SampleRate in Hz. Zero uses the provider default.
	SampleRate int

	// Channels, usually 1.
	Channels int

	// Language is a BCP-47 tag such as "en-IN" or "hi-IN". Providers that
	// only understand bare language codes use the part before the hyphen.
	Language string

	// Keywords raise the recognition probability of domain vocabulary, for
	// example crime names from the lexicon.
	Keywords []types.KeywordBoost
}

// SessionHandle is an open transcription session. Callers must call Close.
// All methods are safe for concurrent use.
type SessionHandle interface {
	// SendAudio queues a PCM chunk in the session's format.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan types.Transcript

	// Finals emits committed transcripts. Closed when the session ends.
	Finals() <-chan types.Transcript

	// Close flushes pending audio, waits for outstanding results and releases
	// the session. Calling Close more than once is safe.
	Close() error
}

// Provider opens transcription sessions. Implementations must be safe for
// concurrent use.
type Provider interface {
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// BaseLanguage returns the primary subtag of a BCP-47 tag: "hi-IN" becomes
// "hi".
func BaseLanguage(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' || tag[i] == '_' {
			return tag[:i]
		}
	}
	return tag
}
