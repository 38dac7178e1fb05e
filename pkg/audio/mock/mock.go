// Package mock provides test doubles for the audio Recorder and Player.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/courtroom/pkg/audio"
)

// Recorder emits a fixed list of frames and then closes the channel.
type Recorder struct {
	mu sync.Mutex

	// Frames are emitted in order on every Record call.
	Frames []audio.AudioFrame

	// FormatValue is returned by Format.
	FormatValue audio.Format

	// RecordErr, if non-nil, is returned by Record.
	RecordErr error

	// HoldOpen keeps the channel open after the last frame until ctx is done.
	HoldOpen bool

	// RecordCalls is the number of Record calls.
	RecordCalls int
}

// Record implements audio.Recorder.
func (r *Recorder) Record(ctx context.Context) (<-chan audio.AudioFrame, error) {
	r.mu.Lock()
	r.RecordCalls++
	if r.RecordErr != nil {
		err := r.RecordErr
		r.mu.Unlock()
		return nil, err
	}
	frames := append([]audio.AudioFrame(nil), r.Frames...)
	hold := r.HoldOpen
	r.mu.Unlock()

	ch := make(chan audio.AudioFrame, len(frames))
	go func() {
		defer close(ch)
		for _, f := range frames {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// Format implements audio.Recorder.
func (r *Recorder) Format() audio.Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.FormatValue
}

// PlayCall records one Play invocation.
type PlayCall struct {
	PCM    []byte
	Format audio.Format
}

// Player records every Play call.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by Play.
	PlayErr error

	// PlayCalls records every invocation in order.
	PlayCalls []PlayCall
}

// Play implements audio.Player.
func (p *Player) Play(_ context.Context, pcm []byte, f audio.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, PlayCall{PCM: append([]byte(nil), pcm...), Format: f})
	return p.PlayErr
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Player) Calls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PlayCall(nil), p.PlayCalls...)
}

var (
	_ audio.Recorder = (*Recorder)(nil)
	_ audio.Player   = (*Player)(nil)
)
