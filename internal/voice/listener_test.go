package voice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/courtroom/internal/voice"
	"github.com/MrWong99/courtroom/pkg/audio"
	audiomock "github.com/MrWong99/courtroom/pkg/audio/mock"
	sttmock "github.com/MrWong99/courtroom/pkg/provider/stt/mock"
	"github.com/MrWong99/courtroom/pkg/types"
)

func frames(n, bytes, rate, channels int) []audio.AudioFrame {
	out := make([]audio.AudioFrame, n)
	for i := range out {
		out[i] = audio.AudioFrame{Data: make([]byte, bytes), SampleRate: rate, Channels: channels}
	}
	return out
}

// flushingSession emits its transcript only when closed, the way a batch
// recogniser flushes buffered speech.
type flushingSession struct {
	*sttmock.Session
	flush string
}

func (s *flushingSession) Close() error {
	if !s.Closed() {
		s.FinalsCh <- types.Transcript{Text: s.flush, IsFinal: true}
	}
	return s.Session.Close()
}

func TestSTTListener_FirstNonEmptyFinal(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession()
	sess.FinalsCh <- types.Transcript{Text: "   ", IsFinal: true}
	sess.FinalsCh <- types.Transcript{Text: " he stole my bike ", IsFinal: true}
	sess.FinalsCh <- types.Transcript{Text: "ignored", IsFinal: true}
	p := &sttmock.Provider{Session: sess}
	rec := &audiomock.Recorder{Frames: frames(2, 3840, 48000, 2), HoldOpen: true}
	kws := []types.KeywordBoost{{Keyword: "theft", Boost: 2}}

	l := voice.NewSTTListener(p, rec, voice.WithKeywords(kws), voice.WithListenTimeout(5*time.Second))
	got := l.Listen(context.Background(), voice.Hindi)

	if got != "he stole my bike" {
		t.Errorf("Listen = %q, want %q", got, "he stole my bike")
	}
	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("StartStream calls = %d, want 1", len(calls))
	}
	cfg := calls[0].Cfg
	if cfg.Language != "hi-IN" || cfg.SampleRate != 16000 || cfg.Channels != 1 {
		t.Errorf("stream config = %+v", cfg)
	}
	if diff := cmp.Diff(kws, cfg.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
	if !sess.Closed() {
		t.Error("session not closed")
	}
}

func TestSTTListener_ConvertsFramesAndClosesOnRecorderEnd(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession()
	p := &sttmock.Provider{Session: sess}
	// 20 ms of 48 kHz stereo per frame becomes 640 bytes of 16 kHz mono.
	rec := &audiomock.Recorder{Frames: frames(3, 3840, 48000, 2)}

	got := voice.NewSTTListener(p, rec).Listen(context.Background(), voice.English)
	if got != "" {
		t.Errorf("Listen = %q, want empty", got)
	}
	if n := sess.ChunkCount(); n != 3 {
		t.Fatalf("chunks sent = %d, want 3", n)
	}
	for i, c := range sess.Chunks {
		if len(c) != 640 {
			t.Errorf("chunk %d has %d bytes, want 640", i, len(c))
		}
	}
	if !sess.Closed() {
		t.Error("session not closed")
	}
}

func TestSTTListener_STTFormat(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession()
	p := &sttmock.Provider{Session: sess}
	// 20 ms of 48 kHz stereo per frame becomes 320 bytes of 8 kHz mono.
	rec := &audiomock.Recorder{Frames: frames(2, 3840, 48000, 2)}

	l := voice.NewSTTListener(p, rec, voice.WithSTTFormat(audio.Format{SampleRate: 8000, Channels: 1}))
	l.Listen(context.Background(), voice.English)

	calls := p.Calls()
	if len(calls) != 1 || calls[0].Cfg.SampleRate != 8000 || calls[0].Cfg.Channels != 1 {
		t.Fatalf("stream config = %+v, want 8 kHz mono", calls)
	}
	for i, c := range sess.Chunks {
		if len(c) != 320 {
			t.Errorf("chunk %d has %d bytes, want 320", i, len(c))
		}
	}
}

func TestSTTListener_TranscriptFlushedOnClose(t *testing.T) {
	t.Parallel()

	sess := &flushingSession{Session: sttmock.NewSession(), flush: "they cheated me"}
	p := &sttmock.Provider{Session: sess}
	rec := &audiomock.Recorder{Frames: frames(1, 640, 16000, 1)}

	if got := voice.NewSTTListener(p, rec).Listen(context.Background(), voice.Tamil); got != "they cheated me" {
		t.Errorf("Listen = %q, want %q", got, "they cheated me")
	}
}

func TestSTTListener_Timeout(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession()
	p := &sttmock.Provider{Session: sess}
	rec := &audiomock.Recorder{HoldOpen: true}

	start := time.Now()
	got := voice.NewSTTListener(p, rec, voice.WithListenTimeout(50*time.Millisecond)).
		Listen(context.Background(), voice.English)
	if got != "" {
		t.Errorf("Listen = %q, want empty", got)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("Listen took %v after a 50ms timeout", d)
	}
}

func TestSTTListener_FailuresYieldEmpty(t *testing.T) {
	t.Parallel()

	t.Run("stt unavailable", func(t *testing.T) {
		t.Parallel()
		rec := &audiomock.Recorder{}
		p := &sttmock.Provider{StartStreamErr: errors.New("401 unauthorized")}
		if got := voice.NewSTTListener(p, rec).Listen(context.Background(), voice.English); got != "" {
			t.Errorf("Listen = %q, want empty", got)
		}
		if rec.RecordCalls != 0 {
			t.Errorf("recorder started %d times, want 0", rec.RecordCalls)
		}
	})

	t.Run("microphone unavailable", func(t *testing.T) {
		t.Parallel()
		sess := sttmock.NewSession()
		p := &sttmock.Provider{Session: sess}
		rec := &audiomock.Recorder{RecordErr: errors.New("arecord: not found")}
		if got := voice.NewSTTListener(p, rec).Listen(context.Background(), voice.English); got != "" {
			t.Errorf("Listen = %q, want empty", got)
		}
		if !sess.Closed() {
			t.Error("session not closed")
		}
	})

	t.Run("send failure", func(t *testing.T) {
		t.Parallel()
		sess := sttmock.NewSession()
		sess.SendAudioErr = errors.New("socket closed")
		p := &sttmock.Provider{Session: sess}
		rec := &audiomock.Recorder{Frames: frames(5, 640, 16000, 1), HoldOpen: true}
		if got := voice.NewSTTListener(p, rec).Listen(context.Background(), voice.English); got != "" {
			t.Errorf("Listen = %q, want empty", got)
		}
		if n := sess.ChunkCount(); n != 1 {
			t.Errorf("chunks sent = %d, want 1", n)
		}
	})
}
