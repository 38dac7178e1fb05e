package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/pkg/audio"
	"github.com/MrWong99/courtroom/pkg/provider/stt"
	"github.com/MrWong99/courtroom/pkg/types"
)

// DefaultListenTimeout bounds one capture.
const DefaultListenTimeout = 15 * time.Second

// ListenerOption configures an [STTListener].
type ListenerOption func(*STTListener)

// WithListenTimeout overrides [DefaultListenTimeout].
func WithListenTimeout(d time.Duration) ListenerOption {
	return func(l *STTListener) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithKeywords boosts recognition of the given terms.
func WithKeywords(kws []types.KeywordBoost) ListenerOption {
	return func(l *STTListener) { l.keywords = kws }
}

// WithSTTFormat sets the PCM format the STT provider expects. Recorder
// frames are converted to it. Defaults to 16 kHz mono.
func WithSTTFormat(f audio.Format) ListenerOption {
	return func(l *STTListener) { l.format = f }
}

// WithListenerMetrics records capture latency.
func WithListenerMetrics(m *observe.Metrics) ListenerOption {
	return func(l *STTListener) { l.metrics = m }
}

// STTListener records from a microphone and streams the audio to an STT
// provider until the first non-empty final transcript arrives, the recorder
// stops, or the listen timeout expires.
type STTListener struct {
	provider stt.Provider
	recorder audio.Recorder
	format   audio.Format
	timeout  time.Duration
	keywords []types.KeywordBoost
	metrics  *observe.Metrics
}

var _ Input = (*STTListener)(nil)

// NewSTTListener returns a listener reading from rec and transcribing with p.
func NewSTTListener(p stt.Provider, rec audio.Recorder, opts ...ListenerOption) *STTListener {
	l := &STTListener{
		provider: p,
		recorder: rec,
		format:   audio.Format{SampleRate: 16000, Channels: 1},
		timeout:  DefaultListenTimeout,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Listen implements Input.
func (l *STTListener) Listen(ctx context.Context, lang Language) string {
	ctx, span := observe.StartSpan(ctx, "voice.Listen")
	defer span.End()
	log := observe.Logger(ctx).With("language", lang.RecognitionCode)
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	sess, err := l.provider.StartStream(ctx, stt.StreamConfig{
		SampleRate: l.format.SampleRate,
		Channels:   l.format.Channels,
		Language:   lang.RecognitionCode,
		Keywords:   l.keywords,
	})
	if err != nil {
		log.Warn("voice: speech recognition unavailable", "err", err)
		return ""
	}
	go audio.Drain(sess.Partials())

	// The session outlives the capture so a final flush can still be
	// transcribed after the timeout.
	captureCtx, stop := context.WithTimeout(ctx, l.timeout)
	defer stop()
	g, gctx := errgroup.WithContext(captureCtx)

	frames, err := l.recorder.Record(gctx)
	if err != nil {
		log.Warn("voice: microphone unavailable", "err", err)
		_ = sess.Close()
		audio.Drain(sess.Finals())
		return ""
	}

	var text string
	g.Go(func() error {
		// A recorder that stops on its own ends the capture.
		defer stop()
		in := audio.ConvertStream(frames, l.format)
		defer audio.Drain(in)
		for f := range in {
			if err := sess.SendAudio(f.Data); err != nil {
				return fmt.Errorf("voice: send audio: %w", err)
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case t, ok := <-sess.Finals():
				if !ok {
					stop()
					return nil
				}
				if s := strings.TrimSpace(t.Text); s != "" {
					text = s
					stop()
					return nil
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		log.Warn("voice: capture failed", "err", err)
	}

	// Closing flushes audio the provider has not transcribed yet.
	if err := sess.Close(); err != nil {
		log.Debug("voice: close recognition session", "err", err)
	}
	for t := range sess.Finals() {
		if s := strings.TrimSpace(t.Text); text == "" && s != "" {
			text = s
		}
	}

	if text == "" {
		log.Info("voice: could not understand audio")
		return ""
	}
	log.Info("voice: recognised speech", "text", text)
	return text
}
