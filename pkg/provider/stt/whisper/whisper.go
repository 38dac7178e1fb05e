// Package whisper implements stt.Provider against a whisper.cpp server
// (the whisper-server binary, POST /inference).
//
// whisper.cpp transcribes whole clips, so a session buffers PCM, cuts an
// utterance once speech is followed by enough silence (or the buffer is
// full) and uploads it as a WAV file. Each utterance yields one partial and
// one final with the same text.
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithSilenceThreshold(700*time.Millisecond))
//	h, err := p.StartStream(ctx, stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "hi-IN"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/courtroom/pkg/audio"
	"github.com/MrWong99/courtroom/pkg/provider/stt"
	"github.com/MrWong99/courtroom/pkg/types"
)

const (
	// defaultRMSThreshold is the amplitude below which a chunk counts as
	// silence.
	defaultRMSThreshold = 300.0

	defaultLanguage          = "en"
	defaultSampleRate        = 16000
	defaultSilenceThreshold  = 500 * time.Millisecond
	defaultMaxBufferDuration = 15 * time.Second
	defaultRequestTimeout    = 60 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithModel forwards a model name to the server. Empty uses the server's
// loaded model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the fallback language when StreamConfig.Language is
// empty. Default "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the fallback sample rate. Default 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithSilenceThreshold sets how much trailing silence ends an utterance.
// Default 500ms.
func WithSilenceThreshold(d time.Duration) Option {
	return func(p *Provider) { p.silence = d }
}

// WithMaxBufferDuration forces a flush once an utterance reaches d.
// Default 15s.
func WithMaxBufferDuration(d time.Duration) Option {
	return func(p *Provider) { p.maxBuffer = d }
}

// WithRMSThreshold overrides the silence amplitude. Default 300.
func WithRMSThreshold(rms float64) Option {
	return func(p *Provider) { p.rmsThreshold = rms }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider is a whisper.cpp server client. Each session keeps its own buffer.
type Provider struct {
	serverURL    string
	model        string
	language     string
	sampleRate   int
	silence      time.Duration
	maxBuffer    time.Duration
	rmsThreshold float64
	httpClient   *http.Client
}

// New returns a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:    strings.TrimRight(serverURL, "/"),
		language:     defaultLanguage,
		sampleRate:   defaultSampleRate,
		silence:      defaultSilenceThreshold,
		maxBuffer:    defaultMaxBufferDuration,
		rmsThreshold: defaultRMSThreshold,
		httpClient:   &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream implements stt.Provider. No connection is made until the first
// utterance is complete. Keywords are passed to the server as an initial
// prompt.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: start stream: %w", err)
	}

	f := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	if f.SampleRate <= 0 {
		f.SampleRate = p.sampleRate
	}
	if f.Channels <= 0 {
		f.Channels = 1
	}
	lang := stt.BaseLanguage(cfg.Language)
	if lang == "" {
		lang = p.language
	}

	s := &session{
		p:        p,
		format:   f,
		language: lang,
		prompt:   keywordPrompt(cfg.Keywords),
		audioCh:  make(chan []byte, 256),
		partials: make(chan types.Transcript, 16),
		finals:   make(chan types.Transcript, 16),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s, nil
}

func keywordPrompt(kws []types.KeywordBoost) string {
	if len(kws) == 0 {
		return ""
	}
	words := make([]string, len(kws))
	for i, k := range kws {
		words[i] = k.Keyword
	}
	return strings.Join(words, ", ")
}

type session struct {
	p        *Provider
	format   audio.Format
	language string
	prompt   string

	audioCh  chan []byte
	partials chan types.Transcript
	finals   chan types.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrSessionClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return stt.ErrSessionClosed
	}
}

func (s *session) Partials() <-chan types.Transcript { return s.partials }

func (s *session) Finals() <-chan types.Transcript { return s.finals }

// Close flushes the pending utterance and waits for its transcript.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop owns all buffering state.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte
		hadSpeech bool
		silence   time.Duration
	)
	maxBytes := int(int64(s.format.BytesPerSecond()) * int64(s.p.maxBuffer) / int64(time.Second))

	flush := func(fctx context.Context) {
		pcm, speech := buffer, hadSpeech
		buffer, hadSpeech, silence = nil, false, 0
		if len(pcm) == 0 || !speech {
			return
		}
		text, err := s.infer(fctx, pcm)
		if err != nil || text == "" {
			return
		}
		t := types.Transcript{
			Text:     text,
			Language: s.language,
			Duration: s.format.Duration(len(pcm)),
		}
		select {
		case s.partials <- t:
		default:
		}
		t.IsFinal = true
		select {
		case s.finals <- t:
		default:
		}
	}
	// The caller's ctx may already be cancelled on shutdown.
	finalFlush := func() {
		fctx, cancel := context.WithTimeout(context.Background(), s.p.httpClient.Timeout+time.Second)
		defer cancel()
		flush(fctx)
	}

	handle := func(chunk []byte) {
		if audio.RMS(chunk) < s.p.rmsThreshold {
			// Leading silence is dropped.
			if !hadSpeech {
				return
			}
			buffer = append(buffer, chunk...)
			silence += s.format.Duration(len(chunk))
			if silence >= s.p.silence {
				flush(ctx)
			}
			return
		}
		hadSpeech = true
		silence = 0
		buffer = append(buffer, chunk...)
		if maxBytes > 0 && len(buffer) >= maxBytes {
			flush(ctx)
		}
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return
		case <-s.done:
			// Audio queued before Close still belongs to the session.
			for {
				select {
				case chunk := <-s.audioCh:
					handle(chunk)
					continue
				default:
				}
				break
			}
			finalFlush()
			return
		case chunk := <-s.audioCh:
			handle(chunk)
		}
	}
}

// infer uploads pcm as multipart WAV and returns the trimmed text.
func (s *session) infer(ctx context.Context, pcm []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(pcm, s.format)); err != nil {
		return "", fmt.Errorf("whisper: write wav: %w", err)
	}
	fields := map[string]string{
		"response_format": "json",
		"temperature":     "0.0",
		"language":        s.language,
		"model":           s.p.model,
		"prompt":          s.prompt,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: inference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: inference returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: decode response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
