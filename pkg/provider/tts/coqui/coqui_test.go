package coqui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/courtroom/pkg/audio"
	"github.com/MrWong99/courtroom/pkg/types"
)

func drain(ch <-chan []byte) []byte {
	var out []byte
	for chunk := range ch {
		out = append(out, chunk...)
	}
	return out
}

func fragments(parts ...string) <-chan string {
	ch := make(chan string, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty server URL")
	}
	if _, err := New("http://x", WithAPIMode("grpc")); err == nil {
		t.Error("expected error for unknown API mode")
	}

	p, err := New("http://localhost:5002/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.serverURL != "http://localhost:5002" || p.apiMode != APIModeStandard || p.language != "en" {
		t.Errorf("defaults = %+v", p)
	}
	if got, want := p.OutputFormat(), (audio.Format{SampleRate: 22050, Channels: 1}); got != want {
		t.Errorf("OutputFormat = %v, want %v", got, want)
	}

	p, _ = New("http://x", WithOutputSampleRate(16000), WithTimeout(time.Second))
	if p.OutputFormat().SampleRate != 16000 || p.httpClient.Timeout != time.Second {
		t.Errorf("options not applied: rate %d timeout %v", p.OutputFormat().SampleRate, p.httpClient.Timeout)
	}
}

func TestFindSentenceBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"Hello world", -1},
		{"Hello.", 6},
		{"Hello. World", 6},
		{"Is it? Yes", 6},
		{"Pi is 3.14 exactly", -1},
		{"Section 302 applies! Next", 20},
		{"चोरी हुई। फिर", len("चोरी हुई।")},
		{"", -1},
	}
	for _, tc := range tests {
		if got := findSentenceBoundary(tc.in); got != tc.want {
			t.Errorf("findSentenceBoundary(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	out := make(chan string, 16)
	splitSentences(context.Background(), fragments("Case Simulation ", "Result. Prosecution", " Evidence: he stole.", "  ", "Win chance 3.5"), out)

	var got []string
	for s := range out {
		got = append(got, s)
	}
	want := []string{"Case Simulation Result.", "Prosecution Evidence: he stole.", "Win chance 3.5"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sentences mismatch (-want +got):\n%s", diff)
	}
}

// pcmFor returns a distinct 2-sample payload for each sentence.
var pcmFor = map[string][]byte{
	"First sentence.":  {1, 0, 1, 0},
	"Second sentence.": {2, 0, 2, 0},
	"Third":            {3, 0, 3, 0},
}

func TestSynthesizeStream_Standard(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		params []map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		mu.Lock()
		params = append(params, map[string]string{
			"text": q.Get("text"), "speaker_id": q.Get("speaker_id"), "language_id": q.Get("language_id"),
		})
		mu.Unlock()
		// The first sentence answers last; output order must still hold.
		if q.Get("text") == "First sentence." {
			time.Sleep(50 * time.Millisecond)
		}
		_, _ = w.Write(audio.EncodeWAV(pcmFor[q.Get("text")], audio.Format{SampleRate: 22050, Channels: 1}))
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	out, err := p.SynthesizeStream(context.Background(),
		fragments("First sentence. Second", " sentence. Third"),
		types.VoiceProfile{ID: "p225", Language: "hi"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}

	want := []byte{1, 0, 1, 0, 2, 0, 2, 0, 3, 0, 3, 0}
	if diff := cmp.Diff(want, drain(out)); diff != "" {
		t.Errorf("pcm mismatch (-want +got):\n%s", diff)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(params) != 3 {
		t.Fatalf("requests = %d, want 3", len(params))
	}
	for _, q := range params {
		if q["speaker_id"] != "p225" || q["language_id"] != "hi" {
			t.Errorf("request params = %v, want speaker p225 and language hi", q)
		}
	}
}

func TestSynthesizeStream_XTTSResamplesStereo(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tts_to_audio/" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		// 100 stereo frames at 11025 Hz.
		_, _ = w.Write(audio.EncodeWAV(make([]byte, 400), audio.Format{SampleRate: 11025, Channels: 2}))
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithAPIMode(APIModeXTTS), WithLanguage("ta"))
	out, err := p.SynthesizeStream(context.Background(), fragments("Vanakkam"), types.VoiceProfile{ID: "Ana Florence"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	pcm := drain(out)

	// 100 mono samples at 11025 Hz become 200 at 22050 Hz.
	if len(pcm) != 400 {
		t.Errorf("len(pcm) = %d, want 400", len(pcm))
	}
	want := map[string]string{"text": "Vanakkam", "speaker_wav": "Ana Florence", "language": "ta"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeStream_Errors(t *testing.T) {
	t.Parallel()

	t.Run("xtts needs a voice", func(t *testing.T) {
		t.Parallel()
		p, _ := New("http://x", WithAPIMode(APIModeXTTS))
		if _, err := p.SynthesizeStream(context.Background(), fragments("x"), types.VoiceProfile{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("server error ends the stream", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()
		p, _ := New(srv.URL)
		out, err := p.SynthesizeStream(context.Background(), fragments("One. Two."), types.VoiceProfile{})
		if err != nil {
			t.Fatalf("SynthesizeStream: %v", err)
		}
		if pcm := drain(out); len(pcm) != 0 {
			t.Errorf("got %d bytes, want none", len(pcm))
		}
	})

	t.Run("invalid wav ends the stream", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not a wav"))
		}))
		defer srv.Close()
		p, _ := New(srv.URL)
		out, _ := p.SynthesizeStream(context.Background(), fragments("One."), types.VoiceProfile{})
		if pcm := drain(out); len(pcm) != 0 {
			t.Errorf("got %d bytes, want none", len(pcm))
		}
	})

	t.Run("cancellation closes the channel", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		p, _ := New("http://127.0.0.1:1")
		out, err := p.SynthesizeStream(ctx, make(chan string), types.VoiceProfile{})
		if err != nil {
			t.Fatalf("SynthesizeStream: %v", err)
		}
		cancel()
		select {
		case <-waitClosed(out):
		case <-time.After(2 * time.Second):
			t.Fatal("audio channel not closed after cancel")
		}
	})
}

func waitClosed(ch <-chan []byte) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		drain(ch)
		close(done)
	}()
	return done
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode APIMode
		path string
		body string
		want []types.VoiceProfile
	}{
		{
			name: "xtts studio speakers",
			mode: APIModeXTTS,
			path: "/studio_speakers",
			body: `{"Ana Florence":{},"Aaron Dreschner":{}}`,
			want: []types.VoiceProfile{
				{ID: "Aaron Dreschner", Name: "Aaron Dreschner", Provider: "coqui", Metadata: map[string]string{"type": "studio"}},
				{ID: "Ana Florence", Name: "Ana Florence", Provider: "coqui", Metadata: map[string]string{"type": "studio"}},
			},
		},
		{
			name: "standard multi speaker",
			mode: APIModeStandard,
			path: "/details",
			body: `{"model_name":"vctk/vits","speakers":["p326","p225"]}`,
			want: []types.VoiceProfile{
				{ID: "p225", Name: "p225", Provider: "coqui", Metadata: map[string]string{"type": "speaker", "model_name": "vctk/vits"}},
				{ID: "p326", Name: "p326", Provider: "coqui", Metadata: map[string]string{"type": "speaker", "model_name": "vctk/vits"}},
			},
		},
		{
			name: "standard single speaker",
			mode: APIModeStandard,
			path: "/details",
			body: `{"model_name":"ljspeech/vits"}`,
			want: []types.VoiceProfile{
				{ID: "ljspeech/vits", Name: "ljspeech/vits", Provider: "coqui", Metadata: map[string]string{"type": "single-speaker", "model_name": "ljspeech/vits"}},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tc.path {
					http.NotFound(w, r)
					return
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p, _ := New(srv.URL, WithAPIMode(tc.mode))
			got, err := p.ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("voices mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListVoices_ServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	p, _ := New(srv.URL)
	if _, err := p.ListVoices(context.Background()); err == nil {
		t.Error("expected error")
	}
}
