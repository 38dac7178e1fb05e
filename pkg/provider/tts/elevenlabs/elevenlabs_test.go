package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/courtroom/pkg/audio"
	"github.com/MrWong99/courtroom/pkg/provider/tts"
	"github.com/MrWong99/courtroom/pkg/types"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		opts    []Option
		want    audio.Format
		wantErr bool
	}{
		{name: "defaults", key: "k", want: audio.Format{SampleRate: 16000, Channels: 1}},
		{name: "24k", key: "k", opts: []Option{WithOutputFormat("pcm_24000")}, want: audio.Format{SampleRate: 24000, Channels: 1}},
		{name: "empty key", key: "", wantErr: true},
		{name: "mp3 rejected", key: "k", opts: []Option{WithOutputFormat("mp3_44100_128")}, wantErr: true},
		{name: "bad rate", key: "k", opts: []Option{WithOutputFormat("pcm_fast")}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := New(tc.key, tc.opts...)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := p.OutputFormat(); got != tc.want {
				t.Errorf("OutputFormat = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStreamURL(t *testing.T) {
	t.Parallel()

	p, _ := New("k", WithModel("eleven_multilingual_v2"))
	raw := p.streamURL(types.VoiceProfile{ID: "voice 1", Language: "ta"})
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "wss" || u.Host != "api.elevenlabs.io" {
		t.Errorf("origin = %s://%s", u.Scheme, u.Host)
	}
	if u.Path != "/v1/text-to-speech/voice 1/stream-input" {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	want := map[string]string{"model_id": "eleven_multilingual_v2", "output_format": "pcm_16000", "language_code": "ta"}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
}

func TestToProfiles(t *testing.T) {
	t.Parallel()

	var vr voicesResponse
	raw := `{"voices":[
		{"voice_id":"abc","name":"Asha","category":"premade","labels":{"gender":"female","language":"hi"}},
		{"voice_id":"x1","name":"Ghost","category":"","labels":null}
	]}`
	if err := json.Unmarshal([]byte(raw), &vr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []types.VoiceProfile{
		{
			ID: "abc", Name: "Asha", Provider: "elevenlabs", Language: "hi",
			Metadata: map[string]string{"gender": "female", "language": "hi", "category": "premade"},
		},
		{ID: "x1", Name: "Ghost", Provider: "elevenlabs", Metadata: map[string]string{}},
	}
	if diff := cmp.Diff(want, toProfiles(vr)); diff != "" {
		t.Errorf("profiles mismatch (-want +got):\n%s", diff)
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "secret" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"abc","name":"Asha"}]}`))
	}))
	defer srv.Close()

	p, _ := New("secret", WithBaseURLs("ws://unused", srv.URL))
	got, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(got) != 1 || got[0].ID != "abc" {
		t.Errorf("ListVoices = %+v", got)
	}

	bad, _ := New("wrong", WithBaseURLs("ws://unused", srv.URL))
	if _, err := bad.ListVoices(context.Background()); err == nil {
		t.Error("expected error for unauthorized key")
	}
}

// ttsServer records received text messages and answers the end-of-input
// message with two audio chunks and a final marker.
type ttsServer struct {
	mu   sync.Mutex
	msgs []textMessage
}

func (s *ttsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m textMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		s.mu.Lock()
		s.msgs = append(s.msgs, m)
		s.mu.Unlock()
		if m.Text != "" {
			continue
		}
		for _, pcm := range [][]byte{{1, 2, 3, 4}, {5, 6}} {
			resp, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(pcm)})
			_ = conn.Write(ctx, websocket.MessageText, resp)
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"audio":null,"isFinal":true}`))
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
}

func TestSynthesizeStream(t *testing.T) {
	t.Parallel()

	srv := &ttsServer{}
	hs := httptest.NewServer(srv)
	defer hs.Close()

	p, _ := New("secret", WithBaseURLs("ws"+strings.TrimPrefix(hs.URL, "http"), hs.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := make(chan string, 3)
	in <- "Case Simulation Result."
	in <- "   "
	in <- "Win chance: 62%"
	close(in)

	out, err := p.SynthesizeStream(ctx, in, types.VoiceProfile{ID: "asha", Language: "en"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var pcm []byte
	for chunk := range out {
		pcm = append(pcm, chunk...)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 5, 6}, pcm); diff != "" {
		t.Errorf("pcm mismatch (-want +got):\n%s", diff)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	var texts []string
	for _, m := range srv.msgs {
		texts = append(texts, m.Text)
	}
	if diff := cmp.Diff([]string{" ", "Case Simulation Result. ", "Win chance: 62% ", ""}, texts); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
	if srv.msgs[0].XiAPIKey != "secret" || srv.msgs[0].VoiceSettings == nil {
		t.Errorf("BOI = %+v, want api key and voice settings", srv.msgs[0])
	}
}

func TestSynthesize_Helper(t *testing.T) {
	t.Parallel()

	hs := httptest.NewServer(&ttsServer{})
	defer hs.Close()

	p, _ := New("secret", WithBaseURLs("ws"+strings.TrimPrefix(hs.URL, "http"), hs.URL))
	pcm, err := tts.Synthesize(context.Background(), p, "hello", types.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(pcm) != 6 {
		t.Errorf("len(pcm) = %d, want 6", len(pcm))
	}
}

func TestSynthesizeStream_EmptyVoice(t *testing.T) {
	t.Parallel()
	p, _ := New("k")
	if _, err := p.SynthesizeStream(context.Background(), make(chan string), types.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
}
