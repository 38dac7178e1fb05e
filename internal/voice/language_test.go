package voice_test

import (
	"testing"

	"github.com/MrWong99/courtroom/internal/voice"
)

func TestResolveLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spoken string
		want   voice.Language
		ok     bool
	}{
		{"Hindi", voice.Hindi, true},
		{"  TAMIL ", voice.Tamil, true},
		{"english", voice.English, true},
		{"I would like Telugu please", voice.Telugu, true},
		{"Malayalam.", voice.Malayalam, true},
		{"kanada", voice.Kannada, true},
		{"hindee", voice.Hindi, true},
		{"malayalum", voice.Malayalam, true},
		{"french", voice.English, false},
		{"", voice.English, false},
	}
	for _, tc := range tests {
		t.Run(tc.spoken, func(t *testing.T) {
			t.Parallel()
			got, ok := voice.ResolveLanguage(tc.spoken)
			if got != tc.want || ok != tc.ok {
				t.Errorf("ResolveLanguage(%q) = (%v, %v), want (%v, %v)", tc.spoken, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestLanguageCodes(t *testing.T) {
	t.Parallel()

	want := map[string][2]string{
		"english":   {"en-IN", "en"},
		"hindi":     {"hi-IN", "hi"},
		"telugu":    {"te-IN", "te"},
		"tamil":     {"ta-IN", "ta"},
		"kannada":   {"kn-IN", "kn"},
		"malayalam": {"ml-IN", "ml"},
	}
	if len(voice.Languages) != len(want) {
		t.Fatalf("len(Languages) = %d, want %d", len(voice.Languages), len(want))
	}
	for name, codes := range want {
		l, ok := voice.LookupLanguage(name)
		if !ok {
			t.Errorf("LookupLanguage(%q) not found", name)
			continue
		}
		if l.RecognitionCode != codes[0] || l.SynthesisCode != codes[1] {
			t.Errorf("%s codes = (%s, %s), want (%s, %s)", name, l.RecognitionCode, l.SynthesisCode, codes[0], codes[1])
		}
	}
	if _, ok := voice.LookupLanguage("klingon"); ok {
		t.Error("LookupLanguage(klingon) found a language")
	}
	if got := voice.Kannada.DisplayName(); got != "Kannada" {
		t.Errorf("DisplayName = %q, want Kannada", got)
	}
}
