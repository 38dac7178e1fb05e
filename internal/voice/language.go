package voice

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Language pairs the speech-recognition and speech-synthesis codes of one
// supported language.
type Language struct {
	// Name is the lowercase English name, e.g. "hindi".
	Name string
	// RecognitionCode is the BCP-47 tag sent to STT, e.g. "hi-IN".
	RecognitionCode string
	// SynthesisCode is the language code sent to TTS, e.g. "hi".
	SynthesisCode string
}

// DisplayName returns Name with an upper-case first letter.
func (l Language) DisplayName() string {
	if l.Name == "" {
		return ""
	}
	return strings.ToUpper(l.Name[:1]) + l.Name[1:]
}

var (
	English   = Language{Name: "english", RecognitionCode: "en-IN", SynthesisCode: "en"}
	Hindi     = Language{Name: "hindi", RecognitionCode: "hi-IN", SynthesisCode: "hi"}
	Telugu    = Language{Name: "telugu", RecognitionCode: "te-IN", SynthesisCode: "te"}
	Tamil     = Language{Name: "tamil", RecognitionCode: "ta-IN", SynthesisCode: "ta"}
	Kannada   = Language{Name: "kannada", RecognitionCode: "kn-IN", SynthesisCode: "kn"}
	Malayalam = Language{Name: "malayalam", RecognitionCode: "ml-IN", SynthesisCode: "ml"}
)

// Languages lists every supported language.
var Languages = []Language{English, Hindi, Telugu, Tamil, Kannada, Malayalam}

// LookupLanguage returns the language whose name equals name, ignoring case
// and surrounding space.
func LookupLanguage(name string) (Language, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range Languages {
		if l.Name == name {
			return l, true
		}
	}
	return Language{}, false
}

const (
	phoneticThreshold = 0.70
	fuzzyThreshold    = 0.85
)

// ResolveLanguage maps a spoken answer such as "Hindi", "I want Tamil" or a
// misrecognised "kanada" to a supported language. It tries an exact name
// match of the whole answer, then of each word, then a phonetic match: a
// word whose Double Metaphone code overlaps a language name's and whose
// Jaro-Winkler similarity reaches 0.70, or any word reaching 0.85 without
// phonetic overlap. When nothing resolves it returns English and false.
func ResolveLanguage(spoken string) (Language, bool) {
	if l, ok := LookupLanguage(spoken); ok {
		return l, true
	}
	words := strings.FieldsFunc(strings.ToLower(spoken), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	for _, w := range words {
		if l, ok := LookupLanguage(w); ok {
			return l, true
		}
	}

	var (
		best      Language
		bestScore float64
		phonetic  bool
	)
	for _, w := range words {
		codes := metaphone(w)
		for _, l := range Languages {
			score := matchr.JaroWinkler(w, l.Name, false)
			if overlaps(codes, metaphone(l.Name)) {
				if score >= phoneticThreshold && (!phonetic || score > bestScore) {
					best, bestScore, phonetic = l, score, true
				}
			} else if !phonetic && score >= fuzzyThreshold && score > bestScore {
				best, bestScore = l, score
			}
		}
	}
	if best.Name != "" {
		return best, true
	}
	return English, false
}

func metaphone(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	var codes []string
	for _, c := range []string{p, s} {
		if c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
