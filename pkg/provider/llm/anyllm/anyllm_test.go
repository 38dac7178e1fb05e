package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/courtroom/pkg/provider/llm"
	"github.com/MrWong99/courtroom/pkg/types"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		model   string
	}{
		{"empty backend", "", "llama3"},
		{"empty model", "ollama", ""},
		{"unsupported backend", "fakecloud", "some-model"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.backend, tc.model, anyllmlib.WithAPIKey("dummy")); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		backend string
		opts    []anyllmlib.Option
	}{
		{"openai", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}},
		{"Anthropic", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")}},
		{"ollama", nil},
		{"llamacpp", nil},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			p, err := New(tc.backend, "model-x", tc.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.model != "model-x" {
				t.Errorf("model = %q", p.model)
			}
		})
	}
}

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "llama3.1"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "tag entities",
		Messages:     []types.Message{{Role: "user", Content: "Ravi stole a bike"}},
		Temperature:  0.1,
		MaxTokens:    256,
	})
	if params.Model != "llama3.1" {
		t.Errorf("Model = %q", params.Model)
	}
	if len(params.Messages) != 2 || params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Fatalf("messages = %+v", params.Messages)
	}
	if params.Messages[1].Content != "Ravi stole a bike" {
		t.Errorf("user content = %v", params.Messages[1].Content)
	}
	if params.Temperature == nil || *params.Temperature != 0.1 {
		t.Errorf("Temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Errorf("MaxTokens = %v", params.MaxTokens)
	}
}

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model  string
		window int
	}{
		{"gpt-4o-mini", 128_000},
		{"gpt-4", 8_192},
		{"gpt-4-turbo", 128_000},
		{"claude-3-5-haiku-latest", 200_000},
		{"gemini-2.0-flash", 1_048_576},
		{"llama3.1", 128_000},
	}
	for _, tc := range tests {
		if got := modelCapabilities(tc.model).ContextWindow; got != tc.window {
			t.Errorf("%s: ContextWindow = %d, want %d", tc.model, got, tc.window)
		}
	}
}
