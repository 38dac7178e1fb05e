// Package llm defines the Provider interface for Large Language Model
// backends.
//
// The simulator uses an LLM as a named-entity tagger: a single non-streaming
// completion that returns structured JSON. Implementations must be safe for
// concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/courtroom/pkg/types"
)

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce one reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message drives the reply.
	Messages []types.Message

	// SystemPrompt is sent ahead of Messages with the system role.
	SystemPrompt string

	// Temperature in [0.0, 2.0]. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero leaves the provider default.
	MaxTokens int

	// JSONMode asks the backend to emit a single JSON object when it supports
	// doing so. Callers must still validate the output.
	JSONMode bool
}

// CompletionResponse is the reply to a CompletionRequest.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and waits for the full reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities describes the configured model. Constant for the lifetime
	// of the Provider.
	Capabilities() types.ModelCapabilities
}
