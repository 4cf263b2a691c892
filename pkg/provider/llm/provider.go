// Package llm defines the Provider interface for completion backends.
//
// A completion provider wraps a remote or local model API (OpenAI, Anthropic,
// Gemini, a local Ollama instance) and turns an ordered conversation into the
// assistant's next reply. The turn orchestrator depends only on this package,
// never on a concrete SDK.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/vaani/pkg/types"
)

// Usage holds token accounting information returned by the backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty and start with the persona's system message.
type CompletionRequest struct {
	// Messages is the full conversation, persona first, latest user turn last.
	Messages []types.Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero means
	// use the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply to a CompletionRequest.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error if the request fails or if ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing the underlying model. The
	// result is constant for the lifetime of the Provider.
	Capabilities() types.ModelCapabilities
}

// ClampMaxTokens bounds requested to the model's output limit. A zero request
// or an unknown limit leaves requested unchanged.
func ClampMaxTokens(requested int, caps types.ModelCapabilities) int {
	if requested <= 0 || caps.MaxOutputTokens <= 0 {
		return requested
	}
	return min(requested, caps.MaxOutputTokens)
}
