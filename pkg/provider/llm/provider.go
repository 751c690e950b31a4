// Package llm defines the Provider interface for the Large Language Model
// backends used by the wiki extraction stage.
//
// A provider wraps a remote or local model API (e.g., OpenAI, Anthropic via
// the any-llm universal backend, or a local Ollama instance) and exposes a
// uniform completion interface so the extractor does not couple to any
// specific SDK. Implementors must be safe for concurrent use.
package llm

import "context"

// Message represents a single message in a completion conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a
// response. Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers without a dedicated system slot prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. For extraction this is
	// typically a single user message carrying the wiki page.
	Messages []Message

	// Temperature controls output randomness. Extraction runs at 0 for
	// reproducible output.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full response text.
	Content string

	// Usage is the token accounting for the call, when the backend
	// reports it.
	Usage Usage
}

// ModelCapabilities describes static limits of a model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum completion length.
	MaxOutputTokens int
}

// Provider is a completion-capable LLM backend.
type Provider interface {
	// Complete sends the request and returns the model's response.
	// The context governs cancellation and deadlines.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the configured model.
	Capabilities() ModelCapabilities
}
