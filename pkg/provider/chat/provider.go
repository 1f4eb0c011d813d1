// Package chat defines the Provider interface for chat completion backends.
//
// The journal uses chat completions for exactly one feature today — tag
// discovery, which sends a batch of entries to the model and expects a
// structured JSON reply — so the interface is deliberately small: one
// synchronous completion call, no streaming, no tool calling. The same two
// backends exist as for embeddings (hosted OpenAI, self-hosted Ollama) and the
// resolver in internal/ai always hands out a matched pair.
//
// Implementations must be safe for concurrent use.
package chat

import "context"

// Message roles understood by both backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single message in a chat conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser, or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically from
	// the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness. Zero means the provider default
	// (0.7), matching both backends' conventions; callers wanting greedy
	// decoding should pass a small positive value instead.
	Temperature float64

	// JSONObject, when true, instructs the model to reply with a single valid
	// JSON object (OpenAI's json_object response format, Ollama's format:
	// "json"). The prompt must still describe the expected schema — the flag
	// only constrains syntax, not structure.
	JSONObject bool
}

// Provider is the abstraction over any chat completion backend.
type Provider interface {
	// Complete sends req to the model and returns the full text of the reply.
	// Returns an error if the request fails, the response carries no content,
	// or ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// ModelID returns the provider-specific chat model identifier (e.g.,
	// "gpt-4o-mini", "llama3.2"). Used for logging and metrics attributes.
	ModelID() string
}
