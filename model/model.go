package model

import (
	"context"

	"github.com/parleyhq/parley/core"
)

// ToolSpec declaratively exposes a callable tool to the model. Parameters is
// a JSON Schema object (minimal subset, same shape the tool package declares).
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized gateway input for one generation call.
type Request struct {
	System   string         `json:"system,omitempty"` // System instruction, provider-placed
	Contents []core.Content `json:"contents"`         // Ordered conversation history
	Tools    []ToolSpec     `json:"tools,omitempty"`
}

// Usage captures token usage statistics for a turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Turn is the outcome of one generation call: either a final textual answer
// (Text set, no ToolCalls) or one or more tool call requests.
type Turn struct {
	Text         string          `json:"text,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        Usage           `json:"usage"`
}

// IsFinal reports whether the turn carries a final answer rather than tool
// call requests.
func (t *Turn) IsFinal() bool { return len(t.ToolCalls) == 0 }

// Info contains metadata about a gateway implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "anthropic", "openai", "google", ...
}

// Gateway is the uniform call contract over heterogeneous LLM backends.
// Implementations translate the internal tagged content union into the wire
// format of their provider and back, without persisted side effects.
type Gateway interface {
	Generate(ctx context.Context, req Request) (*Turn, error)

	// Info returns metadata about the backing provider and model.
	Info() Info
}

// Prepare runs the shared client-side checks every adapter performs before
// building a provider request: tool spec compatibility against the provider
// capability profile, then the pairing invariant over the content sequence.
func Prepare(req Request, cap Capability) error {
	if err := ValidateToolSpecs(req.Tools, cap); err != nil {
		return err
	}
	if err := core.ValidatePairing(req.Contents); err != nil {
		return &ProviderProtocolError{Provider: cap.Provider, Err: err}
	}
	return nil
}
