package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind discriminates persisted message variants.
type MessageKind string

// Message kinds.
const (
	KindText       MessageKind = "text"
	KindToolCall   MessageKind = "tool_call"
	KindToolResult MessageKind = "tool_result"
	KindSystem     MessageKind = "system"
)

// SenderAgent is the sender reference used for assistant-authored messages.
const SenderAgent = "agent"

// Message is a single persisted conversation entry. ScopeID identifies the
// conversational context (a private thread or a multi-participant room).
// Sender is a user id, SenderAgent, or empty for system entries.
//
// ToolCall / ToolResult are populated only for the matching kinds so the
// tagged union survives persistence and recall without lossy flattening.
type Message struct {
	ID         string      `json:"id"`
	ScopeID    string      `json:"scope_id"`
	Sender     string      `json:"sender,omitempty"`
	Body       string      `json:"body,omitempty"`
	Kind       MessageKind `json:"kind"`
	CreatedAt  time.Time   `json:"created_at"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// NewID generates a unique identifier for messages and tool calls.
func NewID() string { return uuid.NewString() }

// NewMessage creates a text message in the given scope.
func NewMessage(scopeID, sender, body string) Message {
	return Message{
		ID:        NewID(),
		ScopeID:   scopeID,
		Sender:    sender,
		Body:      body,
		Kind:      KindText,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAgentMessage creates an assistant-authored text message.
func NewAgentMessage(scopeID, body string) Message {
	return NewMessage(scopeID, SenderAgent, body)
}

// NewToolCallMessage records a tool invocation request in the scope history.
func NewToolCallMessage(scopeID string, call ToolCall) Message {
	m := NewMessage(scopeID, SenderAgent, "")
	m.Kind = KindToolCall
	m.ToolCall = &call
	return m
}

// NewToolResultMessage records a tool outcome in the scope history.
func NewToolResultMessage(scopeID string, result ToolResult) Message {
	m := NewMessage(scopeID, "", "")
	m.Kind = KindToolResult
	m.ToolResult = &result
	return m
}
