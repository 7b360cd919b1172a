package core

// ToolStatus classifies the outcome of a tool execution.
type ToolStatus string

// Tool execution outcomes.
const (
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// ToolCall describes a tool invocation requested by the model within a turn.
type ToolCall struct {
	ID        string `json:"id"`                  // Unique per-turn call identifier
	Name      string `json:"name"`                // Registered tool name
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument payload
}

// ToolResult describes the outcome of a ToolCall. CallID always references a
// call issued earlier in the same turn; orphan results are rejected before a
// provider ever sees them (see ValidatePairing).
type ToolResult struct {
	CallID  string     `json:"call_id"`           // Matches originating ToolCall.ID
	Name    string     `json:"name"`              // Tool name (some providers pair on name)
	Status  ToolStatus `json:"status"`            // success or error
	Payload string     `json:"payload,omitempty"` // Serialized result on success
	Error   string     `json:"error,omitempty"`   // Failure detail on error
}

// NewToolResult builds a success result for the given call.
func NewToolResult(call ToolCall, payload string) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Status: ToolStatusSuccess, Payload: payload}
}

// NewToolErrorResult builds an error-status result for the given call.
func NewToolErrorResult(call ToolCall, errDetail string) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Status: ToolStatusError, Error: errDetail}
}
