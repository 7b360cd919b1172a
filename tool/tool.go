// Package tool implements the tool calling subsystem: a closed registry of
// named tools with schema-validated arguments, and a bounded concurrent
// executor that turns model-requested calls into results without ever letting
// a failing tool abort the turn.
package tool

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/schema"
)

// Tool defines a capability the model may invoke during a turn.
//
// Implementations should provide descriptive names (snake_case recommended),
// a JSON schema for their arguments and must be safe for concurrent use:
// calls requested within one turn run in parallel.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns the human-readable description given to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already-parsed arguments. The context
	// carries the per-call deadline; implementations should honor it.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents argument validation failures with detail.
type ValidationError = schema.ValidationError

// Error codes attached to ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeUnknown    = "UNKNOWN_TOOL"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
