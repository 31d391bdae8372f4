package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolParams carries the per-invocation context for a tool call.
type ToolParams struct {
	// UserID is the caller's Lunef user UUID.
	UserID string

	// Input is the raw JSON arguments produced by the model.
	Input json.RawMessage

	// RequestID identifies the agent run this call belongs to.
	RequestID string
}

// ToolResult is the normalized outcome of a tool invocation.
// Tools never return errors past their boundary: failures are reported
// through Error so the agent loop always has a well-formed result to act on.
type ToolResult struct {
	Success bool
	Data    interface{}
	Error   string
}

// HandlerFunc executes a single tool invocation.
type HandlerFunc func(ctx context.Context, params *ToolParams) (*ToolResult, error)

// Tool is one LLM-callable operation with a fixed input schema.
type Tool struct {
	// Name is the tool identifier exposed to the model.
	Name string

	// Description tells the model when to use this tool.
	Description string

	// InputSchema is the JSON Schema for the tool's arguments,
	// built with the schema helpers in this package.
	InputSchema map[string]interface{}

	// RequiresConfirmation marks operations that move money. The session
	// layer gates these behind explicit voice confirmation.
	RequiresConfirmation bool

	// Handler performs the actual work.
	Handler HandlerFunc
}

// Execute runs the tool's handler.
func (t *Tool) Execute(ctx context.Context, params *ToolParams) (*ToolResult, error) {
	if t.Handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", t.Name)
	}
	return t.Handler(ctx, params)
}

// Errorf builds a failed ToolResult with a formatted user-facing message.
func Errorf(format string, args ...interface{}) *ToolResult {
	return &ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ToolExecution records one tool invocation during an agent run.
type ToolExecution struct {
	// Tool is the invoked tool's name.
	Tool string

	// Input is the decoded tool input.
	Input interface{}

	// Result holds the tool's Data on success.
	Result interface{}

	// Error holds the failure message, if any.
	Error string

	// DurationMs is the wall-clock execution time.
	DurationMs int64
}
