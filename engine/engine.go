package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/lunef/agent-go/core"
	"github.com/lunef/agent-go/logger"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
	defaultMaxTurns  = 10
)

// Engine drives the model tool-call loop for a single utterance. It executes
// read tools inline and refuses confirmation-gated tools: money only moves
// through the session layer after explicit voice confirmation, never on the
// model's own initiative.
type Engine struct {
	client   *anthropic.Client
	registry *Registry
	log      logger.Logger

	systemPrompt string
	model        string
	maxTokens    int64
	maxTurns     int
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithSystemPrompt overrides the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithModel overrides the model id.
func WithModel(model string) Option {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

// WithMaxTokens overrides the response token limit.
func WithMaxTokens(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithMaxTurns overrides the tool-loop turn limit.
func WithMaxTurns(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTurns = n
		}
	}
}

// NewEngine creates an engine over the given Anthropic client and registry.
func NewEngine(client *anthropic.Client, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		registry:  registry,
		log:       logger.NoopLogger{},
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		maxTurns:  defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Process interprets one utterance: the model is called in a loop, tool calls
// are executed, and their results fed back until the model answers in text or
// the turn limit is hit. Implements the session's Runner.
func (e *Engine) Process(ctx context.Context, userID, transcript string) (string, []core.ToolExecution, error) {
	requestID := uuid.New().String()
	apiTools := e.registry.ToAPITools()

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(transcript)),
	}

	var executions []core.ToolExecution

	for turn := 0; turn < e.maxTurns; turn++ {
		if ctx.Err() != nil {
			return "", executions, ctx.Err()
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(e.model),
			MaxTokens: e.maxTokens,
			Messages:  messages,
			System: []anthropic.TextBlockParam{
				{Text: e.systemPrompt},
			},
		}
		if len(apiTools) > 0 {
			params.Tools = apiTools
		}

		resp, err := e.client.Messages.New(ctx, params)
		if err != nil {
			return "", executions, fmt.Errorf("model call failed: %w", err)
		}

		var textResponse string
		var toolResults []anthropic.ContentBlockParamUnion

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textResponse += block.Text

			case "tool_use":
				result, execution := e.executeToolBlock(ctx, userID, requestID, block.Name, block.Input)
				executions = append(executions, execution)

				if execution.Error != "" {
					toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, execution.Error, true))
				} else {
					resultBytes, _ := json.Marshal(result.Data)
					toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, string(resultBytes), false))
				}
			}
		}

		if len(toolResults) == 0 {
			e.log.Debug("agent run complete", map[string]any{
				"request_id": requestID,
				"user_id":    userID,
				"turns":      turn + 1,
				"tool_calls": len(executions),
			})
			return textResponse, executions, nil
		}

		messages = append(messages, resp.ToParam())
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}

	return "", executions, fmt.Errorf("exceeded maximum turns (%d)", e.maxTurns)
}

// executeToolBlock runs one tool_use block and records the execution.
// Confirmation-gated tools are never run here; the model gets an error result
// it can relay while the session layer owns the actual execute step.
func (e *Engine) executeToolBlock(ctx context.Context, userID, requestID, name string, input json.RawMessage) (*core.ToolResult, core.ToolExecution) {
	var decodedInput interface{}
	_ = json.Unmarshal(input, &decodedInput)

	execution := core.ToolExecution{Tool: name, Input: decodedInput}

	tool, ok := e.registry.Get(name)
	if !ok {
		execution.Error = fmt.Sprintf("unknown tool: %s", name)
		return nil, execution
	}

	if tool.RequiresConfirmation {
		execution.Error = "This operation requires explicit user confirmation"
		return nil, execution
	}

	start := time.Now()
	result, err := tool.Execute(ctx, &core.ToolParams{
		UserID:    userID,
		Input:     input,
		RequestID: requestID,
	})
	execution.DurationMs = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		execution.Error = err.Error()
		e.log.Warn("tool execution errored", map[string]any{
			"request_id": requestID, "tool": name, "error": err.Error(),
		})
	case result != nil && !result.Success:
		execution.Error = result.Error
		e.log.Debug("tool reported failure", map[string]any{
			"request_id": requestID, "tool": name, "error": result.Error,
		})
	default:
		if result != nil {
			execution.Result = result.Data
		}
	}

	return result, execution
}
