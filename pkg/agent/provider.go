package agent

import (
	"context"
)

// Message roles understood by providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one provider-agnostic conversation entry.
type ChatMessage struct {
	Role    string
	Content string

	// ToolCalls echoes an assistant message's tool requests back to the
	// model on the next round.
	ToolCalls []ToolCall

	// ToolCallID and ToolName link a RoleTool result to the request it
	// answers; some providers address results by id, others by name.
	ToolCallID string
	ToolName   string
}

// ToolCall is the model asking for one tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON as the model produced it
}

// ToolSpec describes one callable function to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest is the input for one model round.
type ChatRequest struct {
	Messages []ChatMessage
	Tools    []ToolSpec
}

// ChatResult is the accumulated outcome of one streamed model round.
type ChatResult struct {
	Content   string
	ToolCalls []ToolCall
}

// Provider streams one model round. Implementations call onDelta with
// each content delta in order and stop as soon as onDelta returns an
// error or ctx is cancelled; the returned result carries the full
// accumulated content and any tool calls.
type Provider interface {
	Name() string
	Model() string
	StreamChat(ctx context.Context, req ChatRequest, onDelta func(delta string) error) (*ChatResult, error)
}
