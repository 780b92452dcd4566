// Package models abstracts over chat-completion providers that can optionally
// call tools. The agent loop speaks these provider-agnostic shapes; each
// concrete adapter translates them to its SDK's wire format.
package models

import "context"

// Message roles within a transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one provider-agnostic transcript turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant turns requesting tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // set when Role == RoleTool
	ToolName   string     `json:"tool_name,omitempty"`    // set when Role == RoleTool
}

// ToolDefinition describes one tool offered to the model during a completion.
// Parameters holds the JSON-schema object for the tool's arguments.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// GenerationConfig carries per-request sampling settings.
type GenerationConfig struct {
	Temperature float32
	MaxTokens   int
}

// Reply is the model's decision for one completion: either a final answer
// (Content, no tool calls) or one or more tool-call requests.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// StreamChunk is one fragment of a streamed completion. Fragments arrive in
// generation order; the terminal chunk has Done set and carries the fully
// assembled text. Completed tool calls are delivered as dedicated chunks
// before the terminal one.
type StreamChunk struct {
	Delta    string
	FullText string
	ToolCall *ToolCall
	Done     bool
	Err      error
}

// ChatModel is the port the agent loop drives. Complete returns the model's
// next move for the given transcript; CompleteStream delivers the same as a
// finite fragment sequence that always ends with a Done chunk, even on an
// empty or failed generation.
type ChatModel interface {
	Complete(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (*Reply, error)
	CompleteStream(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (<-chan StreamChunk, error)
}
