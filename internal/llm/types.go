package llm

import "context"

// Role represents a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single transcript entry.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolCall   *ToolCall `json:"tool_call,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"` // For tool result messages
	Name       string    `json:"name,omitempty"`         // Tool name on tool result messages
}

// ToolCall is a tool invocation requested by the model. Arguments holds the
// raw argument text exactly as the provider streamed it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Clone returns a copy that shares no pointers with m.
func (m Message) Clone() Message {
	if m.ToolCall != nil {
		tc := *m.ToolCall
		m.ToolCall = &tc
	}
	return m
}

// ToolDef is the schema of a tool as sent to the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// FinishReason is the terminal status of one streamed response.
type FinishReason string

const (
	FinishStop     FinishReason = "stop"
	FinishToolCall FinishReason = "tool_call"
)

// NormalizeFinishReason maps provider spellings onto the reasons the loop
// understands. Unknown values are returned unchanged.
func NormalizeFinishReason(reason string) FinishReason {
	switch reason {
	case "tool_calls", "function_call", "tool_call":
		return FinishToolCall
	case "stop":
		return FinishStop
	default:
		return FinishReason(reason)
	}
}

// Delta is one incremental fragment of a streamed response.
type Delta struct {
	Role         Role
	Content      string
	ToolCall     *ToolCallDelta
	FinishReason FinishReason
}

// ToolCallDelta carries a fragment of a tool call.
type ToolCallDelta struct {
	ID        string
	Name      string
	Arguments string
}

// ToolChoice controls how the model may select tools.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// Request is a single streamed completion request.
type Request struct {
	Messages    []Message
	Tools       []ToolDef
	Temperature float64
	ToolChoice  ToolChoice
}

// Stream is a lazy, finite, non-restartable sequence of deltas.
// Recv returns io.EOF once the stream is exhausted.
type Stream interface {
	Recv() (Delta, error)
	Close() error
}

// Provider opens streamed completions.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// ModelInfo describes a model available on the provider.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// Helper constructors

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func ToolResultMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, Name: name}
}
