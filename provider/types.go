package provider

import "encoding/json"

// Request represents a provider-agnostic generation request.
type Request struct {
	Model         string
	Messages      []Message
	Tools         []ToolDef
	Temperature   *float64
	MaxTokens     *int
	TopP          *float64
	TopK          *int
	Seed          *int
	StopSequences []string
}

// Message represents a single message in the conversation.
type Message struct {
	Role      Role       `msgpack:"role"`
	Content   string     `msgpack:"content"`
	ToolCalls []ToolCall `msgpack:"tool_calls,omitempty"`
	ToolID    string     `msgpack:"tool_id,omitempty"` // When Role == RoleTool
	ToolName  string     `msgpack:"tool_name,omitempty"`
}

// Role represents the message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a tool invocation recorded in the conversation.
type ToolCall struct {
	ID        string `msgpack:"id"`
	Name      string `msgpack:"name"`
	Arguments string `msgpack:"arguments"` // JSON string
}

// ToolDef defines a tool the model can use.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantCallMessage records the assistant's text together with the
// function call that interrupted it.
func AssistantCallMessage(content string, call *FunctionCall) Message {
	return Message{
		Role:    RoleAssistant,
		Content: content,
		ToolCalls: []ToolCall{{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
		}},
	}
}

// ToolMessage creates a tool result message.
func ToolMessage(call *FunctionCall, content string) Message {
	return Message{
		Role:     RoleTool,
		Content:  content,
		ToolID:   call.ID,
		ToolName: call.Name,
	}
}
