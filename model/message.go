package model

import "encoding/json"

// Role identifies who produced a message.
type Role string

const (
	RoleUser         Role = "user"
	RoleAssistant    Role = "assistant"
	RoleSystem       Role = "system"
	RoleFunctionCall Role = "function_call"
	RoleAuthError    Role = "auth-error"
	RoleAPIError     Role = "api-error"
)

// IsError reports whether the role marks a locally synthesized or
// server-reported error bubble.
func (r Role) IsError() bool {
	return r == RoleAuthError || r == RoleAPIError
}

// ToolUseState is the lifecycle of a proposed tool invocation.
type ToolUseState string

const (
	ToolUsePending   ToolUseState = "pending"
	ToolUseApproved  ToolUseState = "approved"
	ToolUseRejected  ToolUseState = "rejected"
	ToolUseCompleted ToolUseState = "completed"
	ToolUseFailed    ToolUseState = "failed"
)

// Resolved reports whether the user (or the server) has settled the tool use.
// Any state other than pending counts, including states this client does not know.
func (s ToolUseState) Resolved() bool {
	return s != ToolUsePending
}

// ToolUse describes a tool invocation the assistant proposed.
// Args values are strings, numbers, booleans or null as decoded from JSON.
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Args  map[string]any `json:"args"`
	State ToolUseState   `json:"state"`
}

// Pending reports whether the tool use still waits for a decision.
func (t *ToolUse) Pending() bool {
	return t != nil && t.State == ToolUsePending
}

// Message is a finalized chat message as returned by the backend.
type Message struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Role           Role     `json:"role"`
	Content        string   `json:"content"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	ToolUse        *ToolUse `json:"mcp_tool_use"`
}

// BlocksInput reports whether the message carries a tool use awaiting a decision.
func (m Message) BlocksInput() bool {
	return m.ToolUse.Pending()
}

// DecodeMessage parses a serialized Message from a stream payload.
func DecodeMessage(data string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// PendingMessage is a transient message that has not been confirmed by the server.
// For an incoming reply, Content accumulates streamed fragments.
type PendingMessage struct {
	Role    Role
	Content string
	Model   string
}
