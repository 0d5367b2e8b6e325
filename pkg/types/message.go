// Package types defines the normalized message and command shapes shared by
// the orchestrator, the providers, and the three agent roles.
package types

// Role distinguishes the kind of AgentMessage the orchestrator observed.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleResult    Role = "result"
)

// SystemSubtype enumerates the System message subtypes a provider may emit.
type SystemSubtype string

const (
	SystemTurnLimitReached  SystemSubtype = "turn_limit_reached"
	SystemConversationEnded SystemSubtype = "conversation_ended"
	SystemAssistantError    SystemSubtype = "assistant_error"
	SystemPermissionDenied  SystemSubtype = "permission_denied"
)

// AgentMessage is the normalized envelope the orchestrator sees from any
// provider, regardless of backend (spec §3). Exactly one of the
// Assistant/User/System fields is meaningful, selected by Role; Result
// carries neither and only marks the end of a batch.
type AgentMessage struct {
	Role Role `json:"role"`

	// Assistant content, present when Role == RoleAssistant.
	Assistant []ContentItem `json:"assistant,omitempty"`

	// User content, present when Role == RoleUser.
	User []ToolResult `json:"user,omitempty"`

	// System subtype, present when Role == RoleSystem.
	System SystemSubtype `json:"system,omitempty"`

	// Error is populated alongside SystemAssistantError.
	Error string `json:"error,omitempty"`
}

// ContentItem is either Text or ToolUse content within an Assistant message.
type ContentItem struct {
	Text    string   `json:"text,omitempty"`
	ToolUse *ToolUse `json:"toolUse,omitempty"`
}

// IsText reports whether this item carries free-form text rather than a tool call.
func (c ContentItem) IsText() bool { return c.ToolUse == nil }

// ToolUse is a single tool invocation the assistant emitted.
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult matches a prior ToolUse by id.
type ToolResult struct {
	ToolUseID string `json:"toolUseId"`
	Text      string `json:"text"`
	IsError   bool   `json:"isError"`
}

