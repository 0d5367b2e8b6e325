// Package provider abstracts LLM backends behind the ProviderPort the
// orchestrator drives (spec.md §4.1), using the Eino framework's
// ToolCallingChatModel as the underlying model interface.
package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/trioagent/trio/pkg/types"
)

// Role identifies which cooperating agent a streaming session belongs to.
// The provider needs this only to route canUseTool calls and session
// defaults; it never inspects the agent's conversation content.
type Role string

const (
	RoleNavigator Role = "navigator"
	RoleDriver    Role = "driver"
)

// CanUseTool is the permission gate a StreamingSession consults for every
// tool call the model requests, before the call is ever surfaced to its
// caller. The orchestrator supplies an implementation that routes
// file-modifying calls through the Navigator and the PermissionCoordinator.
type CanUseTool func(ctx context.Context, toolName string, input map[string]any) (types.PermissionDecision, error)

// ProviderError wraps a provider-backend failure (connection, auth, model)
// so the orchestrator can tell a non-fatal provider failure apart from a
// programming error and report it to the user instead of crashing.
type ProviderError struct {
	Provider string
	Op       string // "connection" | "auth" | "model"
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// OneShotConfig configures a non-conversational, single-turn session such as
// the Architect's planning call.
type OneShotConfig struct {
	SystemPrompt string
	AllowedTools []string
	MaxTurns     int
	ProjectPath  string
	PlanningMode bool
}

// StreamingConfig configures a long-lived, multi-turn conversation such as
// the Navigator's or Driver's session.
type StreamingConfig struct {
	SystemPrompt           string
	AllowedTools           []string
	AdditionalMCPTools     []*ToolDefinition
	MaxTurns               int
	ProjectPath            string
	MCPServerURL           string
	Role                   Role
	CanUseTool             CanUseTool
	DisallowedTools        []string
	IncludePartialMessages bool

	// DomainTools carries the schemas of the role's non-MCP tool surface
	// (Read/Write/Edit/Bash/... for the Driver, the read-only subset for the
	// Navigator), bound onto the chat model alongside AdditionalMCPTools.
	DomainTools []*ToolDefinition

	// Execute actually runs a tool call once CanUseTool has allowed it.
	Execute ToolExecutor
}

// ToolDefinition is a provider-agnostic tool schema; AdditionalMCPTools
// carries the MCP Bridge's tools for the session's role into the model's
// tool list.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema "properties"/"required" shape
}

// AgentSession is a single-shot conversation: one prompt, one reply stream.
type AgentSession interface {
	// SendMessage submits text and begins producing the reply on Messages().
	SendMessage(ctx context.Context, text string) error
	// Messages yields the reply as it's produced, terminated by a Role=result message.
	Messages() <-chan types.AgentMessage
	// End releases the session's resources. Idempotent.
	End() error
}

// StreamingSession is a long-lived conversation that can receive further
// input and be interrupted mid-generation.
type StreamingSession interface {
	AgentSession
	// PushText feeds additional input into the running conversation.
	PushText(ctx context.Context, text string) error
	// Interrupt aborts in-flight generation and drains pending waiters.
	Interrupt() error
}

// ToolExecutor actually runs a tool call that canUseTool has already allowed,
// returning its textual result. Bound by the orchestrator
// (Orchestrator.executor) to either the domain tool.Registry or the MCP bridge's
// in-process client, depending on which namespace the tool name falls in.
type ToolExecutor func(ctx context.Context, name string, input map[string]any) (output string, isError bool)

// ProviderPort is the capability the orchestrator depends on to create agent
// sessions, independent of which model backend is behind them.
type ProviderPort interface {
	CreateOneShotSession(ctx context.Context, cfg OneShotConfig) (AgentSession, error)
	CreateStreamingSession(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// Provider is a concrete model backend adapter: a named ProviderPort backed
// by an Eino ToolCallingChatModel.
type Provider interface {
	ProviderPort
	ID() string
	Name() string
	ChatModel() model.ToolCallingChatModel
}
