// Package mcpbridge is the in-process MCP Bridge (spec.md §2/§6): a local
// message bus exposing the Driver's and Navigator's five decision/control
// operations as named MCP tools, grounded on the teacher's
// pkg/mcpserver/calculator (server.NewMCPServer/mcp.NewTool/s.AddTool shape)
// and internal/mcp/client.go's connection-management pattern, adapted from
// an outbound client/subprocess server pair to a single in-process pair.
package mcpbridge

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/trioagent/trio/pkg/types"
)

// Tool name constants, the literal names spec.md §6 assigns each operation.
const (
	ToolRequestReview   = "driver.requestReview"
	ToolRequestGuidance = "driver.requestGuidance"
	ToolApprove         = "navigator.approve"
	ToolDeny            = "navigator.deny"
	ToolCodeReview      = "navigator.codeReview"
)

// DriverSink receives a DriverCommand the instant its MCP tool call
// completes; the orchestrator binds it to the live Driver's command queue.
type DriverSink func(types.DriverCommand)

// NavigatorSink receives a NavigatorCommand the instant its MCP tool call
// completes; the orchestrator binds it to the live Navigator's command
// queue and the shared PermissionCoordinator.
type NavigatorSink func(types.NavigatorCommand)

// Bridge is the single in-process MCP server exposing all five tools. One
// Bridge exists per orchestration run (spec.md's Non-goals exclude
// multi-user concurrency, so a single pair of bound sinks is sufficient —
// spec.md §9 "the agents hold only callbacks the orchestrator injects").
type Bridge struct {
	Server *server.MCPServer

	mu            sync.RWMutex
	driverSink    DriverSink
	navigatorSink NavigatorSink
}

// New creates a Bridge with all five tools registered but unbound; callers
// must BindDriver/BindNavigator before starting either agent's session.
func New() *Bridge {
	b := &Bridge{
		Server: server.NewMCPServer("trio-bridge", "1.0.0", server.WithToolCapabilities(false)),
	}
	b.registerDriverTools()
	b.registerNavigatorTools()
	return b
}

// BindDriver attaches the live Driver's command sink. Re-binding (e.g. after
// a session recreation per spec.md §4.4 rule 6) simply replaces it.
func (b *Bridge) BindDriver(sink DriverSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.driverSink = sink
}

// BindNavigator attaches the live Navigator's command sink.
func (b *Bridge) BindNavigator(sink NavigatorSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigatorSink = sink
}

func (b *Bridge) emitDriver(cmd types.DriverCommand) {
	b.mu.RLock()
	sink := b.driverSink
	b.mu.RUnlock()
	if sink != nil {
		sink(cmd)
	}
}

func (b *Bridge) emitNavigator(cmd types.NavigatorCommand) {
	b.mu.RLock()
	sink := b.navigatorSink
	b.mu.RUnlock()
	if sink != nil {
		sink(cmd)
	}
}

func (b *Bridge) registerDriverTools() {
	reviewTool := mcp.NewTool(ToolRequestReview,
		mcp.WithDescription("Signal that the current batch of work is ready for the Navigator's review."),
		mcp.WithString("context", mcp.Description("Short summary of what changed since the last review.")),
	)
	b.Server.AddTool(reviewTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		b.emitDriver(types.DriverCommand{Kind: types.DriverRequestReview, Context: stringArg(args, "context")})
		return mcp.NewToolResultText("review requested"), nil
	})

	guidanceTool := mcp.NewTool(ToolRequestGuidance,
		mcp.WithDescription("Ask the Navigator for a hint without requesting a full review."),
		mcp.WithString("context", mcp.Description("What you are stuck on.")),
	)
	b.Server.AddTool(guidanceTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		b.emitDriver(types.DriverCommand{Kind: types.DriverRequestGuidance, Context: stringArg(args, "context")})
		return mcp.NewToolResultText("guidance requested"), nil
	})
}

func (b *Bridge) registerNavigatorTools() {
	approveTool := mcp.NewTool(ToolApprove,
		mcp.WithDescription("Grant a pending file-modification permission request."),
		mcp.WithString("requestId", mcp.Description("The request-id of the pending permission request, if known.")),
		mcp.WithString("comment", mcp.Description("Optional note to the Driver.")),
	)
	b.Server.AddTool(approveTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		b.emitNavigator(types.NavigatorCommand{
			Kind:      types.NavigatorApprove,
			RequestID: stringArg(args, "requestId"),
			Comment:   stringArg(args, "comment"),
		})
		return mcp.NewToolResultText("approved"), nil
	})

	denyTool := mcp.NewTool(ToolDeny,
		mcp.WithDescription("Refuse a pending file-modification permission request."),
		mcp.WithString("requestId", mcp.Description("The request-id of the pending permission request, if known.")),
		mcp.WithString("comment", mcp.Description("Reason for the refusal, shown to the Driver verbatim.")),
	)
	b.Server.AddTool(denyTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		b.emitNavigator(types.NavigatorCommand{
			Kind:      types.NavigatorDeny,
			RequestID: stringArg(args, "requestId"),
			Comment:   stringArg(args, "comment"),
		})
		return mcp.NewToolResultText("denied"), nil
	})

	codeReviewTool := mcp.NewTool(ToolCodeReview,
		mcp.WithDescription("Deliver a pass/fail verdict on the Driver's current batch of work."),
		mcp.WithBoolean("pass", mcp.Required(), mcp.Description("true if the batch passes review.")),
		mcp.WithString("comment", mcp.Description("Feedback shown to the Driver verbatim on failure, or a summary on success.")),
	)
	b.Server.AddTool(codeReviewTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		b.emitNavigator(types.NavigatorCommand{
			Kind:    types.NavigatorCodeReview,
			Pass:    boolArg(args, "pass"),
			Comment: stringArg(args, "comment"),
		})
		return mcp.NewToolResultText("review recorded"), nil
	})
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}
