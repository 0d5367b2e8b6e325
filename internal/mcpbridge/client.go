package mcpbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trioagent/trio/internal/logging"
)

// Client is a per-session in-process MCP client bound to a Bridge's server,
// grounded on the teacher's internal/mcp/client.go connection-management
// shape (Client/Tools()/ExecuteTool()) but using mcp-go's in-process
// transport instead of an outbound SSE/stdio connection, since the Bridge
// and its callers always share one process (spec.md §9).
type Client struct {
	raw *client.Client
}

// NewClient opens an in-process connection to bridge's MCP server and
// completes the MCP initialize handshake.
func NewClient(ctx context.Context, bridge *Bridge) (*Client, error) {
	raw, err := client.NewInProcessClient(bridge.Server)
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: create in-process client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "trio", Version: "1.0.0"}

	if _, err := raw.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("mcpbridge: initialize: %w", err)
	}
	return &Client{raw: raw}, nil
}

// Close releases the client's resources.
func (c *Client) Close() error { return c.raw.Close() }

// Owns reports whether name falls in this client's MCP namespace (any tool
// whose name contains a '.', since every bridge tool is "driver.*" or
// "navigator.*" and no domain tool uses a dot).
func Owns(name string) bool {
	return strings.Contains(name, ".")
}

// Execute calls a bridge tool by name and returns its textual result,
// conforming to provider.ToolExecutor's (output string, isError bool)
// contract so it can be wired into StreamingConfig.Execute alongside the
// domain tool registry's executor.
func (c *Client) Execute(ctx context.Context, name string, input map[string]any) (string, bool) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = input

	res, err := c.raw.CallTool(ctx, req)
	if err != nil {
		logging.Warn().Err(err).Str("tool", name).Msg("mcpbridge: tool call failed")
		return err.Error(), true
	}

	var text strings.Builder
	for _, item := range res.Content {
		if tc, ok := item.(mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	return text.String(), res.IsError
}
