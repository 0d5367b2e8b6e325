package mcpbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trioagent/trio/pkg/types"
)

func TestClient_Owns(t *testing.T) {
	require.True(t, Owns("driver.requestReview"))
	require.True(t, Owns("navigator.codeReview"))
	require.False(t, Owns("read"))
	require.False(t, Owns("write"))
}

func TestBridge_DriverRequestReview_ReachesSink(t *testing.T) {
	bridge := New()

	var got types.DriverCommand
	bridge.BindDriver(func(cmd types.DriverCommand) { got = cmd })

	client, err := NewClient(context.Background(), bridge)
	require.NoError(t, err)
	defer client.Close()

	text, isErr := client.Execute(context.Background(), ToolRequestReview, map[string]any{"context": "ready for review"})
	require.False(t, isErr)
	require.NotEmpty(t, text)

	require.Equal(t, types.DriverRequestReview, got.Kind)
	require.Equal(t, "ready for review", got.Context)
}

func TestBridge_DriverRequestGuidance_ReachesSink(t *testing.T) {
	bridge := New()

	var got types.DriverCommand
	bridge.BindDriver(func(cmd types.DriverCommand) { got = cmd })

	client, err := NewClient(context.Background(), bridge)
	require.NoError(t, err)
	defer client.Close()

	_, isErr := client.Execute(context.Background(), ToolRequestGuidance, map[string]any{"context": "stuck on parsing"})
	require.False(t, isErr)
	require.Equal(t, types.DriverRequestGuidance, got.Kind)
	require.Equal(t, "stuck on parsing", got.Context)
}

func TestBridge_NavigatorCodeReview_ReachesSink(t *testing.T) {
	bridge := New()

	var got types.NavigatorCommand
	bridge.BindNavigator(func(cmd types.NavigatorCommand) { got = cmd })

	client, err := NewClient(context.Background(), bridge)
	require.NoError(t, err)
	defer client.Close()

	_, isErr := client.Execute(context.Background(), ToolCodeReview, map[string]any{"pass": true, "comment": "ship it"})
	require.False(t, isErr)
	require.Equal(t, types.NavigatorCodeReview, got.Kind)
	require.True(t, got.Pass)
	require.Equal(t, "ship it", got.Comment)
}

func TestBridge_NavigatorApproveDeny_CarryRequestID(t *testing.T) {
	bridge := New()

	var cmds []types.NavigatorCommand
	bridge.BindNavigator(func(cmd types.NavigatorCommand) { cmds = append(cmds, cmd) })

	client, err := NewClient(context.Background(), bridge)
	require.NoError(t, err)
	defer client.Close()

	_, isErr := client.Execute(context.Background(), ToolApprove, map[string]any{"requestId": "req-1", "comment": "fine"})
	require.False(t, isErr)
	_, isErr = client.Execute(context.Background(), ToolDeny, map[string]any{"requestId": "req-2", "comment": "no"})
	require.False(t, isErr)

	require.Len(t, cmds, 2)
	require.Equal(t, types.NavigatorApprove, cmds[0].Kind)
	require.Equal(t, "req-1", cmds[0].RequestID)
	require.Equal(t, types.NavigatorDeny, cmds[1].Kind)
	require.Equal(t, "req-2", cmds[1].RequestID)
}

func TestBridge_UnboundSink_DoesNotPanic(t *testing.T) {
	bridge := New() // neither BindDriver nor BindNavigator called

	client, err := NewClient(context.Background(), bridge)
	require.NoError(t, err)
	defer client.Close()

	_, isErr := client.Execute(context.Background(), ToolRequestReview, map[string]any{"context": "x"})
	require.False(t, isErr)
}

func TestBridge_RebindDriver_ReplacesSink(t *testing.T) {
	bridge := New()

	var first, second int
	bridge.BindDriver(func(cmd types.DriverCommand) { first++ })
	bridge.BindDriver(func(cmd types.DriverCommand) { second++ })

	client, err := NewClient(context.Background(), bridge)
	require.NoError(t, err)
	defer client.Close()

	_, isErr := client.Execute(context.Background(), ToolRequestReview, map[string]any{})
	require.False(t, isErr)
	require.Equal(t, 0, first)
	require.Equal(t, 1, second)
}
