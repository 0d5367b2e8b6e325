package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgentMessage_AssistantJSON(t *testing.T) {
	msg := AgentMessage{
		Role: RoleAssistant,
		Assistant: []ContentItem{
			{Text: "hello"},
			{ToolUse: &ToolUse{ID: "tool-1", Name: "Write", Input: map[string]any{"file_path": "hello.ts"}}},
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded AgentMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, RoleAssistant, decoded.Role)
	require.Len(t, decoded.Assistant, 2)
	require.True(t, decoded.Assistant[0].IsText())
	require.False(t, decoded.Assistant[1].IsText())
	require.Equal(t, "Write", decoded.Assistant[1].ToolUse.Name)
}

func TestAgentMessage_UserToolResult(t *testing.T) {
	msg := AgentMessage{
		Role: RoleUser,
		User: []ToolResult{{ToolUseID: "tool-1", Text: "ok", IsError: false}},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded AgentMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.User, 1)
	require.Equal(t, "tool-1", decoded.User[0].ToolUseID)
}

func TestAgentMessage_SystemSubtype(t *testing.T) {
	msg := AgentMessage{Role: RoleSystem, System: SystemTurnLimitReached}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded AgentMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, SystemTurnLimitReached, decoded.System)
}

func TestDriverBatch_Joined(t *testing.T) {
	b := DriverBatch{Text: []string{"hello ", "world"}}
	require.Equal(t, "hello world", b.Joined())
}

func TestDriverBatch_EmptyJoined(t *testing.T) {
	var b DriverBatch
	require.Equal(t, "", b.Joined())
}
