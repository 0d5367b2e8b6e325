package mcpbridge

import "github.com/trioagent/trio/internal/provider"

// DriverToolDefinitions is the schema set bound into the Driver's
// StreamingConfig.AdditionalMCPTools, mirroring the two tools registered by
// registerDriverTools so the model sees identical descriptions on both the
// binding and execution sides.
func DriverToolDefinitions() []*provider.ToolDefinition {
	return []*provider.ToolDefinition{
		{
			Name:        ToolRequestReview,
			Description: "Signal that the current batch of work is ready for the Navigator's review.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"context": map[string]any{"type": "string", "description": "Short summary of what changed since the last review."},
				},
			},
		},
		{
			Name:        ToolRequestGuidance,
			Description: "Ask the Navigator for a hint without requesting a full review.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"context": map[string]any{"type": "string", "description": "What you are stuck on."},
				},
			},
		},
	}
}

// NavigatorToolDefinitions is the schema set bound into the Navigator's
// StreamingConfig.AdditionalMCPTools.
func NavigatorToolDefinitions() []*provider.ToolDefinition {
	return []*provider.ToolDefinition{
		{
			Name:        ToolApprove,
			Description: "Grant a pending file-modification permission request.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"requestId": map[string]any{"type": "string", "description": "The request-id of the pending permission request, if known."},
					"comment":   map[string]any{"type": "string", "description": "Optional note to the Driver."},
				},
			},
		},
		{
			Name:        ToolDeny,
			Description: "Refuse a pending file-modification permission request.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"requestId": map[string]any{"type": "string", "description": "The request-id of the pending permission request, if known."},
					"comment":   map[string]any{"type": "string", "description": "Reason for the refusal, shown to the Driver verbatim."},
				},
			},
		},
		{
			Name:        ToolCodeReview,
			Description: "Deliver a pass/fail verdict on the Driver's current batch of work.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pass":    map[string]any{"type": "boolean", "description": "true if the batch passes review."},
					"comment": map[string]any{"type": "string", "description": "Feedback shown to the Driver verbatim on failure, or a summary on success."},
				},
				"required": []string{"pass"},
			},
		},
	}
}
