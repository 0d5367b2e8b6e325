package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ProviderError{Provider: "anthropic", Op: "connection", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "anthropic")
	assert.Contains(t, err.Error(), "connection")
}

func TestToEinoToolInfo(t *testing.T) {
	defs := []*ToolDefinition{
		{
			Name:        "approve",
			Description: "approve the pending driver action",
			Parameters: map[string]any{
				"properties": map[string]any{
					"comment": map[string]any{"type": "string", "description": "optional note"},
				},
				"required": []any{},
			},
		},
	}

	tools := toEinoToolInfo(defs)
	if assert.Len(t, tools, 1) {
		assert.Equal(t, "approve", tools[0].Name)
		assert.Equal(t, "approve the pending driver action", tools[0].Desc)
	}
}

func TestToEinoParams_Required(t *testing.T) {
	params := toEinoParams(map[string]any{
		"properties": map[string]any{
			"reason": map[string]any{"type": "string"},
			"count":  map[string]any{"type": "integer"},
		},
		"required": []any{"reason"},
	})

	if assert.Contains(t, params, "reason") {
		assert.True(t, params["reason"].Required)
	}
	if assert.Contains(t, params, "count") {
		assert.False(t, params["count"].Required)
		assert.Equal(t, "integer", string(params["count"].Type))
	}
}

func TestToEinoParams_Nil(t *testing.T) {
	assert.Nil(t, toEinoParams(nil))
}
