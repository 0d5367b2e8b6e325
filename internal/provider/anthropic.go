package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/claude"
)

// AnthropicProvider backs the "anthropic" provider type with Claude models,
// direct API or AWS Bedrock.
type AnthropicProvider struct {
	*baseProvider
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	Thinking *claude.Thinking

	UseBedrock bool
	Region     string
	Profile    string
}

// NewAnthropicProvider creates a Provider backed by an Eino Claude chat model.
func NewAnthropicProvider(ctx context.Context, config *AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" && !config.UseBedrock {
		return nil, &ProviderError{Provider: "anthropic", Op: "auth", Err: fmt.Errorf("ANTHROPIC_API_KEY not set")}
	}

	modelID := config.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	var chatModel model.ToolCallingChatModel
	var err error

	if config.UseBedrock {
		bedrockModel := "anthropic." + modelID + "-v1:0"
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			ByBedrock: true,
			Region:    config.Region,
			Profile:   config.Profile,
			Model:     bedrockModel,
			MaxTokens: maxTokens,
			Thinking:  config.Thinking,
		})
	} else {
		cfg := &claude.Config{
			APIKey:    apiKey,
			Model:     modelID,
			MaxTokens: maxTokens,
			Thinking:  config.Thinking,
		}
		if config.BaseURL != "" {
			cfg.BaseURL = &config.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, cfg)
	}
	if err != nil {
		return nil, &ProviderError{Provider: "anthropic", Op: "model", Err: err}
	}

	id := config.ID
	if id == "" {
		id = "anthropic"
	}

	return &AnthropicProvider{baseProvider: &baseProvider{id: id, name: "Anthropic", chatModel: chatModel}}, nil
}
