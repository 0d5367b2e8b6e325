package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
)

// OpenAIProvider backs the "openai" provider type, including
// OpenAI-compatible and Azure OpenAI endpoints.
type OpenAIProvider struct {
	*baseProvider
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	UseAzure   bool
	APIVersion string
}

// NewOpenAIProvider creates a Provider backed by an Eino OpenAI chat model.
func NewOpenAIProvider(ctx context.Context, config *OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		if config.UseAzure {
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		} else {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, &ProviderError{Provider: "openai", Op: "auth", Err: fmt.Errorf("OPENAI_API_KEY not set")}
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	modelID := config.Model
	if modelID == "" {
		modelID = os.Getenv("OPENAI_MODEL_ID")
	}
	if modelID == "" {
		modelID = "gpt-4o"
	}

	cfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	if config.UseAzure {
		cfg.ByAzure = true
		cfg.APIVersion = config.APIVersion
		if cfg.APIVersion == "" {
			cfg.APIVersion = "2024-02-15-preview"
		}
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Op: "model", Err: err}
	}

	id := config.ID
	if id == "" {
		id = "openai"
	}

	return &OpenAIProvider{baseProvider: &baseProvider{id: id, name: "OpenAI", chatModel: chatModel}}, nil
}
