package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ark"
)

// ArkProvider backs the "ark" provider type for Volcengine's ARK platform,
// whose endpoints require an explicit model id per config.Validate's
// providersRequiringModel rule.
type ArkProvider struct {
	*baseProvider
}

// ArkConfig configures an ArkProvider.
type ArkConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string // ARK endpoint id
	MaxTokens int
}

// NewArkProvider creates a Provider backed by an Eino ARK chat model.
func NewArkProvider(ctx context.Context, config *ArkConfig) (*ArkProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ARK_API_KEY")
	}
	if apiKey == "" {
		return nil, &ProviderError{Provider: "ark", Op: "auth", Err: fmt.Errorf("ARK_API_KEY not set")}
	}

	modelID := config.Model
	if modelID == "" {
		modelID = os.Getenv("ARK_MODEL_ID")
	}
	if modelID == "" {
		return nil, &ProviderError{Provider: "ark", Op: "model", Err: fmt.Errorf("ARK endpoint id not set")}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ARK_BASE_URL")
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	cfg := &ark.ChatModelConfig{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: &maxTokens,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, &ProviderError{Provider: "ark", Op: "model", Err: err}
	}

	id := config.ID
	if id == "" {
		id = "ark"
	}

	return &ArkProvider{baseProvider: &baseProvider{id: id, name: "ARK", chatModel: chatModel}}, nil
}
