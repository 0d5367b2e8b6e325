package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/trioagent/trio/internal/config"
)

// Registry resolves the Provider backing each of the three agent roles
// (architect, navigator, driver) from config.Config. BuildFromConfig builds
// every role's backend up front; if any one fails to build, the whole call
// returns an error.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, keyed by its ID.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	return p, nil
}

// BuildFromConfig constructs and registers the providers named by the
// architect/navigator/driver AgentConfigs, deduplicating by provider
// type+model so two roles sharing a backend share one chat model instance.
func BuildFromConfig(ctx context.Context, cfg *config.Config) (*Registry, error) {
	r := NewRegistry()

	agents := map[string]config.AgentConfig{
		"architect": cfg.Architect,
		"navigator": cfg.Navigator,
		"driver":    cfg.Driver,
	}

	built := make(map[string]Provider) // keyed by providerType+model
	for role, agent := range agents {
		key := agent.ProviderType + "/" + agent.Model
		if p, ok := built[key]; ok {
			r.Register(providerAlias{Provider: p, alias: role})
			continue
		}

		p, err := buildProvider(ctx, agent)
		if err != nil {
			return nil, fmt.Errorf("building provider for %s: %w", role, err)
		}
		built[key] = p
		r.Register(providerAlias{Provider: p, alias: role})
	}

	return r, nil
}

func buildProvider(ctx context.Context, agent config.AgentConfig) (Provider, error) {
	switch agent.ProviderType {
	case "anthropic":
		return NewAnthropicProvider(ctx, &AnthropicConfig{Model: agent.Model})
	case "bedrock":
		return NewAnthropicProvider(ctx, &AnthropicConfig{ID: "bedrock", Model: agent.Model, UseBedrock: true})
	case "openai":
		return NewOpenAIProvider(ctx, &OpenAIConfig{Model: agent.Model})
	case "ark":
		return NewArkProvider(ctx, &ArkConfig{Model: agent.Model})
	default:
		return nil, fmt.Errorf("unknown provider type: %s", agent.ProviderType)
	}
}

// providerAlias lets the same built Provider be registered under a role name
// distinct from its backend ID, without constructing a second chat model.
type providerAlias struct {
	Provider
	alias string
}

func (p providerAlias) ID() string { return p.alias }
