package llm

import (
	"fmt"
	"strings"
	"sync"
)

// ModelRole selects which provider/model serves a call.
type ModelRole string

const (
	RolePrimary ModelRole = "primary"
	RoleCheap   ModelRole = "cheap"
	RoleVision  ModelRole = "vision"
)

// FactoryConfig maps roles onto providers and models. Roles may point at
// different models of the same provider or different providers entirely.
type FactoryConfig struct {
	Provider     string // "hosted", "openai", "ollama"
	APIKey       string
	BaseURL      string
	Model        string // primary role
	CheapModel   string // falls back to Model
	VisionModel  string // falls back to Model
	OllamaURL    string
	Retry        RetryPolicy
}

// Factory hands out retry-wrapped providers by role, constructing each
// once. Safe for concurrent use.
type Factory struct {
	cfg   FactoryConfig
	mu    sync.Mutex
	cache map[ModelRole]Provider
}

// NewFactory builds the role factory.
func NewFactory(cfg FactoryConfig) *Factory {
	return &Factory{cfg: cfg, cache: make(map[ModelRole]Provider)}
}

// ForRole returns the provider serving the given role.
func (f *Factory) ForRole(role ModelRole) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[role]; ok {
		return p, nil
	}

	model := f.cfg.Model
	switch role {
	case RoleCheap:
		if f.cfg.CheapModel != "" {
			model = f.cfg.CheapModel
		}
	case RoleVision:
		if f.cfg.VisionModel != "" {
			model = f.cfg.VisionModel
		}
	}

	inner, err := f.build(model, role == RoleVision)
	if err != nil {
		return nil, err
	}

	p := Provider(WithRetry(inner, f.cfg.Retry))
	f.cache[role] = p
	return p, nil
}

func (f *Factory) build(model string, wantVision bool) (Provider, error) {
	switch strings.ToLower(f.cfg.Provider) {
	case "hosted", "anthropic":
		return NewHostedProvider(f.cfg.APIKey, model, f.cfg.BaseURL), nil
	case "openai", "generic":
		return NewOpenAICompatProvider(f.cfg.APIKey, model, f.cfg.BaseURL, wantVision), nil
	case "ollama", "local":
		return NewOllamaProvider(f.cfg.OllamaURL, model, wantVision), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", f.cfg.Provider)
	}
}
