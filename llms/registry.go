package llms

import (
	"fmt"

	"github.com/medflowai/engine/registry"
)

// AdapterRegistry manages Adapter instances by name, replacing the
// teacher's LLMRegistry/LLMProvider pair with the provider-neutral
// Adapter contract this module builds its four vendor adapters against.
type AdapterRegistry struct {
	*registry.BaseRegistry[Adapter]
}

// NewAdapterRegistry creates an empty adapter registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		BaseRegistry: registry.NewBaseRegistry[Adapter](),
	}
}

// RegisterAdapter registers a pre-built adapter instance under name.
func (r *AdapterRegistry) RegisterAdapter(name string, adapter Adapter) error {
	if name == "" {
		return fmt.Errorf("adapter name cannot be empty")
	}
	if adapter == nil {
		return fmt.Errorf("adapter cannot be nil")
	}
	return r.Register(name, adapter)
}

// CreateAdapterFromConfig builds the adapter matching cfg.Type, registers
// it under name, and returns it.
func (r *AdapterRegistry) CreateAdapterFromConfig(name string, cfg Config, doer HTTPDoer) (Adapter, error) {
	if name == "" {
		return nil, fmt.Errorf("adapter name cannot be empty")
	}

	var adapter Adapter
	switch cfg.Type {
	case "openai":
		adapter = NewOpenAIAdapter(cfg, doer)
	case "anthropic":
		adapter = NewAnthropicAdapter(cfg, doer)
	case "gemini":
		adapter = NewGeminiAdapter(cfg, doer)
	case "ollama":
		adapter = NewOllamaAdapter(cfg, doer)
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", cfg.Type)
	}

	if err := r.RegisterAdapter(name, adapter); err != nil {
		return nil, fmt.Errorf("failed to register adapter: %w", err)
	}
	return adapter, nil
}

// GetAdapter retrieves a registered adapter by name.
func (r *AdapterRegistry) GetAdapter(name string) (Adapter, error) {
	adapter, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("adapter '%s' not found", name)
	}
	return adapter, nil
}

// ListAdapters returns the provider name reported by each registered
// adapter (not the registry key, which may differ - e.g. "specialist_a").
func (r *AdapterRegistry) ListAdapters() []string {
	names := make([]string, 0)
	for _, adapter := range r.List() {
		names = append(names, adapter.Name())
	}
	return names
}
