package agent

import (
	"fmt"

	"github.com/medflowai/engine/registry"
)

// Registry holds agents by name, the Go equivalent of the orchestrator's
// agent_map, following the teacher's generic BaseRegistry pattern used by
// llms.AdapterRegistry and tools.Registry.
type Registry struct {
	*registry.BaseRegistry[Agent]
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Agent]()}
}

// RegisterAgent registers agent under its own Name().
func (r *Registry) RegisterAgent(a Agent) error {
	if a == nil {
		return fmt.Errorf("agent cannot be nil")
	}
	name := a.Name()
	if name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	return r.Register(name, a)
}

// GetAgent retrieves a registered agent by name.
func (r *Registry) GetAgent(name string) (Agent, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("agent '%s' not found", name)
	}
	return a, nil
}

// First returns an arbitrary registered agent, used as the flow engine's
// last-resort default-agent fallback (spec.md §4.7: explicit -> default ->
// first registered). Go maps have no stable order, so "first" here means
// "some registered agent" rather than insertion order - acceptable since
// callers only reach this branch when no default was configured at all.
func (r *Registry) First() (Agent, bool) {
	for _, a := range r.List() {
		return a, true
	}
	return nil, false
}
