package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/medflowai/engine/registry"
	"github.com/medflowai/engine/types"
)

// entry pairs a registered tool with the repository it came from, mirroring
// the teacher's ToolEntry (tool + repository + repository type).
type entry struct {
	tool       Tool
	repository string
}

// Registry holds tools by unique name, seedable from more than one
// Repository while still exposing the flat executeToolCall(name, args)
// contract spec.md §4.4 requires. Re-registration replaces silently, per
// the original ToolRegistry.register_tool's overwrite behavior.
type Registry struct {
	*registry.BaseRegistry[entry]
	mu sync.Mutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[entry]()}
}

// RegisterTool registers a single tool instance directly, bypassing the
// repository machinery - the common case for statically-defined tools.
func (r *Registry) RegisterTool(tool Tool) error {
	info := tool.Info()
	if info.Name == "" {
		return types.NewToolRegistryError("RegisterTool", "tool name cannot be empty", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// BaseRegistry.Register errors on duplicates; silently overwrite
	// instead, matching the original's "Warning: overwriting" + continue.
	_ = r.Remove(info.Name)
	return r.Register(info.Name, entry{tool: tool, repository: "local"})
}

// RegisterRepository discovers tools from repo and registers each one,
// recording its originating repository's name on the registry entry.
func (r *Registry) RegisterRepository(ctx context.Context, repo Repository) error {
	if err := repo.DiscoverTools(ctx); err != nil {
		return types.NewToolRegistryError("RegisterRepository", "discovery failed for "+repo.Name(), err)
	}
	for _, info := range repo.ListTools() {
		tool, ok := repo.GetTool(info.Name)
		if !ok {
			continue
		}
		r.mu.Lock()
		_ = r.Remove(info.Name)
		err := r.Register(info.Name, entry{tool: tool, repository: repo.Name()})
		r.mu.Unlock()
		if err != nil {
			return types.NewToolRegistryError("RegisterRepository", "failed to register tool "+info.Name, err)
		}
	}
	return nil
}

// GetTool retrieves a tool by name.
func (r *Registry) GetTool(name string) (Tool, error) {
	e, ok := r.Get(name)
	if !ok {
		return nil, types.NewToolRegistryError("GetTool", "tool "+name+" not found", nil)
	}
	return e.tool, nil
}

// ListTools returns every registered tool's Info, sorted by name for
// deterministic output (e.g. when rendered into an LLM tools array).
func (r *Registry) ListTools() []Info {
	var infos []Info
	for _, e := range r.List() {
		infos = append(infos, e.tool.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// SchemasForLLM renders every registered tool as an LLM function-calling
// descriptor, the Go equivalent of get_tool_schemas_for_llm().
func (r *Registry) SchemasForLLM() []map[string]any {
	var schemas []map[string]any
	for _, info := range r.ListTools() {
		schemas = append(schemas, ToLLMSchema(info))
	}
	return schemas
}

// ExecuteToolCall implements spec.md §4.4's three-step contract: look up
// by name, validate args against the tool's input schema, then execute.
func (r *Registry) ExecuteToolCall(ctx context.Context, name string, args map[string]any) (Result, error) {
	tool, err := r.GetTool(name)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ToolName: name}, err
	}

	info := tool.Info()
	if info.Parameters != nil {
		if err := ValidateArgs(info.Parameters, args); err != nil {
			wrapped := types.NewToolRegistryError("ExecuteToolCall", "invalid arguments for tool "+name, err)
			return Result{Success: false, Error: wrapped.Error(), ToolName: name}, wrapped
		}
	}

	result, err := tool.Execute(ctx, args)
	result.ToolName = name
	return result, err
}
