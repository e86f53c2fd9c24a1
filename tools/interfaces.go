// Package tools provides the tool contract, JSON-Schema-backed argument
// validation, and a name-keyed registry agents and the flow engine call
// through executeToolCall, grounded on MedflowAI's BaseTool/ToolRegistry
// and the teacher's repository-seeded ToolRegistry.
package tools

import "context"

// Info describes a tool's identity and LLM-facing schema, mirroring
// BaseTool's name/description/input_schema triple.
type Info struct {
	Name        string
	Description string
	// Parameters is the tool's input JSON Schema, generated from its Go
	// input type via invopop/jsonschema (see SchemaForInput).
	Parameters map[string]any
}

// Result is what Execute returns: a success/failure flag plus either a
// textual/structured payload or an error message, matching the teacher's
// ToolResult shape.
type Result struct {
	Success  bool
	Content  string
	Output   any
	Error    string
	ToolName string
}

// Tool is the common contract every tool implements. Execute receives
// args already validated against the tool's input schema - callers never
// call Execute directly, they go through Registry.ExecuteToolCall.
type Tool interface {
	Info() Info
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Repository is a source that can be asked to discover and list tools -
// e.g. a statically code-registered set, or one seeded from config. A
// Registry can hold tools from more than one repository at once while
// still exposing the flat name -> Tool lookup spec.md §4.4 requires.
type Repository interface {
	Name() string
	DiscoverTools(ctx context.Context) error
	ListTools() []Info
	GetTool(name string) (Tool, bool)
}
