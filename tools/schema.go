package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	santhoshjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaForInput reflects a Go input struct (pass a zero value, e.g.
// TerminologyLookupInput{}) into a JSON Schema map ready to embed as a tool's
// function-calling "parameters" field, playing the role BaseTool's
// model_json_schema() plays for a Pydantic input_schema.
func SchemaForInput(input any) (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(input)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("decode reflected schema: %w", err)
	}
	// Drop metadata fields a function-calling "parameters" object doesn't
	// carry - the LLM only needs type/properties/required.
	delete(asMap, "$schema")
	delete(asMap, "$id")
	return asMap, nil
}

// schemaCache memoizes compiled validators by their marshaled schema
// document, following the nexus pluginsdk validation pattern exactly -
// compiling a jsonschema.Schema is not free and tool schemas are static.
var schemaCache sync.Map

func compileSchema(schema map[string]any) (*santhoshjsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for compilation: %w", err)
	}
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*santhoshjsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := santhoshjsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateArgs checks args against schema, returning a BadArgs-flavored
// error on mismatch - step 2 of executeToolCall in spec.md §4.4.
func ValidateArgs(schema map[string]any, args map[string]any) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode tool arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("tool arguments invalid: %w", err)
	}
	return nil
}

// ToLLMSchema renders a tool's Info as the OpenAI-style function-calling
// descriptor {type:"function", function:{name, description, parameters}},
// the Go equivalent of BaseTool.to_llm_schema().
func ToLLMSchema(info Info) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        info.Name,
			"description": info.Description,
			"parameters":  info.Parameters,
		},
	}
}
