// Package llms provides the provider-neutral LLM adapter contract and four
// vendor-shaped adapters (OpenAI-style, Gemini-style, Anthropic-style,
// Ollama-style) that all map onto types.UnifiedLLMResponse, insulating
// agents and the flow engine from any single vendor's wire format.
//
// Concrete vendor network calls are out of scope (spec.md §1); these
// adapters implement the request-building/response-mapping/error-mapping
// logic and delegate the actual round trip through HTTPDoer so tests can
// substitute a fake transport.
package llms

import (
	"context"
	"net/http"

	"github.com/medflowai/engine/types"
)

// HTTPDoer is the minimal surface adapters need from an HTTP client,
// letting tests inject a fake transport instead of dialing a network -
// mirrors how the teacher's internal/httpclient decouples providers from a
// live connection.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Adapter is the common interface every vendor-shaped adapter implements.
type Adapter interface {
	// ChatCompletion generates a response from a list of chat messages.
	ChatCompletion(ctx context.Context, messages []types.Message, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error)
	// Completion generates a response from a single prompt string.
	Completion(ctx context.Context, prompt string, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error)
	// Name identifies the adapter's provider ("openai", "gemini", "anthropic", "ollama").
	Name() string
}

// CompletionOptions carries the provider-agnostic knobs a caller may set;
// each adapter maps whichever subset its vendor API supports.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
	Tools       []ToolDefinition
}

// ToolDefinition is the provider-neutral function-calling descriptor an
// adapter maps into its vendor's native tool/function format.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// Config holds the per-provider connection settings an adapter is built
// from, filled in by the caller. Nothing in this module maps an
// orchestration config's llm_overrides onto it.
type Config struct {
	Type        string // "openai", "gemini", "anthropic", "ollama"
	Model       string
	APIKey      string
	Host        string
	Temperature float64
	MaxTokens   int
}

// SetDefaults fills unset fields with the zero-config defaults, following
// the teacher's LLMProviderConfig.SetDefaults pattern.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Host == "" {
		switch c.Type {
		case "openai":
			c.Host = "https://api.openai.com/v1"
		case "anthropic":
			c.Host = "https://api.anthropic.com"
		case "gemini":
			c.Host = "https://generativelanguage.googleapis.com/v1beta"
		case "ollama":
			c.Host = "http://localhost:11434"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
}
