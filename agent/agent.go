// Package agent defines the generic Agent contract every specialist and
// utility agent implements, plus the default prompt-preparation behavior
// agents inherit unless they override it - the Go shape of MedflowAI's
// BaseAgent (agent_name, description, llm_adapter, prompt_template,
// input_schema, output_schema, run()).
package agent

import (
	"context"
	"encoding/json"

	"github.com/medflowai/engine/llms"
	"github.com/medflowai/engine/types"
)

// defaultHistoryTurns bounds how many prior conversation turns
// PreparePrompt copies, as separate messages, between the system message
// and the user message, mirroring base_agent.py's "last 5 turns".
const defaultHistoryTurns = 5

// Agent is the contract every agent in this module implements: a name,
// description, and a run operation taking a generic input and returning
// a generic output (spec.md §4.5).
type Agent interface {
	Name() string
	Description() string
	Run(ctx context.Context, input types.GenericInput, history []types.Message) (types.GenericOutput, error)
}

// Base provides the fields and default prompt-building behavior every
// concrete agent embeds, following BaseAgent's constructor fields
// (agent_name, description, llm_adapter, prompt_template, model_name).
// Concrete agents embed Base and implement their own Run, optionally
// calling PreparePrompt for the default behavior.
type Base struct {
	AgentName      string
	AgentDesc      string
	LLM            llms.Adapter
	PromptTemplate string
	ModelName      string
}

func (b *Base) Name() string        { return b.AgentName }
func (b *Base) Description() string { return b.AgentDesc }

// PreparePrompt builds the default message list: a system message from
// the prompt template, the last N history turns, then a user message
// containing either input.Query or, if empty, the full input serialized
// as JSON - exactly base_agent.py's _prepare_prompt default.
func (b *Base) PreparePrompt(input types.GenericInput, history []types.Message) []types.Message {
	messages := make([]types.Message, 0, len(history)+2)
	if b.PromptTemplate != "" {
		messages = append(messages, types.Message{Role: "system", Content: b.PromptTemplate})
	}

	start := 0
	if len(history) > defaultHistoryTurns {
		start = len(history) - defaultHistoryTurns
	}
	messages = append(messages, history[start:]...)

	userContent := input.Query
	if userContent == "" {
		if raw, err := json.Marshal(input); err == nil {
			userContent = string(raw)
		}
	}
	messages = append(messages, types.Message{Role: "user", Content: userContent})
	return messages
}

// SimpleAgent is a generic agent that sends PreparePrompt's output
// straight to its LLM adapter and returns the text content as the
// response - the Go equivalent of a minimal BaseAgent subclass that
// doesn't override run() beyond calling the LLM once.
type SimpleAgent struct {
	Base
}

// NewSimpleAgent builds a SimpleAgent from the given fields.
func NewSimpleAgent(name, description, promptTemplate, modelName string, llm llms.Adapter) *SimpleAgent {
	return &SimpleAgent{Base: Base{
		AgentName:      name,
		AgentDesc:      description,
		LLM:            llm,
		PromptTemplate: promptTemplate,
		ModelName:      modelName,
	}}
}

func (a *SimpleAgent) Run(ctx context.Context, input types.GenericInput, history []types.Message) (types.GenericOutput, error) {
	if a.LLM == nil {
		return types.GenericOutput{}, types.NewAgentError(a.AgentName, "no LLM adapter configured", nil)
	}
	messages := a.PreparePrompt(input, history)

	resp, err := a.LLM.ChatCompletion(ctx, messages, a.ModelName, llms.CompletionOptions{})
	if err != nil {
		return types.GenericOutput{}, types.NewAgentError(a.AgentName, "LLM call failed", err)
	}
	if resp.Error != "" {
		return types.GenericOutput{ErrorMessage: resp.Error}, nil
	}

	return types.GenericOutput{Response: resp.Content}, nil
}
