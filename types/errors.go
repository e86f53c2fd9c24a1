// Package types holds the data model shared across the MedflowAI engine:
// LLM response envelopes, agent I/O contracts, and the typed error values
// the agent, divergence, tools and flow packages return. Other packages
// (orchestration, sessionstore, registry, agent's Registry) return plain
// fmt.Errorf values.
package types

import "fmt"

// EngineError is the common typed error shape used across this module,
// mirroring the teacher's ConversationError/ToolRegistryError pattern:
// component + operation + message + optionally a wrapped cause.
type EngineError struct {
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError builds an EngineError with the given component/operation tag.
func NewEngineError(component, operation, message string, err error) *EngineError {
	return &EngineError{Component: component, Operation: operation, Message: message, Err: err}
}

// AgentError reports a failure raised while running an agent.
type AgentError struct {
	AgentName string
	Message   string
	Err       error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %s: %v", e.AgentName, e.Message, e.Err)
	}
	return fmt.Sprintf("agent %s: %s", e.AgentName, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError builds an AgentError for the named agent.
func NewAgentError(agentName, message string, err error) *AgentError {
	return &AgentError{AgentName: agentName, Message: message, Err: err}
}

// ToolRegistryError reports a failure registering, discovering, or running a tool.
type ToolRegistryError struct {
	Action  string
	Message string
	Err     error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[ToolRegistry:%s] %s: %v", e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[ToolRegistry:%s] %s", e.Action, e.Message)
}

func (e *ToolRegistryError) Unwrap() error {
	return e.Err
}

// NewToolRegistryError builds a ToolRegistryError for the given registry action.
func NewToolRegistryError(action, message string, err error) *ToolRegistryError {
	return &ToolRegistryError{Action: action, Message: message, Err: err}
}

// FlowError reports a failure executing an orchestration flow step.
type FlowError struct {
	StepName string
	StepType string
	Message  string
	Err      error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("flow step %s (%s): %s: %v", e.StepName, e.StepType, e.Message, e.Err)
	}
	return fmt.Sprintf("flow step %s (%s): %s", e.StepName, e.StepType, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// NewFlowError builds a FlowError for the named step.
func NewFlowError(stepName, stepType, message string, err error) *FlowError {
	return &FlowError{StepName: stepName, StepType: stepType, Message: message, Err: err}
}
