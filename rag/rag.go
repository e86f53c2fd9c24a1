// Package rag implements a retrieval-augmented generation agent against a
// deliberately narrow retrieval contract, grounded on medical_rag_agent.py.
// Concrete vector stores, embeddings, and rerankers are out of scope
// (spec.md §1 excludes "the RAG vector store and embeddings"); callers
// inject whatever RetrievalSource implementation they have.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/medflowai/engine/llms"
	"github.com/medflowai/engine/types"
)

// RetrievedChunk is one piece of retrieved context, mirroring the
// {id, content, source, score} shape RAGToolOutput's documents carried.
type RetrievedChunk struct {
	ID      string
	Content string
	Source  string
	Score   float64
}

// RetrievalSource is the narrow contract a RAG agent depends on - any
// vector store, search index, or static fixture that can answer a
// top-K similarity query. This interface is the component boundary
// spec.md §4.8a asks for: the agent never knows what's behind it.
type RetrievalSource interface {
	Retrieve(ctx context.Context, query string, topK int) ([]RetrievedChunk, error)
}

const promptTemplate = "You are an AI Medical Information Specialist. Your task is to answer the user's clinical query " +
	"based *solely* on the provided medical context. If the context is insufficient, state that clearly.\n\n" +
	"User Query: %q\n\n" +
	"Provided Medical Context:\n-------------------------\n%s-------------------------\n\n" +
	"Based on the context, provide a concise and factual answer to the user's query. " +
	"Cite the source IDs for each piece of information used in your answer.\n\nAnswer:"

// Input carries the query plus the RAG-specific knobs (knowledge base
// targeting, retrieval override, top-K), mirroring MedicalRAGAgentInput.
type Input struct {
	Query               string
	KnowledgeBaseID     string
	SearchQueryOverride string
	TopKRetrieval       int
	PatientContext      string
}

// Output is the synthesized answer plus the supporting context, mirroring
// MedicalRAGAgentOutput.
type Output struct {
	Response        string
	RetrievedDocs   []RetrievedChunk
	FullExplanation string
	SourcesCited    []string
	ErrorMessage    string
}

// Agent retrieves supporting context via a RetrievalSource, then asks an
// LLM to synthesize an answer grounded strictly in that context.
type Agent struct {
	Retrieval RetrievalSource
	LLM       llms.Adapter
	ModelName string
	Logger    hclog.Logger
}

// NewAgent builds a RAG agent. modelName defaults to "gpt-4-turbo" if
// empty, matching the original's default_model_name.
func NewAgent(retrieval RetrievalSource, llm llms.Adapter, modelName string, logger hclog.Logger) *Agent {
	if modelName == "" {
		modelName = "gpt-4-turbo"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Agent{Retrieval: retrieval, LLM: llm, ModelName: modelName, Logger: logger}
}

func (a *Agent) Name() string        { return "MedicalRAGAgent" }
func (a *Agent) Description() string {
	return "Retrieves information from medical knowledge bases using RAG and synthesizes answers to clinical queries, citing sources."
}

// Run retrieves context then synthesizes an answer, following
// MedicalRAGAgent.run's configuration-error / retrieval-error / synthesis
// stages in order, each returning a structured error output rather than
// propagating a Go error (matching the original's "never raise, always
// return a GenericOutput" style).
func (a *Agent) Run(ctx context.Context, in Input) Output {
	if a.Retrieval == nil {
		a.Logger.Error("RAG retrieval source not configured")
		return Output{
			Response:        "Agent failed: RAG retrieval source not configured.",
			FullExplanation: "Internal configuration error: retrieval source missing.",
			ErrorMessage:    "retrieval source not configured",
		}
	}
	if a.LLM == nil {
		a.Logger.Error("LLM adapter not configured for MedicalRAGAgent")
		return Output{
			Response:        "Agent failed: LLM adapter not configured.",
			FullExplanation: "Internal configuration error: LLM adapter missing.",
			ErrorMessage:    "LLM adapter not configured",
		}
	}

	ragQuery := in.SearchQueryOverride
	if ragQuery == "" {
		ragQuery = in.Query
		if in.PatientContext != "" {
			ragQuery = strings.TrimSpace(ragQuery + " " + in.PatientContext)
		}
	}

	topK := in.TopKRetrieval
	if topK <= 0 {
		topK = 3
	}

	chunks, err := a.Retrieval.Retrieve(ctx, ragQuery, topK)
	if err != nil {
		a.Logger.Error("RAG retrieval failed", "error", err)
		return Output{
			Response:        fmt.Sprintf("Agent failed: Error during RAG retrieval - %s", truncate(err.Error(), 100)),
			FullExplanation: fmt.Sprintf("Retrieval interaction failed: %v", err),
			ErrorMessage:    err.Error(),
		}
	}

	var contextParts []string
	var citedSources []string
	for _, chunk := range chunks {
		contextParts = append(contextParts, fmt.Sprintf("Source ID: %s\nContent: %s", chunk.ID, chunk.Content))
		citedSources = append(citedSources, chunk.ID)
	}
	contextStr := "No specific context was retrieved from the knowledge base for this query."
	if len(contextParts) > 0 {
		contextStr = strings.Join(contextParts, "\n\n") + "\n"
	}

	prompt := fmt.Sprintf(promptTemplate, ragQuery, contextStr)
	resp, callErr := a.LLM.ChatCompletion(ctx, []types.Message{{Role: "user", Content: prompt}}, a.ModelName, llms.CompletionOptions{Temperature: 0.3})
	if callErr != nil {
		return Output{
			Response:        fmt.Sprintf("Failed to synthesize answer: Unexpected error - %v", callErr),
			FullExplanation: fmt.Sprintf("An unexpected internal error occurred during synthesis: %s", truncate(callErr.Error(), 100)),
			ErrorMessage:    callErr.Error(),
		}
	}
	if resp.Error != "" {
		a.Logger.Error("LLM synthesis call failed", "error", resp.Error)
		return Output{
			Response:        fmt.Sprintf("Error: LLM processing failed. Details: %s", resp.Error),
			FullExplanation: fmt.Sprintf("LLM API interaction failed during synthesis: %s", truncate(resp.Error, 100)),
			ErrorMessage:    resp.Error,
		}
	}
	if resp.Content == "" {
		return Output{
			Response:        "Failed to synthesize answer: LLM returned empty content.",
			FullExplanation: "LLM provided no usable content for synthesis.",
			RetrievedDocs:   chunks,
			SourcesCited:    citedSources,
		}
	}

	return Output{
		Response:        resp.Content,
		RetrievedDocs:   chunks,
		FullExplanation: fmt.Sprintf("Answer synthesized using %d document(s) and LLM (%s).", len(contextParts), a.ModelName),
		SourcesCited:    citedSources,
	}
}

// AsAgent adapts Agent to the agent.Agent contract (Name/Description/
// Run(ctx, GenericInput, history) (GenericOutput, error)) so the RAG agent
// can be registered into an agent.Registry and dispatched by flow.Engine
// like any other specialist step, rather than only being reachable through
// its own Input/Output-shaped Run method.
type AsAgent struct {
	*Agent
}

// NewAsAgent wraps agent for registration under the agent.Agent contract.
func NewAsAgent(agent *Agent) *AsAgent {
	return &AsAgent{Agent: agent}
}

// Run translates the generic agent input/output shape into rag.Input/
// Output and back. PatientContext/KnowledgeBaseID/SearchQueryOverride/
// TopKRetrieval have no generic-input equivalent, so callers that need
// them should invoke Agent.Run directly instead of going through the
// registry.
func (a *AsAgent) Run(ctx context.Context, input types.GenericInput, history []types.Message) (types.GenericOutput, error) {
	out := a.Agent.Run(ctx, Input{Query: input.Query})
	return types.GenericOutput{
		Response:     out.Response,
		ErrorMessage: out.ErrorMessage,
		DebugInfo: map[string]any{
			"full_explanation": out.FullExplanation,
			"sources_cited":    out.SourcesCited,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
