package rag

import (
	"context"
	"testing"

	"github.com/medflowai/engine/agent"
	"github.com/medflowai/engine/llms"
	"github.com/medflowai/engine/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ agent.Agent = (*AsAgent)(nil)

type fakeRetrieval struct {
	chunks []RetrievedChunk
	err    error
	gotQ   string
	gotK   int
}

func (f *fakeRetrieval) Retrieve(ctx context.Context, query string, topK int) ([]RetrievedChunk, error) {
	f.gotQ, f.gotK = query, topK
	return f.chunks, f.err
}

type fakeAdapter struct {
	resp types.UnifiedLLMResponse
	err  error
	got  []types.Message
	opts llms.CompletionOptions
}

func (f *fakeAdapter) ChatCompletion(ctx context.Context, messages []types.Message, modelName string, opts llms.CompletionOptions) (types.UnifiedLLMResponse, error) {
	f.got = messages
	f.opts = opts
	return f.resp, f.err
}

func (f *fakeAdapter) Completion(ctx context.Context, prompt string, modelName string, opts llms.CompletionOptions) (types.UnifiedLLMResponse, error) {
	return f.ChatCompletion(ctx, []types.Message{{Role: "user", Content: prompt}}, modelName, opts)
}

func (f *fakeAdapter) Name() string { return "fake" }

func TestAgentRun(t *testing.T) {
	t.Run("synthesizes an answer from retrieved chunks, citing their IDs", func(t *testing.T) {
		retrieval := &fakeRetrieval{chunks: []RetrievedChunk{
			{ID: "doc-1", Content: "Metformin is first-line therapy for type 2 diabetes."},
			{ID: "doc-2", Content: "Monitor renal function while on metformin."},
		}}
		llm := &fakeAdapter{resp: types.UnifiedLLMResponse{Content: "Metformin is first-line [doc-1]; monitor renal function [doc-2]."}}
		a := NewAgent(retrieval, llm, "", nil)

		out := a.Run(context.Background(), Input{Query: "what's first-line therapy for T2DM?"})

		assert.Equal(t, "Metformin is first-line [doc-1]; monitor renal function [doc-2].", out.Response)
		assert.Len(t, out.RetrievedDocs, 2)
		assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, out.SourcesCited)
		assert.Empty(t, out.ErrorMessage)
		assert.InDelta(t, 0.3, llm.opts.Temperature, 0.0001)
	})

	t.Run("prefers an explicit search query override and folds in patient context otherwise", func(t *testing.T) {
		retrieval := &fakeRetrieval{}
		llm := &fakeAdapter{resp: types.UnifiedLLMResponse{Content: "ok"}}
		a := NewAgent(retrieval, llm, "", nil)

		a.Run(context.Background(), Input{SearchQueryOverride: "metformin renal dosing"})
		assert.Equal(t, "metformin renal dosing", retrieval.gotQ)

		a.Run(context.Background(), Input{Query: "dosing", PatientContext: "eGFR 40"})
		assert.Equal(t, "dosing eGFR 40", retrieval.gotQ)
	})

	t.Run("defaults top-K to 3", func(t *testing.T) {
		retrieval := &fakeRetrieval{}
		llm := &fakeAdapter{resp: types.UnifiedLLMResponse{Content: "ok"}}
		a := NewAgent(retrieval, llm, "", nil)

		a.Run(context.Background(), Input{Query: "q"})
		assert.Equal(t, 3, retrieval.gotK)
	})

	t.Run("falls back to a no-context message when retrieval returns nothing", func(t *testing.T) {
		retrieval := &fakeRetrieval{}
		llm := &fakeAdapter{resp: types.UnifiedLLMResponse{Content: "I don't have enough information."}}
		a := NewAgent(retrieval, llm, "", nil)

		out := a.Run(context.Background(), Input{Query: "rare disease"})
		require.Empty(t, out.ErrorMessage)
		assert.Contains(t, llm.got[0].Content, "No specific context was retrieved")
		assert.Empty(t, out.SourcesCited)
	})

	t.Run("returns a structured error output when retrieval fails", func(t *testing.T) {
		retrieval := &fakeRetrieval{err: assert.AnError}
		llm := &fakeAdapter{}
		a := NewAgent(retrieval, llm, "", nil)

		out := a.Run(context.Background(), Input{Query: "q"})
		assert.NotEmpty(t, out.ErrorMessage)
		assert.Nil(t, out.RetrievedDocs)
	})

	t.Run("returns a structured error output when the LLM call fails", func(t *testing.T) {
		retrieval := &fakeRetrieval{chunks: []RetrievedChunk{{ID: "doc-1", Content: "x"}}}
		llm := &fakeAdapter{resp: types.UnifiedLLMResponse{Error: "rate limited"}}
		a := NewAgent(retrieval, llm, "", nil)

		out := a.Run(context.Background(), Input{Query: "q"})
		assert.Equal(t, "rate limited", out.ErrorMessage)
	})

	t.Run("rejects a missing retrieval source", func(t *testing.T) {
		a := NewAgent(nil, &fakeAdapter{}, "", nil)
		out := a.Run(context.Background(), Input{Query: "q"})
		assert.NotEmpty(t, out.ErrorMessage)
	})

	t.Run("rejects a missing LLM adapter", func(t *testing.T) {
		a := NewAgent(&fakeRetrieval{}, nil, "", nil)
		out := a.Run(context.Background(), Input{Query: "q"})
		assert.NotEmpty(t, out.ErrorMessage)
	})
}

func TestAsAgent(t *testing.T) {
	t.Run("registers and dispatches through the agent.Agent contract", func(t *testing.T) {
		retrieval := &fakeRetrieval{chunks: []RetrievedChunk{{ID: "doc-1", Content: "ibuprofen 400mg every 8h"}}}
		llm := &fakeAdapter{resp: types.UnifiedLLMResponse{Content: "Take ibuprofen 400mg every 8h [doc-1]."}}
		wrapped := NewAsAgent(NewAgent(retrieval, llm, "", nil))

		registry := agent.NewRegistry()
		require.NoError(t, registry.RegisterAgent(wrapped))

		got, err := registry.GetAgent("MedicalRAGAgent")
		require.NoError(t, err)

		out, err := got.Run(context.Background(), types.GenericInput{Query: "dosage for ibuprofen?"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Take ibuprofen 400mg every 8h [doc-1].", out.Response)
		assert.Equal(t, "dosage for ibuprofen?", retrieval.gotQ)
	})
}
