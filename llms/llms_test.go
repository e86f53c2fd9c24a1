package llms

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/medflowai/engine/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	status int
	body   string
	err    error
	gotReq *http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func TestOpenAIAdapter(t *testing.T) {
	t.Run("maps a successful response", func(t *testing.T) {
		doer := &fakeDoer{status: http.StatusOK, body: `{
			"id": "chatcmpl-1", "model": "gpt-4o-mini",
			"choices": [{"message": {"content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`}
		a := NewOpenAIAdapter(Config{APIKey: "sk-test"}, doer)
		assert.Equal(t, "openai", a.Name())

		resp, err := a.ChatCompletion(context.Background(), []types.Message{{Role: "user", Content: "hi"}}, "", CompletionOptions{})
		require.NoError(t, err)
		assert.Equal(t, "hello", resp.Content)
		assert.Equal(t, 7, resp.Usage.TotalTokens)
		assert.Empty(t, resp.Error)
	})

	t.Run("surfaces network errors on the response, not as a Go error", func(t *testing.T) {
		doer := &fakeDoer{err: assert.AnError}
		a := NewOpenAIAdapter(Config{APIKey: "sk-test"}, doer)

		resp, err := a.Completion(context.Background(), "hi", "", CompletionOptions{})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("surfaces api error payloads", func(t *testing.T) {
		doer := &fakeDoer{status: http.StatusOK, body: `{"error": {"message": "bad key"}}`}
		a := NewOpenAIAdapter(Config{APIKey: "sk-bad"}, doer)

		resp, err := a.Completion(context.Background(), "hi", "", CompletionOptions{})
		require.NoError(t, err)
		assert.Equal(t, "bad key", resp.Error)
	})
}

func TestAnthropicAdapter(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK, body: `{
		"id": "msg_1", "model": "claude-3-haiku",
		"content": [{"type": "text", "text": "hi there"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 3, "output_tokens": 4}
	}`}
	a := NewAnthropicAdapter(Config{APIKey: "ak-test"}, doer)
	assert.Equal(t, "anthropic", a.Name())

	resp, err := a.ChatCompletion(context.Background(), []types.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	}, "", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestOllamaAdapter(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK, body: `{
		"model": "llama3", "message": {"role": "assistant", "content": "hey"}, "done": true,
		"prompt_eval_count": 10, "eval_count": 5
	}`}
	a := NewOllamaAdapter(Config{}, doer)
	assert.Equal(t, "ollama", a.Name())

	resp, err := a.Completion(context.Background(), "hi", "llama3", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hey", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestGeminiAdapter(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK, body: `{
		"candidates": [{"content": {"parts": [{"text": "bonjour"}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 2, "candidatesTokenCount": 3, "totalTokenCount": 5}
	}`}
	a := NewGeminiAdapter(Config{APIKey: "gk-test"}, doer)
	assert.Equal(t, "gemini", a.Name())

	resp, err := a.ChatCompletion(context.Background(), []types.Message{
		{Role: "system", Content: "reply in french"},
		{Role: "user", Content: "hi"},
	}, "", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", resp.Content)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestAdapterRegistry(t *testing.T) {
	reg := NewAdapterRegistry()
	doer := &fakeDoer{status: http.StatusOK, body: `{}`}

	adapter, err := reg.CreateAdapterFromConfig("specialist_a", Config{Type: "openai", APIKey: "sk-a"}, doer)
	require.NoError(t, err)
	assert.Equal(t, "openai", adapter.Name())

	got, err := reg.GetAdapter("specialist_a")
	require.NoError(t, err)
	assert.Equal(t, adapter, got)

	_, err = reg.GetAdapter("missing")
	assert.Error(t, err)

	_, err = reg.CreateAdapterFromConfig("bad", Config{Type: "unknown"}, doer)
	assert.Error(t, err)
}
