package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medflowai/engine/types"
)

// OllamaAdapter maps the provider-neutral Adapter contract onto a local
// Ollama server's /api/chat wire format. Unlike the teacher, which
// delegated to a separate hector/ollama client package, this adapter
// inlines the request/response mapping directly so it depends on nothing
// beyond the shared HTTPDoer transport.
type OllamaAdapter struct {
	cfg  Config
	http HTTPDoer
}

func NewOllamaAdapter(cfg Config, doer HTTPDoer) *OllamaAdapter {
	cfg.Type = "ollama"
	cfg.SetDefaults()
	if doer == nil {
		doer = &http.Client{Timeout: 120 * time.Second}
	}
	return &OllamaAdapter{cfg: cfg, http: doer}
}

func (a *OllamaAdapter) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`

	Error string `json:"error,omitempty"`
}

func (a *OllamaAdapter) ChatCompletion(ctx context.Context, messages []types.Message, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	if modelName == "" {
		modelName = a.cfg.Model
	}
	req := ollamaChatRequest{
		Model:  modelName,
		Stream: false,
		Options: ollamaOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return types.UnifiedLLMResponse{Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("read ollama response: %w", err)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("unmarshal ollama response: %w", err)
	}

	if parsed.Error != "" {
		return types.UnifiedLLMResponse{Error: parsed.Error}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return types.UnifiedLLMResponse{Error: fmt.Sprintf("ollama request failed with status %d", resp.StatusCode)}, nil
	}

	finish := ""
	if parsed.Done {
		finish = "stop"
	}

	return types.UnifiedLLMResponse{
		Model:        parsed.Model,
		Content:      parsed.Message.Content,
		FinishReason: finish,
		Usage: &types.UsageInfo{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

func (a *OllamaAdapter) Completion(ctx context.Context, prompt string, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	return a.ChatCompletion(ctx, []types.Message{{Role: "user", Content: prompt}}, modelName, opts)
}
