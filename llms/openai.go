package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medflowai/engine/internal/httpclient"
	"github.com/medflowai/engine/types"
)

// OpenAIAdapter maps the provider-neutral Adapter contract onto OpenAI's
// chat-completions wire format, grounded on the teacher's OpenAIProvider
// request/response shapes (trimmed to non-streaming mapping logic, since
// streaming is out of scope here).
type OpenAIAdapter struct {
	cfg  Config
	http HTTPDoer
}

// NewOpenAIAdapter builds an adapter against cfg, using doer as the
// transport (pass a real *http.Client in production, a fake in tests).
func NewOpenAIAdapter(cfg Config, doer HTTPDoer) *OpenAIAdapter {
	cfg.Type = "openai"
	cfg.SetDefaults()
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIAdapter{cfg: cfg, http: doer}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, messages []types.Message, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	if modelName == "" {
		modelName = a.cfg.Model
	}
	req := openAIRequest{
		Model:       modelName,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Host+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return types.UnifiedLLMResponse{Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("read openai response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("unmarshal openai response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		info := httpclient.ParseOpenAIRateLimitHeaders(resp.Header)
		rlErr := &httpclient.RetryableError{StatusCode: resp.StatusCode, Message: "openai rate limit exceeded", RetryAfter: info.RetryAfter}
		return types.UnifiedLLMResponse{Error: rlErr.Error()}, nil
	}
	if parsed.Error != nil {
		return types.UnifiedLLMResponse{Error: parsed.Error.Message}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return types.UnifiedLLMResponse{Error: fmt.Sprintf("openai request failed with status %d", resp.StatusCode)}, nil
	}
	if len(parsed.Choices) == 0 {
		return types.UnifiedLLMResponse{Error: "no response choices returned"}, nil
	}

	choice := parsed.Choices[0]
	out := types.UnifiedLLMResponse{
		ID:           parsed.ID,
		Object:       parsed.Object,
		Created:      parsed.Created,
		Model:        parsed.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: &types.UsageInfo{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: types.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

func (a *OpenAIAdapter) Completion(ctx context.Context, prompt string, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	return a.ChatCompletion(ctx, []types.Message{{Role: "user", Content: prompt}}, modelName, opts)
}
