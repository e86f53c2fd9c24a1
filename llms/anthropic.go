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

// AnthropicAdapter maps the provider-neutral Adapter contract onto the
// Claude Messages API wire format, grounded on the teacher's
// AnthropicProvider request/response shapes.
type AnthropicAdapter struct {
	cfg  Config
	http HTTPDoer
}

func NewAnthropicAdapter(cfg Config, doer HTTPDoer) *AnthropicAdapter {
	cfg.Type = "anthropic"
	cfg.SetDefaults()
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	return &AnthropicAdapter{cfg: cfg, http: doer}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	Messages    []anthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature,omitempty"`
	System      string              `json:"system,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicAdapter) ChatCompletion(ctx context.Context, messages []types.Message, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	if modelName == "" {
		modelName = a.cfg.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.cfg.MaxTokens
	}

	req := anthropicRequest{
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	}
	for _, m := range messages {
		if m.Role == "system" {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Host+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return types.UnifiedLLMResponse{Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("read anthropic response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("unmarshal anthropic response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		info := httpclient.ParseAnthropicRateLimitHeaders(resp.Header)
		rlErr := &httpclient.RetryableError{StatusCode: resp.StatusCode, Message: "anthropic rate limit exceeded", RetryAfter: info.RetryAfter}
		return types.UnifiedLLMResponse{Error: rlErr.Error()}, nil
	}
	if parsed.Error != nil {
		return types.UnifiedLLMResponse{Error: parsed.Error.Message}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return types.UnifiedLLMResponse{Error: fmt.Sprintf("anthropic request failed with status %d", resp.StatusCode)}, nil
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return types.UnifiedLLMResponse{
		ID:           parsed.ID,
		Model:        parsed.Model,
		Content:      text,
		FinishReason: parsed.StopReason,
		Usage: &types.UsageInfo{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

func (a *AnthropicAdapter) Completion(ctx context.Context, prompt string, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	return a.ChatCompletion(ctx, []types.Message{{Role: "user", Content: prompt}}, modelName, opts)
}
