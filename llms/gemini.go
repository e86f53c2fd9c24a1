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

// GeminiAdapter maps the provider-neutral Adapter contract onto Google's
// generateContent REST API, grounded on the original GoogleGeminiAdapter's
// message/tool conversion (system messages pulled out of the turn list
// into a dedicated system_instruction, assistant turns mapped to the
// "model" role). The teacher has no Gemini equivalent, so the HTTP
// request/response shape here is modeled directly on the REST API rather
// than adapted from teacher code.
type GeminiAdapter struct {
	cfg  Config
	http HTTPDoer
}

func NewGeminiAdapter(cfg Config, doer HTTPDoer) *GeminiAdapter {
	cfg.Type = "gemini"
	cfg.SetDefaults()
	if cfg.Model == "gpt-4o-mini" {
		cfg.Model = "gemini-1.5-flash-latest"
	}
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	return &GeminiAdapter{cfg: cfg, http: doer}
}

func (a *GeminiAdapter) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// convertGeminiMessages pulls the first system message out into a dedicated
// system instruction, mapping the remaining turns to Gemini's
// user/model role pair - same split the Python adapter performs before
// calling into the native SDK.
func convertGeminiMessages(messages []types.Message) (*geminiSystemInstruction, []geminiContent) {
	var sysInstruction *geminiSystemInstruction
	var contents []geminiContent
	sysSeen := false
	for _, m := range messages {
		if m.Role == "system" && !sysSeen {
			sysInstruction = &geminiSystemInstruction{Parts: []geminiPart{{Text: m.Content}}}
			sysSeen = true
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	return sysInstruction, contents
}

func (a *GeminiAdapter) ChatCompletion(ctx context.Context, messages []types.Message, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	if modelName == "" {
		modelName = a.cfg.Model
	}
	sysInstruction, contents := convertGeminiMessages(messages)

	req := geminiRequest{
		Contents:          contents,
		SystemInstruction: sysInstruction,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.cfg.Host, modelName, a.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return types.UnifiedLLMResponse{Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("read gemini response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return types.UnifiedLLMResponse{}, fmt.Errorf("unmarshal gemini response: %w", err)
	}

	if parsed.Error != nil {
		return types.UnifiedLLMResponse{Error: parsed.Error.Message, Model: modelName}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return types.UnifiedLLMResponse{Error: fmt.Sprintf("gemini request failed with status %d", resp.StatusCode), Model: modelName}, nil
	}
	if len(parsed.Candidates) == 0 {
		return types.UnifiedLLMResponse{Error: "no candidates returned", Model: modelName}, nil
	}

	cand := parsed.Candidates[0]
	var text string
	for _, part := range cand.Content.Parts {
		text += part.Text
	}

	return types.UnifiedLLMResponse{
		Model:        modelName,
		Content:      text,
		FinishReason: cand.FinishReason,
		Usage: &types.UsageInfo{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (a *GeminiAdapter) Completion(ctx context.Context, prompt string, modelName string, opts CompletionOptions) (types.UnifiedLLMResponse, error) {
	return a.ChatCompletion(ctx, []types.Message{{Role: "user", Content: prompt}}, modelName, opts)
}
