// Package divergence implements the dual-specialist divergence review
// agent: an LLM-backed classifier that compares two specialist reports
// and returns "equivalent" or "divergent" with a short rationale,
// grounded on divergence_review_agent.py's exact retry/backoff/parsing
// algorithm (ADR-005's 1s-2s-4s exponential back-off).
package divergence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/medflowai/engine/llms"
	"github.com/medflowai/engine/types"
)

// Status is the classifier's verdict on a pair of specialist reports.
type Status string

const (
	StatusEquivalent Status = "equivalent"
	StatusDivergent  Status = "divergent"
)

// promptTemplate is the fixed, JSON-only prompt shape spec.md §4.6
// mandates, filled with the two reports. It is unexported; Run always
// sends it unchanged.
const promptTemplate = "You are an experienced physician. Compare the two clinical reports provided.\n" +
	"If the recommendations and conclusions are compatible, respond strictly with a JSON object: " +
	`{"status": "equivalent", "justification": "<SHORT_RATIONALE>"}.` + "\n" +
	"If they conflict clinically, respond strictly with a JSON object: " +
	`{"status": "divergent", "justification": "<SHORT_RATIONALE>"}.` + "\n" +
	"Do NOT add any keys. The JSON MUST be valid.\n\n" +
	"REPORT A:\n%s\n\nREPORT B:\n%s\n"

// Input carries the two reports to compare plus the retry/backoff knobs,
// mirroring DivergenceReviewAgentInput.
type Input struct {
	ReportA                 string
	ReportB                 string
	MaxRetries              int
	RetryBackoffBaseSeconds float64
}

func (in Input) withDefaults() Input {
	if in.MaxRetries <= 0 {
		in.MaxRetries = 3
	}
	if in.RetryBackoffBaseSeconds <= 0 {
		in.RetryBackoffBaseSeconds = 1.0
	}
	return in
}

// Output is the classification result. Response and Justification carry
// the same string on success - DivergenceReviewAgentOutput.verdict was a
// property alias for status in the original, and response was aliased to
// justification; we keep both fields as real values rather than a
// computed alias so either name reads naturally from calling code (see
// DESIGN.md's Open Question (iii) resolution).
type Output struct {
	Status        Status
	Response      string
	Justification string
	ErrorMessage  string
}

// Agent classifies report pairs by calling an LLM adapter with the fixed
// JSON-only prompt and retrying with exponential back-off on transport
// errors or malformed JSON.
type Agent struct {
	LLM       llms.Adapter
	ModelName string
	Logger    hclog.Logger
}

// NewAgent builds a divergence review agent against the given adapter.
// modelName defaults to "gpt-4o" if empty, matching the original's
// default_model_name.
func NewAgent(llm llms.Adapter, modelName string, logger hclog.Logger) *Agent {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Agent{LLM: llm, ModelName: modelName, Logger: logger}
}

type parsedVerdict struct {
	Status        string `json:"status"`
	Justification string `json:"justification"`
}

// Run executes the retry loop described in spec.md §4.6. It never
// returns a non-nil error for a well-formed invocation: LLM/parse
// failures are expressed in the Output (ErrorMessage set, Status empty),
// matching the original agent's "return a failure output, don't raise"
// behavior. A non-nil error is reserved for invocation-shape mistakes
// (e.g. a nil adapter).
func (a *Agent) Run(ctx context.Context, in Input) (Output, error) {
	if a.LLM == nil {
		return Output{}, types.NewAgentError("DivergenceReviewAgent", "no LLM adapter configured", nil)
	}
	in = in.withDefaults()

	messages := []types.Message{
		{Role: "system", Content: "You are an assistant that speaks JSON only."},
		{Role: "user", Content: fmt.Sprintf(promptTemplate, strings.TrimSpace(in.ReportA), strings.TrimSpace(in.ReportB))},
	}

	retriesRemaining := in.MaxRetries
	backoff := in.RetryBackoffBaseSeconds
	var lastTransportErr string

	for retriesRemaining > 0 {
		select {
		case <-ctx.Done():
			return Output{ErrorMessage: ctx.Err().Error()}, nil
		default:
		}

		resp, err := a.LLM.ChatCompletion(ctx, messages, a.ModelName, llms.CompletionOptions{Temperature: 0.0})
		if err != nil {
			return Output{}, types.NewAgentError("DivergenceReviewAgent", "LLM call failed", err)
		}

		if resp.Error != "" {
			a.Logger.Warn("divergence review LLM call returned an error, retrying", "error", resp.Error, "backoff_seconds", backoff)
			lastTransportErr = resp.Error
			sleep(ctx, backoff)
			retriesRemaining--
			backoff *= 2
			continue
		}

		var parsed parsedVerdict
		raw := strings.TrimSpace(resp.Content)
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil || (parsed.Status != string(StatusEquivalent) && parsed.Status != string(StatusDivergent)) {
			a.Logger.Warn("divergence review LLM response was not valid JSON shape, retrying", "raw_content", truncate(raw, 200))
			sleep(ctx, backoff)
			retriesRemaining--
			backoff *= 2
			continue
		}

		return Output{
			Status:        Status(parsed.Status),
			Response:      parsed.Justification,
			Justification: parsed.Justification,
		}, nil
	}

	errMsg := lastTransportErr
	if errMsg == "" {
		errMsg = "Failed to obtain valid divergence verdict after retries."
	}
	return Output{ErrorMessage: errMsg}, nil
}

func sleep(ctx context.Context, seconds float64) {
	d := time.Duration(seconds * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
