package types

// ToolCallFunction is the function payload of a ToolCall, matching
// OpenAI's tool_calls structure (name + JSON-encoded argument string).
type ToolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolCall represents a tool call suggested by an LLM.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"` // currently only "function"
	Function ToolCallFunction `json:"function"`
}

// UsageInfo is token usage information from an LLM API call.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// UnifiedLLMResponse is the standardized shape every LLM adapter in this
// module returns, insulating agents and the flow engine from any single
// vendor's response shape.
type UnifiedLLMResponse struct {
	ID                string        `json:"id,omitempty"`
	Object            string        `json:"object,omitempty"`
	Created           int64         `json:"created,omitempty"`
	Model             string        `json:"model,omitempty"`
	Content           string        `json:"content,omitempty"`
	ToolCalls         []ToolCall    `json:"tool_calls,omitempty"`
	FinishReason      string        `json:"finish_reason,omitempty"`
	Usage             *UsageInfo    `json:"usage,omitempty"`
	SystemFingerprint string        `json:"system_fingerprint,omitempty"`
	RawResponse       any           `json:"raw_response,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// Message is a single chat message in the format every adapter accepts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ArbiterVerdict enumerates the final decisions the O3-mini arbiter service
// can hand back when two specialist reports diverge.
type ArbiterVerdict string

const (
	VerdictA            ArbiterVerdict = "a"
	VerdictB            ArbiterVerdict = "b"
	VerdictCombine      ArbiterVerdict = "combine"
	VerdictCannotDecide ArbiterVerdict = "cannot_decide"
	// VerdictFallback is returned when the arbiter service itself could not
	// be reached; see REDESIGN FLAG (iv) / DESIGN.md (iv).
	VerdictFallback ArbiterVerdict = "fallback"
)

// ArbiterRequest is the payload forwarded to the arbiter HTTP service.
type ArbiterRequest struct {
	ReportA       string `json:"report_a"`
	ReportB       string `json:"report_b"`
	Justification string `json:"justification"`
	SessionID     string `json:"session_id,omitempty"`
}

// ArbiterResponse is the verdict returned by the arbiter service (or a
// locally-synthesized fallback when the service is unreachable).
type ArbiterResponse struct {
	Verdict   ArbiterVerdict `json:"verdict"`
	Rationale string         `json:"rationale"`
}
