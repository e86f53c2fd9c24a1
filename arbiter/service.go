package arbiter

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medflowai/engine/llms"
	"github.com/medflowai/engine/types"
)

// LLMPrefEnvVar selects which vendor adapter compares reports when more
// than one is configured, matching ARBITER_LLM_PREF ("openai"|"gemini"|"auto").
const LLMPrefEnvVar = "ARBITER_LLM_PREF"

var reviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "medflowai_arbiter_reviews_total",
	Help: "Arbiter reviews served, labeled by verdict.",
}, []string{"verdict"})

func init() {
	prometheus.MustRegister(reviewsTotal)
}

const systemPrompt = "You are a senior clinical judge. You will receive two specialist reports " +
	"and must decide which recommendation to follow or whether to combine them. " +
	`Respond in JSON as {"verdict": <a|b|combine|cannot_decide>, "rationale": <string>}.`

// Service is the HTTP handler side of the arbiter: it judges a divergent
// pair of reports via an LLM and returns a verdict, grounded on
// arbiter-o3/main.py's review_reports endpoint plus llm_client.py's
// compare_reports.
type Service struct {
	Primary   llms.Adapter
	Fallback  llms.Adapter
	ModelName string
	Logger    hclog.Logger
}

// NewService builds an arbiter Service. primary is tried first (per
// ARBITER_LLM_PREF, resolved by the caller); fallback is used only if
// primary is nil.
func NewService(primary, fallback llms.Adapter, modelName string, logger hclog.Logger) *Service {
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{Primary: primary, Fallback: fallback, ModelName: modelName, Logger: logger}
}

type compareResult struct {
	Verdict   string `json:"verdict"`
	Rationale string `json:"rationale"`
}

// CompareReports judges the two reports and returns a verdict/rationale
// pair, mirroring compare_reports: builds the fixed judge prompt, calls
// the LLM at temperature 0.2, and falls back to "cannot_decide" on a
// transport error or unparseable response rather than propagating an error.
func (s *Service) CompareReports(ctx context.Context, req types.ArbiterRequest) types.ArbiterResponse {
	adapter := s.Primary
	if adapter == nil {
		adapter = s.Fallback
	}
	if adapter == nil {
		return types.ArbiterResponse{Verdict: types.VerdictCannotDecide, Rationale: "no LLM adapter configured"}
	}

	userPrompt := "### Report A\n" + req.ReportA + "\n\n### Report B\n" + req.ReportB +
		"\n\nDivergence justification provided: " + orNA(req.Justification)

	messages := []types.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	resp, err := adapter.ChatCompletion(ctx, messages, s.ModelName, llms.CompletionOptions{Temperature: 0.2})
	if err != nil {
		s.Logger.Error("arbiter LLM call failed", "error", err)
		return types.ArbiterResponse{Verdict: types.VerdictCannotDecide, Rationale: "LLM error: " + err.Error()}
	}
	if resp.Error != "" {
		s.Logger.Error("arbiter LLM returned an error", "error", resp.Error)
		return types.ArbiterResponse{Verdict: types.VerdictCannotDecide, Rationale: "LLM error: " + resp.Error}
	}

	var parsed compareResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &parsed); err != nil {
		s.Logger.Warn("arbiter response was not valid JSON", "raw_content", resp.Content)
		rationale := resp.Content
		if rationale == "" {
			rationale = err.Error()
		}
		return types.ArbiterResponse{Verdict: types.VerdictCannotDecide, Rationale: rationale}
	}

	verdict := types.ArbiterVerdict(parsed.Verdict)
	switch verdict {
	case types.VerdictA, types.VerdictB, types.VerdictCombine, types.VerdictCannotDecide:
	default:
		verdict = types.VerdictCannotDecide
	}
	rationale := parsed.Rationale
	if rationale == "" {
		rationale = "No rationale provided."
	}
	return types.ArbiterResponse{Verdict: verdict, Rationale: rationale}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Router builds the chi router exposing POST /arbiter/v1/review,
// GET /healthz, and GET /metrics, matching spec.md §4.9a's surface for
// the one in-scope network service.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/arbiter/v1/review", s.handleReview)

	return r
}

func (s *Service) handleReview(w http.ResponseWriter, r *http.Request) {
	var req types.ArbiterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ReportA == "" || req.ReportB == "" {
		http.Error(w, "report_a and report_b are required", http.StatusBadRequest)
		return
	}

	verdict := s.CompareReports(r.Context(), req)
	reviewsTotal.WithLabelValues(string(verdict.Verdict)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(verdict)
}

// ResolveModelPref picks which configured adapter acts as primary, given
// ARBITER_LLM_PREF ("openai", "gemini", or "auto" which prefers openai).
func ResolveModelPref(openaiAdapter, geminiAdapter llms.Adapter) (primary, fallback llms.Adapter) {
	switch strings.ToLower(os.Getenv(LLMPrefEnvVar)) {
	case "gemini":
		return geminiAdapter, openaiAdapter
	case "openai":
		return openaiAdapter, geminiAdapter
	default: // "auto" or unset: prefer openai
		if openaiAdapter != nil {
			return openaiAdapter, geminiAdapter
		}
		return geminiAdapter, openaiAdapter
	}
}
