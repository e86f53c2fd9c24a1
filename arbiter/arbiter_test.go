package arbiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflowai/engine/llms"
	"github.com/medflowai/engine/types"
)

type scriptedAdapter struct {
	resp types.UnifiedLLMResponse
	err  error
}

func (s *scriptedAdapter) ChatCompletion(ctx context.Context, messages []types.Message, modelName string, opts llms.CompletionOptions) (types.UnifiedLLMResponse, error) {
	return s.resp, s.err
}
func (s *scriptedAdapter) Completion(ctx context.Context, prompt string, modelName string, opts llms.CompletionOptions) (types.UnifiedLLMResponse, error) {
	return s.ChatCompletion(ctx, nil, modelName, opts)
}
func (s *scriptedAdapter) Name() string { return "scripted" }

func TestClientReview(t *testing.T) {
	t.Run("parses a successful arbiter response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(types.ArbiterResponse{Verdict: types.VerdictCombine, Rationale: "blend both"})
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		resp, err := c.Review(context.Background(), types.ArbiterRequest{ReportA: "a", ReportB: "b"})
		require.NoError(t, err)
		assert.Equal(t, types.VerdictCombine, resp.Verdict)
	})

	t.Run("falls back to a fallback verdict when the service is unreachable", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", nil)
		resp, err := c.Review(context.Background(), types.ArbiterRequest{ReportA: "a", ReportB: "b"})
		require.NoError(t, err)
		assert.Equal(t, types.VerdictFallback, resp.Verdict)
		assert.Contains(t, resp.Rationale, "Arbiter unreachable")
	})

	t.Run("falls back on a non-2xx status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		resp, err := c.Review(context.Background(), types.ArbiterRequest{ReportA: "a", ReportB: "b"})
		require.NoError(t, err)
		assert.Equal(t, types.VerdictFallback, resp.Verdict)
	})
}

func TestServiceCompareReports(t *testing.T) {
	t.Run("returns the parsed verdict on a well-formed JSON reply", func(t *testing.T) {
		adapter := &scriptedAdapter{resp: types.UnifiedLLMResponse{Content: `{"verdict":"a","rationale":"report A is more complete"}`}}
		s := NewService(adapter, nil, "", nil)

		resp := s.CompareReports(context.Background(), types.ArbiterRequest{ReportA: "x", ReportB: "y"})
		assert.Equal(t, types.VerdictA, resp.Verdict)
		assert.Equal(t, "report A is more complete", resp.Rationale)
	})

	t.Run("normalizes an out-of-enum verdict to cannot_decide", func(t *testing.T) {
		adapter := &scriptedAdapter{resp: types.UnifiedLLMResponse{Content: `{"verdict":"maybe","rationale":"unsure"}`}}
		s := NewService(adapter, nil, "", nil)

		resp := s.CompareReports(context.Background(), types.ArbiterRequest{ReportA: "x", ReportB: "y"})
		assert.Equal(t, types.VerdictCannotDecide, resp.Verdict)
	})

	t.Run("returns cannot_decide on a transport error", func(t *testing.T) {
		adapter := &scriptedAdapter{resp: types.UnifiedLLMResponse{Error: "rate limited"}}
		s := NewService(adapter, nil, "", nil)

		resp := s.CompareReports(context.Background(), types.ArbiterRequest{ReportA: "x", ReportB: "y"})
		assert.Equal(t, types.VerdictCannotDecide, resp.Verdict)
		assert.Contains(t, resp.Rationale, "rate limited")
	})

	t.Run("returns cannot_decide with no adapter configured", func(t *testing.T) {
		s := NewService(nil, nil, "", nil)
		resp := s.CompareReports(context.Background(), types.ArbiterRequest{ReportA: "x", ReportB: "y"})
		assert.Equal(t, types.VerdictCannotDecide, resp.Verdict)
	})
}

func TestServiceRouter(t *testing.T) {
	t.Run("serves a review request end to end", func(t *testing.T) {
		adapter := &scriptedAdapter{resp: types.UnifiedLLMResponse{Content: `{"verdict":"b","rationale":"report B cites newer guidelines"}`}}
		s := NewService(adapter, nil, "", nil)

		body := `{"report_a":"a","report_b":"b","justification":"conflict"}`
		req := httptest.NewRequest(http.MethodPost, "/arbiter/v1/review", strings.NewReader(body))
		rec := httptest.NewRecorder()

		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp types.ArbiterResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, types.VerdictB, resp.Verdict)
	})

	t.Run("rejects a request missing reports", func(t *testing.T) {
		s := NewService(nil, nil, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/arbiter/v1/review", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("serves healthz", func(t *testing.T) {
		s := NewService(nil, nil, "", nil)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()

		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestResolveModelPref(t *testing.T) {
	openai := &scriptedAdapter{}
	gemini := &scriptedAdapter{}

	t.Run("auto prefers openai when both are configured", func(t *testing.T) {
		primary, _ := ResolveModelPref(openai, gemini)
		assert.Same(t, openai, primary)
	})

	t.Run("explicit gemini preference wins", func(t *testing.T) {
		t.Setenv(LLMPrefEnvVar, "gemini")
		primary, _ := ResolveModelPref(openai, gemini)
		assert.Same(t, gemini, primary)
	})
}
