// Package arbiter implements both sides of the O3-mini arbiter escalation
// path: Client, the HTTP caller the flow engine uses to escalate divergent
// reports (grounded on arbiter_client.py/main.py's send_to_arbiter), and
// Service, the HTTP handler that receives and judges them (grounded on
// arbiter-o3/main.go's review_reports endpoint and llm_client.py's
// compare_reports).
package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/medflowai/engine/types"
)

// DefaultURL is used when no explicit URL is configured, matching
// arbiter_client.py's DEFAULT_ARBITER_URL.
const DefaultURL = "http://localhost:8089/arbiter/v1/review"

// URLEnvVar is the environment variable carrying the arbiter service's
// review endpoint, matching ARBITER_O3_URL.
const URLEnvVar = "ARBITER_O3_URL"

// Client calls the arbiter HTTP service to resolve a divergent pair of
// specialist reports.
type Client struct {
	URL    string
	HTTP   *http.Client
	Logger hclog.Logger
}

// NewClient builds a Client against url (defaulting to the URLEnvVar
// environment variable, then DefaultURL) with a 5-second timeout, matching
// arbiter_client.py's httpx.AsyncClient(timeout=5.0).
func NewClient(url string, logger hclog.Logger) *Client {
	if url == "" {
		url = os.Getenv(URLEnvVar)
	}
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		URL:    url,
		HTTP:   &http.Client{Timeout: 5 * time.Second},
		Logger: logger,
	}
}

// Review posts req to the arbiter service and parses its verdict. If the
// service can't be reached or returns a malformed response, Review falls
// back to a locally-synthesized "fallback" verdict rather than returning
// an error - matching send_to_arbiter's except-clause behavior exactly
// (see REDESIGN FLAG (iv) / DESIGN.md (iv)).
func (c *Client) Review(ctx context.Context, req types.ArbiterRequest) (types.ArbiterResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return c.fallback(err), nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return c.fallback(err), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return c.fallback(err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.fallback(fmt.Errorf("arbiter returned status %d", resp.StatusCode)), nil
	}

	var parsed types.ArbiterResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return c.fallback(err), nil
	}
	return parsed, nil
}

func (c *Client) fallback(cause error) types.ArbiterResponse {
	c.Logger.Warn("arbiter unreachable, returning fallback verdict", "error", cause)
	return types.ArbiterResponse{
		Verdict:   types.VerdictFallback,
		Rationale: fmt.Sprintf("Arbiter unreachable: %v", cause),
	}
}
