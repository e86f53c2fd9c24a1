// Package flow executes an orchestration.Config: a declarative sequence of
// agent/tool/parallel steps with per-step error handling and Go-template
// conditions, grounded on orchestrator.py's _execute_step/_run_single/
// _run_parallel/_execute_flow/process_query and the teacher's mutex-guarded
// ExecutionContext (workflow/executor.go).
package flow

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
	"text/template"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medflowai/engine/agent"
	"github.com/medflowai/engine/divergence"
	"github.com/medflowai/engine/orchestration"
	"github.com/medflowai/engine/retry"
	"github.com/medflowai/engine/sessionstore"
	"github.com/medflowai/engine/tools"
	"github.com/medflowai/engine/types"
)

var (
	stepsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medflowai_flow_steps_executed_total",
		Help: "Flow steps executed, labeled by step name and outcome.",
	}, []string{"step", "outcome"})
)

func init() {
	prometheus.MustRegister(stepsExecuted)
}

// flowContext carries the shared state a running flow accumulates -
// "{step}_output" entries plus whatever a step chooses to record -
// mirroring OrchestratorPrincipal._flow_context, guarded by a mutex the
// way workflow.ExecutionContext guards its shared state map.
type flowContext struct {
	mu   sync.RWMutex
	vars map[string]any
}

func newFlowContext() *flowContext {
	return &flowContext{vars: make(map[string]any)}
}

func (c *flowContext) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[key] = value
}

func (c *flowContext) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[key]
	return v, ok
}

func (c *flowContext) snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// Engine runs orchestration flows and the standalone helpers the
// specification names directly: divergence review and arbiter escalation.
type Engine struct {
	Agents     *agent.Registry
	Tools      *tools.Registry
	Divergence *divergence.Agent
	Arbiter    ArbiterClient
	Sessions   sessionstore.Store

	DefaultAgentName string
	Logger           hclog.Logger
}

// ArbiterClient is the narrow contract the flow engine needs to escalate a
// divergent pair of reports - satisfied by arbiter.Client.
type ArbiterClient interface {
	Review(ctx context.Context, req types.ArbiterRequest) (types.ArbiterResponse, error)
}

// NewEngine builds a flow engine. Logger defaults to a null logger.
func NewEngine(agents *agent.Registry, toolRegistry *tools.Registry, divergenceAgent *divergence.Agent, arbiter ArbiterClient, sessions sessionstore.Store, defaultAgentName string, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{
		Agents:           agents,
		Tools:            toolRegistry,
		Divergence:       divergenceAgent,
		Arbiter:          arbiter,
		Sessions:         sessions,
		DefaultAgentName: defaultAgentName,
		Logger:           logger,
	}
}

// ProcessQuery is spec.md §4.7's single entry point. Per REDESIGN FLAG (ii)
// / DESIGN.md Open Question (ii), exactly one of the two branches below
// runs - there's no unreachable fallthrough the way the original's
// process_query had after its early return.
func (e *Engine) ProcessQuery(ctx context.Context, query string, sessionID string, targetAgentName string, cfg *orchestration.Config) (types.GenericOutput, error) {
	if cfg != nil {
		ctxVars, err := e.ExecuteFlow(ctx, query, sessionID, cfg)
		if err != nil {
			return types.GenericOutput{ErrorMessage: err.Error()}, nil
		}
		last, _ := ctxVars["last_output"].(string)
		return types.GenericOutput{Response: last}, nil
	}
	return e.runDefaultAgent(ctx, query, sessionID, targetAgentName)
}

func (e *Engine) runDefaultAgent(ctx context.Context, query, sessionID, targetAgentName string) (types.GenericOutput, error) {
	agentName := targetAgentName
	if agentName == "" {
		agentName = e.DefaultAgentName
	}

	var selected agent.Agent
	if agentName != "" {
		got, err := e.Agents.GetAgent(agentName)
		if err != nil {
			return types.GenericOutput{Response: fmt.Sprintf("Agent %s not found.", agentName), ErrorMessage: err.Error()}, nil
		}
		selected = got
	} else {
		first, ok := e.Agents.First()
		if !ok {
			return types.GenericOutput{Response: "Orchestrator has no agents configured.", ErrorMessage: "no agents available"}, nil
		}
		selected = first
	}

	mgr, err := e.sessionManager(sessionID)
	if err != nil {
		return types.GenericOutput{}, err
	}
	mgr.AddMessage("user", query)

	out, runErr := retry.Do(ctx, retry.Options{MaxRetries: 2, Logger: e.Logger}, selected.Name(), func(ctx context.Context) (types.GenericOutput, error) {
		return selected.Run(ctx, types.GenericInput{Query: query, SessionID: mgr.SessionID()}, mgr.History(0))
	})
	if runErr != nil {
		errContent := fmt.Sprintf("Error processing your request with agent %s: %v", selected.Name(), runErr)
		mgr.AddMessage("assistant", errContent)
		return types.GenericOutput{Response: "An error occurred while processing your request.", ErrorMessage: runErr.Error()}, nil
	}

	if out.Response != "" {
		mgr.AddMessage("assistant", out.Response)
	}
	return out, nil
}

func (e *Engine) sessionManager(sessionID string) (*sessionstore.Manager, error) {
	if sessionID == "" {
		return sessionstore.NewTemporaryManager(e.Sessions), nil
	}
	return sessionstore.NewManager(sessionID, e.Sessions)
}

// ExecuteFlow runs every step of cfg.Flow in order against a fresh flow
// context, mirroring _execute_flow, and returns the final context snapshot.
func (e *Engine) ExecuteFlow(ctx context.Context, query, sessionID string, cfg *orchestration.Config) (map[string]any, error) {
	mgr, err := e.sessionManager(sessionID)
	if err != nil {
		return nil, err
	}
	mgr.AddMessage("user", query)

	fc := newFlowContext()
	for _, step := range cfg.Flow {
		if err := e.executeStep(ctx, step, query, mgr, fc); err != nil {
			return fc.snapshot(), err
		}
	}
	return fc.snapshot(), nil
}

// executeStep checks the step's condition template against the current
// flow context (skipping the step if it renders false/empty), then
// dispatches to runSingle or runParallel.
func (e *Engine) executeStep(ctx context.Context, step orchestration.Step, query string, mgr *sessionstore.Manager, fc *flowContext) error {
	if step.Condition != "" {
		ok, err := evalCondition(step.Condition, fc.snapshot())
		if err != nil {
			return fmt.Errorf("step %s: evaluating condition: %w", step.Name, err)
		}
		if !ok {
			return nil
		}
	}

	switch step.Type {
	case orchestration.StepAgent, orchestration.StepTool, orchestration.StepDivergenceReview:
		return e.runSingle(ctx, step, query, mgr, fc)
	case orchestration.StepParallel:
		return e.runParallel(ctx, step, query, mgr, fc)
	default:
		return types.NewFlowError(step.Name, string(step.Type), "unknown step type", nil)
	}
}

// runSingle executes one agent or tool step, applying on_error per
// spec.md §4.7: retry re-runs the step through retry.Do (up to three more
// attempts after the first failure), skip swallows the failure, abort
// propagates it.
func (e *Engine) runSingle(ctx context.Context, step orchestration.Step, query string, mgr *sessionstore.Manager, fc *flowContext) error {
	run := func(ctx context.Context) (string, error) {
		switch step.Type {
		case orchestration.StepAgent:
			a, err := e.Agents.GetAgent(step.Name)
			if err != nil {
				return "", err
			}
			out, err := a.Run(ctx, types.GenericInput{Query: query, SessionID: mgr.SessionID()}, mgr.History(0))
			if err != nil {
				return "", err
			}
			if out.ErrorMessage != "" {
				return "", fmt.Errorf("%s", out.ErrorMessage)
			}
			return out.Response, nil
		case orchestration.StepDivergenceReview:
			reportA, _ := fc.get(step.Inputs[0] + "_output")
			reportB, _ := fc.get(step.Inputs[1] + "_output")
			out, err := e.ProcessSpecialistOutputs(ctx, fmt.Sprint(reportA), fmt.Sprint(reportB), mgr.SessionID())
			if err != nil {
				return "", err
			}
			if out.ErrorMessage != "" {
				return "", fmt.Errorf("%s", out.ErrorMessage)
			}
			return out.Response, nil
		default: // tool
			result, err := e.Tools.ExecuteToolCall(ctx, step.Name, map[string]any{"query": query})
			if err != nil {
				return "", err
			}
			if !result.Success {
				return "", fmt.Errorf("%s", result.Error)
			}
			return result.Content, nil
		}
	}

	output, err := run(ctx)
	if err != nil {
		switch step.OnError {
		case orchestration.OnErrorRetry:
			output, err = retry.Do(ctx, retry.Options{MaxRetries: 2, Logger: e.Logger}, step.Name, run)
			if err != nil {
				stepsExecuted.WithLabelValues(step.Name, "failed").Inc()
				return types.NewFlowError(step.Name, string(step.Type), "step failed after retry", err)
			}
		case orchestration.OnErrorSkip:
			stepsExecuted.WithLabelValues(step.Name, "skipped").Inc()
			return nil
		default: // abort
			stepsExecuted.WithLabelValues(step.Name, "failed").Inc()
			return types.NewFlowError(step.Name, string(step.Type), "step failed", err)
		}
	}

	stepsExecuted.WithLabelValues(step.Name, "succeeded").Inc()
	fc.set(step.Name+"_output", output)
	fc.set("last_output", output)
	return nil
}

// runParallel runs every sub-step of a parallel group concurrently via
// goroutines and a WaitGroup, the Go-idiomatic equivalent of
// asyncio.gather(*tasks, return_exceptions=False): the first sub-step
// error is returned once all goroutines have finished.
func (e *Engine) runParallel(ctx context.Context, step orchestration.Step, query string, mgr *sessionstore.Manager, fc *flowContext) error {
	var wg sync.WaitGroup
	errs := make([]error, len(step.Agents))

	for i, sub := range step.Agents {
		wg.Add(1)
		go func(i int, sub orchestration.Step) {
			defer wg.Done()
			errs[i] = e.runSingle(ctx, sub, query, mgr, fc)
		}(i, sub)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// evalCondition renders a Go text/template condition (e.g. "{{ .diverged }}")
// against the flow context and reports whether the result is "truthy" -
// the Go-idiomatic replacement for orchestrator.py's
// bool(Template(step.condition).render(**self._flow_context)) using
// Jinja2. Variable references use the flow context's keys directly
// (e.g. a step named "SpecialistA" sets .SpecialistA_output).
func evalCondition(condition string, vars map[string]any) (bool, error) {
	tmpl, err := template.New("condition").Parse(condition)
	if err != nil {
		return false, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return false, err
	}
	return isTruthy(buf.String()), nil
}

func isTruthy(s string) bool {
	switch s {
	case "", "false", "False", "0", "<no value>":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return true
}

// ReviewDivergence runs the divergence review agent over two specialist
// reports, mirroring OrchestratorPrincipal.review_divergence.
func (e *Engine) ReviewDivergence(ctx context.Context, reportA, reportB, sessionID string) (divergence.Output, error) {
	mgr, err := e.sessionManager(sessionID)
	if err != nil {
		return divergence.Output{}, err
	}

	out, err := retry.Do(ctx, retry.Options{MaxRetries: 2, Logger: e.Logger}, "DivergenceReviewAgent", func(ctx context.Context) (divergence.Output, error) {
		return e.Divergence.Run(ctx, divergence.Input{ReportA: reportA, ReportB: reportB})
	})
	if err != nil {
		return divergence.Output{}, err
	}
	if out.Justification != "" {
		mgr.AddMessage("assistant", out.Justification)
	}
	return out, nil
}

// EscalateToArbiter forwards a divergent pair plus its rationale to the
// arbiter service, mirroring OrchestratorPrincipal._escalate_to_arbiter.
func (e *Engine) EscalateToArbiter(ctx context.Context, reportA, reportB string, divergenceOutput divergence.Output, sessionID string) (types.GenericOutput, error) {
	req := types.ArbiterRequest{
		ReportA:       reportA,
		ReportB:       reportB,
		Justification: divergenceOutput.Justification,
		SessionID:     sessionID,
	}
	resp, err := retry.Do(ctx, retry.Options{MaxRetries: 2, Logger: e.Logger}, "ArbiterClient", func(ctx context.Context) (types.ArbiterResponse, error) {
		return e.Arbiter.Review(ctx, req)
	})
	if err != nil {
		return types.GenericOutput{}, err
	}
	return types.GenericOutput{
		Response: fmt.Sprintf("[ARB] Veredicto: %s. Racional: %s", resp.Verdict, resp.Rationale),
	}, nil
}

// ProcessSpecialistOutputs is the high-level helper spec.md §4.7 names:
// review for divergence, escalate to the arbiter only if divergent,
// otherwise report equivalence - mirroring process_specialist_outputs.
func (e *Engine) ProcessSpecialistOutputs(ctx context.Context, reportA, reportB, sessionID string) (types.GenericOutput, error) {
	divergenceResult, err := e.ReviewDivergence(ctx, reportA, reportB, sessionID)
	if err != nil {
		return types.GenericOutput{}, err
	}

	if divergenceResult.Status == divergence.StatusDivergent {
		return e.EscalateToArbiter(ctx, reportA, reportB, divergenceResult, sessionID)
	}

	return types.GenericOutput{Response: "Specialist recommendations are equivalent."}, nil
}
