// Package orchestration parses the declarative flow definitions the flow
// engine executes: YAML files under config/orchestrations/ naming a
// sequence of agent/tool/parallel steps, grounded on orchestration_config.py
// and the teacher's config.Config YAML-plus-env loading conventions.
package orchestration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// StepType identifies what kind of unit an OrchestrationStep runs.
type StepType string

const (
	StepAgent    StepType = "agent"
	StepTool     StepType = "tool"
	StepParallel StepType = "parallel"

	// StepDivergenceReview runs the divergence review agent over two prior
	// steps' outputs and, when they conflict, escalates to the arbiter -
	// the declarative equivalent of OrchestratorPrincipal's hard-coded
	// review_divergence -> process_specialist_outputs tail. It has no
	// Pydantic counterpart in orchestration_config.py (that module's own
	// docstring says its step taxonomy was never wired into the runtime
	// orchestrator), so this step type is this module's own extension,
	// added so the canonical dual_llm_v1 flow can be expressed and run
	// end to end through ExecuteFlow instead of staying a CLI-only config.
	StepDivergenceReview StepType = "divergence_review"
)

// OnError selects how the flow engine reacts when a step fails.
type OnError string

const (
	OnErrorRetry OnError = "retry"
	OnErrorSkip  OnError = "skip"
	OnErrorAbort OnError = "abort"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_\-]+$`)

// Step is one entry in a flow: an agent/tool invocation, or a parallel
// group of sub-steps. Mirrors OrchestrationStep.
type Step struct {
	Type      StepType `yaml:"type"`
	Name      string   `yaml:"name,omitempty"`
	OnError   OnError  `yaml:"on_error,omitempty"`
	Agents    []Step   `yaml:"agents,omitempty"`
	Condition string   `yaml:"condition,omitempty"`

	// Inputs names the two prior steps (by their own Name) whose recorded
	// "{name}_output" values are compared. Required, and must have exactly
	// two entries, for StepDivergenceReview; unused otherwise.
	Inputs []string `yaml:"inputs,omitempty"`
}

func (s *Step) setDefaults() {
	if s.OnError == "" {
		s.OnError = OnErrorRetry
	}
	for i := range s.Agents {
		s.Agents[i].setDefaults()
	}
}

// validate mirrors OrchestrationStep's model_validator: name is required
// for agent/tool steps, agents is required (and restricted to agent/tool
// sub-steps) for parallel steps.
func (s Step) validate() error {
	switch s.Type {
	case StepAgent, StepTool:
		if s.Name == "" {
			return fmt.Errorf("'name' is required for %s steps", s.Type)
		}
	case StepDivergenceReview:
		if s.Name == "" {
			return fmt.Errorf("'name' is required for %s steps", s.Type)
		}
		if len(s.Inputs) != 2 {
			return fmt.Errorf("'inputs' must name exactly two prior steps for %s steps", s.Type)
		}
	case StepParallel:
		if len(s.Agents) == 0 {
			return fmt.Errorf("'agents' list is required for parallel steps")
		}
		for _, sub := range s.Agents {
			if sub.Type != StepAgent && sub.Type != StepTool {
				return fmt.Errorf("parallel steps can only contain 'agent' or 'tool' steps")
			}
		}
	default:
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	return nil
}

// Config is the parsed orchestration YAML, mirroring OrchestrationConfig.
type Config struct {
	ID           string                    `yaml:"id"`
	Description  string                    `yaml:"description"`
	Flow         []Step                    `yaml:"flow"`
	LLMOverrides map[string]map[string]any `yaml:"llm_overrides,omitempty"`
	Env          []string                  `yaml:"env,omitempty"`
	Version      string                    `yaml:"version,omitempty"`
}

// Validate checks the shape invariants load can't express via struct tags
// alone: a non-empty ID matching the slug pattern, a non-empty flow, and
// each step's own validity.
func (c *Config) Validate() error {
	if !idPattern.MatchString(c.ID) {
		return fmt.Errorf("invalid orchestration id %q: must match %s", c.ID, idPattern.String())
	}
	if len(c.Flow) == 0 {
		return fmt.Errorf("`flow` must contain at least one step")
	}
	for i, step := range c.Flow {
		if err := step.validate(); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	for i := range c.Flow {
		c.Flow[i].setDefaults()
	}
}

// DefaultOrchestrationID is the flow used when neither an explicit id nor
// the ORCHESTRATION_ID env var is set.
const DefaultOrchestrationID = "dual_llm_v1"

const orchestrationIDEnvVar = "ORCHESTRATION_ID"

// configDirName is the directory orchestration YAML files live under,
// relative to a discovered config root.
const configDirName = "config/orchestrations"

// ResolveConfigRoot locates the repository's config/orchestrations
// directory by walking upward from the working directory until it's
// found or the filesystem root is reached.
//
// The original Python resolves this path relative to the source file
// (Path(__file__).resolve().parents[4]), which only works when running
// from an editable source checkout. That doesn't survive being compiled
// into a binary and run from an arbitrary working directory, so this is
// a deliberate redesign (see DESIGN.md Open Question (i)): walk parent
// directories the way the teacher's config.LoadConfig searches a small
// fixed list of candidate paths, generalized to an upward walk.
func ResolveConfigRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve config root: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configDirName)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not locate %q above %s", configDirName, dir)
		}
		dir = parent
	}
}

// Load reads and parses the orchestration YAML identified by configID,
// resolving the id per load_orchestration_config's precedence: explicit
// argument -> ORCHESTRATION_ID env var -> DefaultOrchestrationID.
func Load(configID string) (*Config, error) {
	selected := configID
	if selected == "" {
		selected = os.Getenv(orchestrationIDEnvVar)
	}
	if selected == "" {
		selected = DefaultOrchestrationID
	}

	root, err := ResolveConfigRoot()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, selected+".yaml")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestration config %q not found at %s: %w", selected, path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid orchestration config %q: %w", selected, err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestration config %q: %w", selected, err)
	}

	if missing := missingEnvVars(cfg.Env); len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables for orchestration %q: %v", selected, missing)
	}

	return &cfg, nil
}

func missingEnvVars(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := os.LookupEnv(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
