package orchestration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOrchestrationFile(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, configDirName), 0o755))
	path := filepath.Join(dir, configDirName, id+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

const validYAML = `
id: dual_llm_v1
description: dual specialist divergence review
flow:
  - type: parallel
    agents:
      - type: agent
        name: SpecialistA
      - type: agent
        name: SpecialistB
  - type: agent
    name: DivergenceReviewAgent
    condition: "{{ both_specialists_ran }}"
`

func TestLoad(t *testing.T) {
	t.Run("loads an explicit id from a discovered config root", func(t *testing.T) {
		dir := t.TempDir()
		writeOrchestrationFile(t, dir, "dual_llm_v1", validYAML)
		nested := filepath.Join(dir, "a", "b", "c")
		require.NoError(t, os.MkdirAll(nested, 0o755))
		chdir(t, nested)

		cfg, err := Load("dual_llm_v1")
		require.NoError(t, err)
		assert.Equal(t, "dual_llm_v1", cfg.ID)
		assert.Len(t, cfg.Flow, 2)
		assert.Equal(t, OnErrorRetry, cfg.Flow[1].OnError)
	})

	t.Run("falls back to the ORCHESTRATION_ID env var, then the default", func(t *testing.T) {
		dir := t.TempDir()
		writeOrchestrationFile(t, dir, "custom_flow", validYAML)
		chdir(t, dir)

		t.Setenv("ORCHESTRATION_ID", "custom_flow")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "dual_llm_v1", cfg.ID) // id field comes from file contents, not filename

		writeOrchestrationFile(t, dir, DefaultOrchestrationID, "id: default_flow\ndescription: x\nflow:\n  - type: agent\n    name: A\n")
		t.Setenv("ORCHESTRATION_ID", "")
		cfg, err = Load("")
		require.NoError(t, err)
		assert.Equal(t, "default_flow", cfg.ID)
	})

	t.Run("rejects a flow with no steps", func(t *testing.T) {
		dir := t.TempDir()
		writeOrchestrationFile(t, dir, "empty_flow", "id: empty_flow\ndescription: x\nflow: []\n")
		chdir(t, dir)

		_, err := Load("empty_flow")
		assert.Error(t, err)
	})

	t.Run("rejects a parallel step with no sub-agents", func(t *testing.T) {
		dir := t.TempDir()
		writeOrchestrationFile(t, dir, "bad_parallel", "id: bad_parallel\ndescription: x\nflow:\n  - type: parallel\n")
		chdir(t, dir)

		_, err := Load("bad_parallel")
		assert.Error(t, err)
	})

	t.Run("rejects missing required env vars", func(t *testing.T) {
		dir := t.TempDir()
		body := validYAML + "env:\n  - SOME_REQUIRED_VAR_NOT_SET\n"
		writeOrchestrationFile(t, dir, "needs_env", body)
		chdir(t, dir)

		_, err := Load("needs_env")
		assert.Error(t, err)
	})

	t.Run("errors when the config file doesn't exist", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, configDirName), 0o755))
		chdir(t, dir)

		_, err := Load("does_not_exist")
		assert.Error(t, err)
	})
}
