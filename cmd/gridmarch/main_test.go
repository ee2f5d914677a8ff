package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/gridmarch/internal/storage"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func TestRunThenInspect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, "run", "diffusion", "--data", dir,
		"--extents", "6,9", "--workers", "2", "--save-every", "2", "--log-level", "error"))

	runs, err := storage.New(dir).List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "diffusion", run.Scenario)
	assert.Equal(t, []int{6, 9}, run.Extents)
	assert.True(t, slices.Equal(run.Slices, []int{0, 2, 4, 5}), "saved slices %v", run.Slices)
	assert.Contains(t, run.Metrics, "mass")

	for _, cmd := range []string{"plot", "analyze", "export-csv", "export-json"} {
		assert.NoError(t, execute(t, cmd, run.ID, "--data", dir), cmd)
	}
	assert.NoError(t, execute(t, "list", "--data", dir))
	assert.Error(t, execute(t, "plot", run.ID, "--data", dir, "--component", "3"))
	assert.Error(t, execute(t, "analyze", run.ID, "--data", dir, "--part", "phase"))
}

func TestRunWithSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "field.db")
	require.NoError(t, execute(t, "run", "heat-source", "--data", dir,
		"--extents", "5,7", "--store", "sqlite", "--db", db, "--log-level", "error"))

	_, err := os.Stat(db)
	assert.NoError(t, err)
}

func TestSolveCommand(t *testing.T) {
	assert.NoError(t, execute(t, "solve", "diffusion", "--extents", "6,9", "--at", "3,4", "--log-level", "error"))
	assert.Error(t, execute(t, "solve", "diffusion", "--extents", "6,9", "--at", "3"), "wrong coordinate rank")
	assert.Error(t, execute(t, "solve", "diffusion", "--extents", "6,9", "--at", "1,4"), "seeded slice")
}

func TestStencilCommand(t *testing.T) {
	assert.NoError(t, execute(t, "stencil", "--axis", "1", "--order", "4", "--step", "0.5"))
	assert.NoError(t, execute(t, "stencil", "--axis", "0", "--order", "1", "--time"))
	assert.Error(t, execute(t, "stencil", "--step", "0"))
	assert.Error(t, execute(t, "stencil", "--axis", "9"))
}

func TestScenarioCommands(t *testing.T) {
	assert.NoError(t, execute(t, "scenarios"))
	assert.NoError(t, execute(t, "describe", "brusselator"))
	assert.NoError(t, execute(t, "presets", "burgers"))
	assert.Error(t, execute(t, "describe", "navier-stokes"))
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenario: burgers
workers: 3
solver:
  max_iterations: 7
  max_backtrack: 50
  singular: identity
params:
  V: 0.5
`), 0644))

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--iterations", "9", "--param", "V=2,extra=1"}))

	cfg, err := resolveConfig(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "burgers", cfg.Scenario)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 9, cfg.Solver.MaxIterations, "flag beats file")
	assert.Equal(t, 50, cfg.Solver.MaxBacktrack)
	assert.Equal(t, "identity", cfg.Solver.Singular)
	assert.Equal(t, map[string]float64{"V": 2, "extra": 1}, cfg.Params)
}

func TestResolveConfigErrors(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"run"})
	require.NoError(t, err)

	require.NoError(t, cmd.ParseFlags([]string{"--preset", "nope"}))
	_, err = resolveConfig(cmd, []string{"diffusion"})
	assert.ErrorContains(t, err, "unknown preset")

	root = newRootCmd()
	cmd, _, _ = root.Find([]string{"run"})
	require.NoError(t, cmd.ParseFlags([]string{"--param", "nu=fast"}))
	_, err = resolveConfig(cmd, []string{"diffusion"})
	assert.Error(t, err)

	root = newRootCmd()
	cmd, _, _ = root.Find([]string{"run"})
	require.NoError(t, cmd.ParseFlags([]string{"--store", "sqlite"}))
	_, err = resolveConfig(cmd, []string{"diffusion"})
	assert.Error(t, err, "sqlite without a path")
}
