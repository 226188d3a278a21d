package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/ir"
)

func load(t *testing.T, name string) *Scenario {
	t.Helper()
	sc, err := LoadScenario("testdata/" + name + ".yaml")
	require.NoError(t, err)
	return sc
}

func TestRun_PassingScenarios(t *testing.T) {
	for _, name := range []string{
		"required-then-optional",
		"required-failure-halts",
		"optional-skip",
		"reproducible-receipt",
		"multi-write",
		"builtins",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(load(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "unexpected failures: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	result, err := Run(load(t, "broken-spec"))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "status.a: expected FAIL, got OK")
	assert.Contains(t, result.Errors[1], "derived.a: expected 3, got 2")
	assert.Equal(t, "calls.A: expected 5, got 1", result.Errors[2])
}

func TestRun_MultiplePasses(t *testing.T) {
	result, err := Run(load(t, "reproducible-receipt"))
	require.NoError(t, err)

	require.Len(t, result.Passes, 2)
	assert.Equal(t, "reproducible-receipt-0001", result.Passes[0].PassID)
	assert.Equal(t, "reproducible-receipt-0002", result.Passes[1].PassID)
	assert.Equal(t, result.Passes[0].ReceiptHash, result.Passes[1].ReceiptHash)
	assert.Equal(t, result.Passes[0].Certificate, result.Passes[1].Certificate)
}

func TestRun_HaltLeavesLaterModulesPending(t *testing.T) {
	result, err := Run(load(t, "required-failure-halts"))
	require.NoError(t, err)

	last := result.Last()
	assert.Equal(t, ir.PassHalted, last.Outcome)
	assert.Equal(t, "a", last.HaltedAt)
	assert.Len(t, last.Outcomes, 1)
	assert.Equal(t, ir.StatusPending, result.Final.ModuleStatus["b"].Status)
	assert.Equal(t, "Error: boom", result.Final.ModuleStatus["a"].Notes)
}

func TestRun_IntakeFilesReachInputs(t *testing.T) {
	result, err := Run(load(t, "builtins"))
	require.NoError(t, err)

	_, ok := result.Final.Lookup("inputs.intake_files_meta")
	assert.True(t, ok)

	count, ok := result.Final.Lookup("derived.files.count")
	require.True(t, ok)
	assert.True(t, sameJSON(1, count))
}

func TestRun_PanickingRunner(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: panicking-runner
description: a panicking optional runner is recorded as WARN
manifest:
  firing_order: [a, b]
  modules:
    a:
      produces: [derived.a]
      runner: A
    b:
      required: true
      produces: [derived.b]
      runner: B
runners:
  A:
    panic: kaboom
  B:
    returns: 7
expect:
  outcome: completed
  status: {a: WARN, b: OK}
  notes_contain: {a: "runner panicked: kaboom"}
  derived:
    b: 7
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "unexpected failures: %v", result.Errors)
}

func TestRun_InvalidManifestIsSetupError(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: invalid
description: the firing order names an undeclared module
manifest:
  firing_order: [a, ghost]
  modules:
    a:
      runner: A
`))
	require.NoError(t, err)

	_, err = Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRun_ScriptedRunnerCannotShadowBuiltin(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: shadow
description: scripted runners share the built-in namespace
manifest:
  firing_order: [a]
  modules:
    a:
      runner: static
runners:
  static:
    returns: 1
`))
	require.NoError(t, err)

	_, err = Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scripted runner")
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{
		"required-failure-halts",
		"optional-skip",
		"reproducible-receipt",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, load(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "unexpected failures: %v", result.Errors)
		})
	}
}
