package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/engine"
	"github.com/roach88/abeflag/internal/ir"
)

func TestRunCompletes(t *testing.T) {
	p := newProject(t, householdManifest)

	out, err := p.execute(t, "run", "--pass-id", "p-1", "--input", `household={"size":3,"state":"MA"}`, p.manifest)
	require.NoError(t, err, out)

	assert.Contains(t, out, "MODULE")
	assert.Contains(t, out, "fingerprint")
	assert.Contains(t, out, "✓ Pass p-1 completed")
	assert.Contains(t, out, "receipt ")
}

func TestRunJSON(t *testing.T) {
	p := newProject(t, householdManifest)

	out, err := p.execute(t, "--format", "json", "run", "--pass-id", "p-1", "--input", `household={"size":3}`, p.manifest)
	require.NoError(t, err, out)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "p-1", resp.PassID)

	summary := decodeData[engine.PassSummary](t, resp)
	assert.Equal(t, ir.PassCompleted, summary.Outcome)
	assert.NotEmpty(t, summary.ReceiptHash)
	require.Len(t, summary.Modules, 4)
	for _, m := range summary.Modules {
		assert.Equal(t, ir.StatusOK, m.Status, m.Module)
	}
	assert.Equal(t, []string{"derived.merged"}, summary.Modules[2].Written)
}

func TestRunHaltsOnRequiredFailure(t *testing.T) {
	p := newProject(t, householdManifest)

	out, err := p.execute(t, "--format", "json", "run", "--pass-id", "p-1", p.manifest)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePassHalted, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "intake")

	summary := decodeData[engine.PassSummary](t, resp)
	assert.Equal(t, ir.PassHalted, summary.Outcome)
	assert.Equal(t, "intake", summary.HaltedAt)
	require.Len(t, summary.Modules, 1)
	assert.Equal(t, ir.StatusFail, summary.Modules[0].Status)
	assert.Equal(t, "Missing required inputs: inputs.household", summary.Modules[0].Notes)
}

func TestRunInputsPersistAcrossCommands(t *testing.T) {
	p := newProject(t, householdManifest)

	_, err := p.execute(t, "run", "--input", `household={"size":2}`, p.manifest)
	require.NoError(t, err)

	// The second pass reads the input stored by the first.
	_, err = p.execute(t, "run", p.manifest)
	require.NoError(t, err)

	out, err := p.execute(t, "--format", "json", "scenario", "show", "derived.merged")
	require.NoError(t, err)
	merged := decodeData[map[string]any](t, decodeResponse(t, out))
	assert.Equal(t, map[string]any{"size": float64(2), "tier": "standard"}, merged)
}

func TestRunFiles(t *testing.T) {
	p := newProject(t, `firing_order: [files]
modules:
  files:
    produces: [derived.files]
    runner: files
`)
	w2 := filepath.Join(p.dir, "w2.pdf")
	require.NoError(t, os.WriteFile(w2, []byte("%PDF-1.7"), 0o644))

	_, err := p.execute(t, "run", "--file", w2, p.manifest)
	require.NoError(t, err)

	out, err := p.execute(t, "--format", "json", "scenario", "show", "inputs.intake_files_meta")
	require.NoError(t, err)
	files := decodeData[[]map[string]any](t, decodeResponse(t, out))
	require.Len(t, files, 1)
	assert.Equal(t, "w2.pdf", files[0]["name"])
	assert.Equal(t, float64(8), files[0]["size"])
	assert.Equal(t, "application/pdf", files[0]["type"])
}

func TestRunMissingFile(t *testing.T) {
	p := newProject(t, householdManifest)
	_, err := p.execute(t, "run", "--file", filepath.Join(p.dir, "absent.pdf"), p.manifest)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestRunInvalidInput(t *testing.T) {
	p := newProject(t, householdManifest)

	for _, in := range []string{"household", "=1", "household={", "a..b=1"} {
		t.Run(in, func(t *testing.T) {
			_, err := p.execute(t, "run", "--input", in, p.manifest)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), ErrCodeInvalidInput)
		})
	}
}

func TestRunInvalidManifest(t *testing.T) {
	p := newProject(t, `firing_order: [ghost]
modules: {}
`)
	out, err := p.execute(t, "run", p.manifest)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "ghost")
}

func TestRunWithoutManifest(t *testing.T) {
	p := newProject(t, householdManifest)
	_, err := p.execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no manifest given")
}

func TestRunRefusesReusedPassID(t *testing.T) {
	p := newProject(t, householdManifest).withSQLite()

	_, err := p.execute(t, "run", "--pass-id", "nightly-1", "--input", `household={"size":2}`, p.manifest)
	require.NoError(t, err)

	out, err := p.execute(t, "--format", "json", "run", "--pass-id", "nightly-1", "--input", `household={"size":5}`, p.manifest)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePassExists, resp.Error.Code)

	// The refused pass wrote nothing, not even its inputs.
	out, err = p.execute(t, "--format", "json", "scenario", "show", "inputs.household")
	require.NoError(t, err)
	household := decodeData[map[string]any](t, decodeResponse(t, out))
	assert.Equal(t, float64(2), household["size"])

	out, err = p.execute(t, "--format", "json", "history")
	require.NoError(t, err)
	passes := decodeData[[]ir.PassRecord](t, decodeResponse(t, out))
	require.Len(t, passes, 1)
	assert.Equal(t, "nightly-1", passes[0].PassID)
}

func TestParseInputs(t *testing.T) {
	got, err := parseInputs([]string{`a=1`, `b={"x":[true,null]}`, `c="s=t"`})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].key)
	assert.Equal(t, "c", got[2].key)
	assert.Equal(t, "s=t", got[2].value)
}

func TestDescribeFilesRejectsDirectory(t *testing.T) {
	_, err := describeFiles([]string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")

	files, err := describeFiles(nil)
	require.NoError(t, err)
	assert.Nil(t, files)
}
