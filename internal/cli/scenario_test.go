package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/ir"
)

func TestScenarioSetAndShow(t *testing.T) {
	p := newProject(t, householdManifest)

	out, err := p.execute(t, "scenario", "set", "inputs.household", `{"size":4,"state":"NY"}`)
	require.NoError(t, err)
	assert.Equal(t, "✓ Set inputs.household\n", out)

	out, err = p.execute(t, "--format", "json", "scenario", "show", "inputs.household.state")
	require.NoError(t, err)
	assert.Equal(t, "NY", decodeResponse(t, out).Data)

	out, err = p.execute(t, "scenario", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"household"`)
	assert.Contains(t, out, `"engine"`)
}

func TestScenarioShowMissingPath(t *testing.T) {
	p := newProject(t, householdManifest)

	_, err := p.execute(t, "scenario", "show", "derived.nothing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestScenarioSetRejectsBadJSON(t *testing.T) {
	p := newProject(t, householdManifest)

	_, err := p.execute(t, "scenario", "set", "inputs.x", "{nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeInvalidInput)
}

func TestScenarioSetDropsHash(t *testing.T) {
	p := newProject(t, householdManifest)
	_, err := p.execute(t, "run", "--input", `household={"size":1}`, p.manifest)
	require.NoError(t, err)

	_, err = p.execute(t, "scenario", "set", "derived.profile", `{"tier":"gold"}`)
	require.NoError(t, err)

	out, err := p.execute(t, "--format", "json", "scenario", "show")
	require.NoError(t, err)
	sc := decodeData[ir.Scenario](t, decodeResponse(t, out))
	assert.NotContains(t, sc.Hashes, "derived.profile")
	assert.Contains(t, sc.Hashes, "derived.merged")

	// With the hash gone nothing contradicts the edited value.
	_, err = p.execute(t, "verify")
	require.NoError(t, err)
}

func TestScenarioReset(t *testing.T) {
	p := newProject(t, householdManifest)
	_, err := p.execute(t, "run", "--input", `household={"size":1}`, p.manifest)
	require.NoError(t, err)

	out, err := p.execute(t, "scenario", "reset")
	require.NoError(t, err)
	assert.Equal(t, "✓ Scenario reset\n", out)

	out, err = p.execute(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "No modules have run yet.\n", out)

	_, err = p.execute(t, "receipt")
	require.Error(t, err)
}
