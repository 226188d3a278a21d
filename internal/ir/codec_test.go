package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioRoundTripIsLossless(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)
	require.NoError(t, s.Assign("inputs.big", json.Number("12345678901234567890")))
	require.NoError(t, s.Assign("derived.a", map[string]any{"ratio": 0.1, "tags": []any{"x"}}))
	s.ModuleStatus["a"] = ModuleStatusEntry{Status: StatusWarn, Notes: "Error: boom", GeneratedAt: testNow}
	s.Hashes["derived.a"] = DefaultHasher().MustHash(s.Derived["a"])

	data, err := EncodeScenario(s)
	require.NoError(t, err)
	back, err := DecodeScenario(data)
	require.NoError(t, err)

	assert.Equal(t, json.Number("12345678901234567890"), back.Inputs["big"])
	assert.Equal(t, s.ModuleStatus, back.ModuleStatus)
	assert.Equal(t, s.Hashes["derived.a"], DefaultHasher().MustHash(back.Derived["a"]))
	assert.True(t, s.CreatedAt.Equal(back.CreatedAt))
}

func TestDecodeScenarioErrors(t *testing.T) {
	_, err := DecodeScenario([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNotScenario)

	_, err = DecodeScenario([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeScenario([]byte(`{"engine":{"id":"ABE"},"module_status":{"a":{"status":"DONE"}}}`))
	assert.ErrorContains(t, err, "unknown status")
}

func TestDecodeScenarioFillsMissingNamespaces(t *testing.T) {
	s, err := DecodeScenario([]byte(`{"engine":{"id":"ABE","name":"ABE Flag","version":"1.0"}}`))
	require.NoError(t, err)
	assert.NotNil(t, s.Inputs)
	assert.NotNil(t, s.Derived)
	assert.NotNil(t, s.ModuleStatus)
	assert.NotNil(t, s.Hashes)
	assert.NotNil(t, s.Receipts)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)
	require.NoError(t, s.Assign("inputs.a", map[string]any{"x": 1}))

	c := s.Clone()
	require.NoError(t, c.Assign("inputs.a.x", 2))

	v, _ := s.Lookup("inputs.a.x")
	assert.Equal(t, json.Number("1"), v)
}
