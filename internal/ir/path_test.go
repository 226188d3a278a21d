package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestAssignCreatesIntermediateObjects(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)

	require.NoError(t, s.Assign("derived.a.b.c", map[string]any{"x": 1}))

	v, ok := s.Lookup("derived.a.b.c.x")
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), v)

	parent, ok := s.Lookup("derived.a")
	require.True(t, ok)
	assert.IsType(t, map[string]any{}, parent)
}

func TestAssignReplacesNonObjectIntermediate(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)
	require.NoError(t, s.Assign("inputs.a", "scalar"))
	require.NoError(t, s.Assign("inputs.a.b", true))

	v, ok := s.Lookup("inputs.a.b")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestAssignRejectsProtectedNamespaces(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)

	for _, path := range []string{"module_status.a", "hashes.derived.a", "engine.id", "created_at"} {
		err := s.Assign(path, "x")
		assert.ErrorIs(t, err, ErrReadOnlyPath, path)
	}
	for _, path := range []string{"", "derived..a", "bogus.a", ".derived", "derived.cafe\u0301"} {
		err := s.Assign(path, "x")
		assert.ErrorIs(t, err, ErrInvalidPath, path)
	}
}

func TestAssignAcceptsComposedSegments(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)
	require.NoError(t, s.Assign("derived.caf\u00e9", 1))

	_, ok := s.Lookup("derived.caf\u00e9")
	assert.True(t, ok)
	_, ok = s.Lookup("derived.cafe\u0301")
	assert.False(t, ok)
}

func TestAssignWholeNamespace(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)
	require.NoError(t, s.Assign("inputs", map[string]any{"z": 1}))
	assert.Equal(t, []string{"z"}, SortedKeys(s.Inputs))

	assert.Error(t, s.Assign("inputs", []any{1}))
}

func TestAssignDropsRelatedHashes(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)
	s.Hashes = map[string]string{
		"derived":          "root",
		"derived.a":        "self",
		"derived.a.b":      "child",
		"derived.ab":       "sibling",
		"module_output.a":  "module",
		"receipts.summary": "receipt",
	}

	require.NoError(t, s.Assign("derived.a", 1))

	assert.Equal(t, map[string]string{
		"derived.ab":       "sibling",
		"module_output.a":  "module",
		"receipts.summary": "receipt",
	}, s.Hashes)
}

func TestLookup(t *testing.T) {
	s := NewScenario(DefaultEngine(), testNow)
	require.NoError(t, s.Assign("inputs.list", []any{"a", map[string]any{"k": nil}}))
	s.Hashes["derived.a"] = "abc"
	s.ModuleStatus["a"] = ModuleStatusEntry{Status: StatusOK, Notes: "Completed", GeneratedAt: testNow}

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"inputs.list.0", "a", true},
		{"inputs.list.1.k", nil, true},
		{"inputs.list.2", nil, false},
		{"inputs.list.0.deeper", nil, false},
		{"inputs.missing", nil, false},
		{"hashes.derived.a", "abc", true},
		{"hashes.derived.b", nil, false},
		{"module_status.a.status", "OK", true},
		{"module_status.a.notes", "Completed", true},
		{"engine.id", EngineID, true},
		{"created_at", "2026-01-02T03:04:05Z", true},
		{"nowhere.x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := s.Lookup(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAbsent(t *testing.T) {
	assert.True(t, IsAbsent(nil, false))
	assert.True(t, IsAbsent(nil, true))
	assert.False(t, IsAbsent(false, true))
	assert.False(t, IsAbsent(json.Number("0"), true))
}
