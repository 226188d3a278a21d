package runner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/ir"
)

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, ir.DefaultHasher()))
	return r
}

func testView(t *testing.T, writes map[string]any) *ir.Scenario {
	t.Helper()
	sc := ir.NewScenario(ir.DefaultEngine(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	for path, v := range writes {
		require.NoError(t, sc.Assign(path, v))
	}
	return sc
}

func runBuiltin(t *testing.T, name string, cfg Config, view *ir.Scenario, inv Invocation) (Output, error) {
	t.Helper()
	run, err := builtinRegistry(t).Resolve(name, cfg)
	require.NoError(t, err)
	return run.Run(context.Background(), view, inv)
}

func TestRegisterBuiltinsNames(t *testing.T) {
	r := builtinRegistry(t)
	assert.Equal(t, []string{"copy", "digest", "fail", "files", "merge", "static"}, r.Names())
	assert.Error(t, RegisterBuiltins(r, ir.DefaultHasher()), "second registration collides")
}

func TestStaticRunner(t *testing.T) {
	out, err := runBuiltin(t, BuiltinStatic, Config{"value": map[string]any{"score": 3}}, nil, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, KindSingle, out.Kind())
	assert.Equal(t, map[string]any{"score": 3}, out.Value())

	out, err = runBuiltin(t, BuiltinStatic, Config{"writes": map[string]any{"derived.a": 1, "derived.b": 2}}, nil, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, KindMulti, out.Kind())
	assert.Len(t, out.Writes(), 2)

	_, err = builtinRegistry(t).Resolve(BuiltinStatic, Config{"value": 1, "writes": map[string]any{}})
	assert.Error(t, err)
}

func TestCopyRunner(t *testing.T) {
	view := testView(t, map[string]any{"inputs.household": map[string]any{"size": 4}})

	out, err := runBuiltin(t, BuiltinCopy, Config{"from": "inputs.household"}, view, Invocation{})
	require.NoError(t, err)
	v, ok := out.Value().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("4"), v["size"])

	_, err = runBuiltin(t, BuiltinCopy, Config{"from": "inputs.missing"}, view, Invocation{})
	assert.ErrorContains(t, err, "nothing at inputs.missing")

	_, err = builtinRegistry(t).Resolve(BuiltinCopy, Config{})
	assert.Error(t, err)
}

func TestMergeRunner(t *testing.T) {
	view := testView(t, map[string]any{
		"derived.a": map[string]any{"x": "1", "y": "a"},
		"derived.b": map[string]any{"y": "b"},
		"derived.s": "scalar",
	})

	out, err := runBuiltin(t, BuiltinMerge, Config{"from": []any{"derived.a", "derived.b", "derived.none"}}, view, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": "1", "y": "b"}, out.Value())

	_, err = runBuiltin(t, BuiltinMerge, Config{"from": []any{"derived.s"}}, view, Invocation{})
	assert.ErrorContains(t, err, "not an object")
}

func TestDigestRunner(t *testing.T) {
	view := testView(t, map[string]any{"inputs.name": "abc"})

	out, err := runBuiltin(t, BuiltinDigest, Config{"from": "inputs.name"}, view, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, DigestResult{
		Path:      "inputs.name",
		Algorithm: "sha256",
		Digest:    "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}, out.Value())
}

func TestFilesRunner(t *testing.T) {
	out, err := runBuiltin(t, BuiltinFiles, nil, nil, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 0, "files": []FileMeta{}}, out.Value())

	files := []FileMeta{{Name: "w2.pdf", Size: 1024, Type: "application/pdf"}}
	out, err = runBuiltin(t, BuiltinFiles, nil, nil, Invocation{Files: files})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 1, "files": files}, out.Value())
}

func TestFailRunner(t *testing.T) {
	_, err := runBuiltin(t, BuiltinFail, Config{"message": "boom"}, nil, Invocation{})
	assert.EqualError(t, err, "boom")

	_, err = runBuiltin(t, BuiltinFail, nil, nil, Invocation{})
	assert.EqualError(t, err, "module failed")
}
