package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/ir"
)

func constant(v any) Runner {
	return Func(func(context.Context, *ir.Scenario, Invocation) (Output, error) {
		return Single(v), nil
	})
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterRunner("one", constant(1)))

	assert.True(t, r.Has("one"))
	assert.False(t, r.Has("two"))

	run, err := r.Resolve("one", nil)
	require.NoError(t, err)
	out, err := run.Run(context.Background(), nil, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Value())
}

func TestRegistryRejectsDuplicatesAndBlanks(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterRunner("one", constant(1)))
	assert.Error(t, r.RegisterRunner("one", constant(2)))
	assert.Error(t, r.Register("", func(Config) (Runner, error) { return constant(1), nil }))
	assert.Error(t, r.Register("nil", nil))
	assert.Panics(t, func() { r.MustRegister("one", func(Config) (Runner, error) { return constant(1), nil }) })
}

func TestRegistryResolveErrors(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("broken", func(Config) (Runner, error) { return nil, errors.New("bad config") })
	r.MustRegister("empty", func(Config) (Runner, error) { return nil, nil })
	r.MustRegister("nilfunc", func(Config) (Runner, error) { return Func(nil), nil })

	_, err := r.Resolve("ghost", nil)
	assert.ErrorIs(t, err, ErrUnknownRunner)

	_, err = r.Resolve("broken", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
	assert.NotErrorIs(t, err, ErrNilRunner)

	_, err = r.Resolve("empty", nil)
	assert.ErrorIs(t, err, ErrNilRunner)

	_, err = r.Resolve("nilfunc", nil)
	assert.ErrorIs(t, err, ErrNilRunner)
}

func TestRegistryPassesConfig(t *testing.T) {
	r := NewRegistry()
	var seen Config
	r.MustRegister("cfg", func(cfg Config) (Runner, error) {
		seen = cfg
		return constant(nil), nil
	})

	_, err := r.Resolve("cfg", nil)
	require.NoError(t, err)
	assert.NotNil(t, seen)

	_, err = r.Resolve("cfg", Config{"k": "v"})
	require.NoError(t, err)
	v, ok := seen.String("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.RegisterRunner(name, constant(name)))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestOutputKinds(t *testing.T) {
	var zero Output
	assert.Equal(t, KindSingle, zero.Kind())
	assert.Nil(t, zero.Value())

	writes := map[string]any{"derived.a": 1}
	multi := Multi(writes)
	writes["derived.b"] = 2
	assert.Equal(t, KindMulti, multi.Kind())
	assert.Len(t, multi.Writes(), 1)
	assert.Nil(t, multi.Value())
	assert.Equal(t, "multi", multi.Kind().String())
	assert.Equal(t, "single", Single(1).Kind().String())
}

func TestConfigDecodeRejectsUnknownKeys(t *testing.T) {
	var target struct {
		From string `json:"from"`
	}
	require.NoError(t, Config{"from": "inputs.a"}.Decode(&target))
	assert.Equal(t, "inputs.a", target.From)

	assert.Error(t, Config{"form": "inputs.a"}.Decode(&target))
}
