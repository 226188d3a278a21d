// Package scenariotest holds the behaviour every scenario.Repository must
// share, run against each implementation from its own tests.
package scenariotest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/scenario"
)

// RunRepositoryContract exercises repo from an empty state.
func RunRepositoryContract(t *testing.T, repo scenario.Repository) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("load empty", func(t *testing.T) {
		_, err := repo.Load(ctx)
		assert.ErrorIs(t, err, scenario.ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		sc := ir.NewScenario(ir.DefaultEngine(), now)
		require.NoError(t, sc.Assign("inputs.household", map[string]any{"members": 3, "income": 1234.5}))
		require.NoError(t, sc.Assign("derived.a", map[string]any{"x": 1}))
		sc.ModuleStatus["a"] = ir.ModuleStatusEntry{Status: ir.StatusOK, Notes: "Completed", GeneratedAt: now}
		sc.Hashes["derived.a"] = ir.DefaultHasher().MustHash(sc.Derived["a"])

		require.NoError(t, repo.Save(ctx, sc))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, sc.Engine, got.Engine)
		assert.Equal(t, json.Number("1234.5"), got.Inputs["household"].(map[string]any)["income"])
		assert.Equal(t, sc.ModuleStatus, got.ModuleStatus)
		assert.Equal(t, sc.Hashes["derived.a"], ir.DefaultHasher().MustHash(got.Derived["a"]))
	})

	t.Run("save overwrites", func(t *testing.T) {
		sc := ir.NewScenario(ir.DefaultEngine(), now)
		require.NoError(t, sc.Assign("inputs.only", true))
		require.NoError(t, repo.Save(ctx, sc))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"only"}, ir.SortedKeys(got.Inputs))
		assert.Empty(t, got.Derived)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx))
		_, err := repo.Load(ctx)
		assert.ErrorIs(t, err, scenario.ErrNotFound)

		require.NoError(t, repo.Delete(ctx), "deleting nothing is not an error")
	})
}
