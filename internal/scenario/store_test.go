package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, *MemoryRepository, *testutil.StepClock) {
	t.Helper()
	repo := NewMemoryRepository()
	clock := testutil.NewStepClock(testutil.Epoch, time.Second)
	st := New(repo,
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return st, repo, clock
}

func TestLoadReturnsNilWithoutState(t *testing.T) {
	st, _, _ := newTestStore(t)
	assert.Nil(t, st.Load(context.Background()))
}

func TestLoadSwallowsCorruptState(t *testing.T) {
	st, repo, _ := newTestStore(t)
	repo.SetRaw([]byte("{not json"))
	assert.Nil(t, st.Load(context.Background()))

	repo.SetRaw([]byte(`{"unrelated":true}`))
	assert.Nil(t, st.Load(context.Background()))
}

func TestGetOrCreatePersistsFreshScenario(t *testing.T) {
	ctx := context.Background()
	st, repo, _ := newTestStore(t)

	sc, err := st.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.DefaultEngine(), sc.Engine)
	assert.Empty(t, sc.Inputs)
	assert.NotNil(t, repo.Raw())

	again, err := st.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Same(t, sc, again)
}

func TestGetOrCreateLoadsExistingScenario(t *testing.T) {
	ctx := context.Background()
	st, repo, _ := newTestStore(t)
	require.NoError(t, st.SetInput(ctx, "z", 7))

	other := New(repo)
	sc, err := other.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, json.Number("7"), sc.Inputs["z"])
}

func TestSaveRefreshesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTestStore(t)

	sc, err := st.GetOrCreate(ctx)
	require.NoError(t, err)
	before := sc.UpdatedAt

	require.NoError(t, st.Save(ctx, sc))
	assert.True(t, sc.UpdatedAt.After(before))
	assert.Equal(t, testutil.Epoch, sc.CreatedAt)
}

func TestSetPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	st, repo, _ := newTestStore(t)

	require.NoError(t, st.Set(ctx, "derived.a.b", map[string]any{"x": 1}))

	persisted, err := repo.Load(ctx)
	require.NoError(t, err)
	v, ok := persisted.Lookup("derived.a.b.x")
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), v)

	v, ok = st.Get(ctx, "derived.a.b.x")
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), v)
}

func TestSetRejectsProtectedPaths(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTestStore(t)

	assert.ErrorIs(t, st.Set(ctx, "module_status.a", "OK"), ir.ErrReadOnlyPath)
	assert.ErrorIs(t, st.Set(ctx, "hashes.derived.a", "x"), ir.ErrReadOnlyPath)
	assert.ErrorIs(t, st.Set(ctx, "nope", 1), ir.ErrInvalidPath)
}

func TestSetInvalidatesHashes(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTestStore(t)

	require.NoError(t, st.Set(ctx, "derived.a", 1))
	_, err := st.StoreHash(ctx, "derived.a", 1)
	require.NoError(t, err)
	_, ok := st.Get(ctx, "hashes.derived.a")
	require.True(t, ok)

	require.NoError(t, st.Set(ctx, "derived.a", 2))
	_, ok = st.Get(ctx, "hashes.derived.a")
	assert.False(t, ok, "stale hash must not survive a rewrite")
}

func TestResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	st, repo, _ := newTestStore(t)
	require.NoError(t, st.SetInput(ctx, "x", 1))
	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusRunning, "Running…"))
	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusOK, "Completed"))

	fresh, err := st.Reset(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh.Inputs)
	assert.Empty(t, fresh.ModuleStatus)

	persisted, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted.Inputs)
}

func TestSetModuleStatus(t *testing.T) {
	ctx := context.Background()
	st, _, clock := newTestStore(t)

	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusRunning, "Running…"))
	want := clock.Peek()
	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusWarn, "Error: boom"))

	sc := st.Snapshot(ctx)
	entry := sc.ModuleStatus["a"]
	assert.Equal(t, ir.StatusWarn, entry.Status)
	assert.Equal(t, "Error: boom", entry.Notes)
	assert.False(t, entry.GeneratedAt.Before(want))

	assert.Error(t, st.SetModuleStatus(ctx, "a", ir.Status("DONE"), ""))
	assert.Error(t, st.SetModuleStatus(ctx, "", ir.StatusOK, ""))
}

func TestSetModuleStatusEnforcesTransitions(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTestStore(t)

	// No entry counts as PENDING, which cannot jump straight to a result.
	err := st.SetModuleStatus(ctx, "a", ir.StatusOK, "Completed")
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.NotContains(t, st.Snapshot(ctx).ModuleStatus, "a")

	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusRunning, "Running…"))
	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusOK, "Completed"))

	assert.ErrorIs(t, st.SetModuleStatus(ctx, "a", ir.StatusRunning, ""), ErrIllegalTransition)
	assert.ErrorIs(t, st.SetModuleStatus(ctx, "a", ir.StatusWarn, ""), ErrIllegalTransition)
	assert.Equal(t, ir.StatusOK, st.Snapshot(ctx).ModuleStatus["a"].Status)

	// A late fault may still turn a result into FAIL, and a new pass re-seeds.
	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusFail, "Persistence fault: disk full"))
	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusPending, ""))
}

func TestStoreHash(t *testing.T) {
	ctx := context.Background()
	st, repo, _ := newTestStore(t)

	digest, err := st.StoreHash(ctx, "derived.a", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, ir.DefaultHasher().MustHash(map[string]any{"x": 1}), digest)

	raw, err := st.StoreHash(ctx, "module_output.c", "already serialized")
	require.NoError(t, err)
	assert.Equal(t, ir.DefaultHasher().HashBytes([]byte("already serialized")), raw)

	persisted, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, digest, persisted.Hashes["derived.a"])
	assert.Equal(t, raw, persisted.Hashes["module_output.c"])

	_, err = st.StoreHash(ctx, "", 1)
	assert.Error(t, err)
}

func TestSeedPending(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTestStore(t)
	for _, key := range []string{"a", "stale"} {
		require.NoError(t, st.SetModuleStatus(ctx, key, ir.StatusRunning, "Running…"))
	}
	require.NoError(t, st.SetModuleStatus(ctx, "a", ir.StatusOK, "Completed"))
	require.NoError(t, st.SetModuleStatus(ctx, "stale", ir.StatusFail, "Error: x"))

	require.NoError(t, st.SeedPending(ctx, []string{"a", "b"}))

	sc := st.Snapshot(ctx)
	require.Len(t, sc.ModuleStatus, 2)
	assert.Equal(t, ir.StatusPending, sc.ModuleStatus["a"].Status)
	assert.Equal(t, ir.StatusPending, sc.ModuleStatus["b"].Status)
	assert.Empty(t, sc.ModuleStatus["a"].Notes)
}

func TestSnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTestStore(t)
	require.NoError(t, st.SetInput(ctx, "x", map[string]any{"k": "v"}))

	snap := st.Snapshot(ctx)
	snap.Inputs["x"].(map[string]any)["k"] = "changed"

	v, _ := st.Get(ctx, "inputs.x.k")
	assert.Equal(t, "v", v)
}

type failingRepo struct {
	MemoryRepository
	err error
}

func (r *failingRepo) Save(context.Context, *ir.Scenario) error { return r.err }

func TestPersistenceErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	st := New(&failingRepo{err: boom}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := st.GetOrCreate(ctx)
	assert.ErrorIs(t, err, boom)

	err = st.Set(ctx, "inputs.x", 1)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrSave)
	assert.EqualError(t, err, "save scenario: disk full")

	// The in-memory document still reflects the write.
	v, ok := st.Get(ctx, "inputs.x")
	assert.True(t, ok)
	assert.Equal(t, json.Number("1"), v)
}
