package statestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), "testproj")
	require.NoError(t, err)
	return store
}

func createIssue(t *testing.T, store *Store, number int) *types.Issue {
	t.Helper()
	iss, err := store.Apply(context.Background(), number, map[string]interface{}{
		"title":      fmt.Sprintf("issue %d", number),
		"type":       types.TypeTask,
		"state":      types.StateCreated,
		"branch":     types.BranchFor(number),
		"created_at": time.Now().UTC(),
	})
	require.NoError(t, err)
	return iss
}

func TestApplyThenGetRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	createIssue(t, store, 42)

	// Partial update: only the named fields change.
	now := time.Now().UTC()
	_, err := store.Apply(ctx, 42, map[string]interface{}{
		"state":           types.StateAssigned,
		"assigned_worker": "w1",
		"assigned_at":     now,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateAssigned, got.State)
	assert.Equal(t, "w1", got.AssignedWorker)
	assert.Equal(t, "issue 42", got.Title, "unnamed fields must survive")
	assert.Equal(t, "issue-42", got.Branch)
	assert.Equal(t, types.TypeTask, got.Type)
}

func TestGetNotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListInsertionOrder(t *testing.T) {
	store := newStore(t)
	for _, n := range []int{5, 2, 9} {
		createIssue(t, store, n)
	}
	issues, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, 5, issues[0].Number)
	assert.Equal(t, 2, issues[1].Number)
	assert.Equal(t, 9, issues[2].Number)
}

func TestCorruptFileIsNotEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, "testproj")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testproj.json"), []byte("{not json"), 0600))

	// A corrupt store must fail loudly, never read as "no issues".
	_, err = store.List(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = store.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = store.Apply(context.Background(), 1, map[string]interface{}{"title": "x"})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestApplyRejectsInconsistentRecord(t *testing.T) {
	store := newStore(t)
	createIssue(t, store, 1)

	// merged without merged_at violates the state⇔timestamp invariant.
	_, err := store.Apply(context.Background(), 1, map[string]interface{}{
		"state": types.StateMerged,
	})
	require.Error(t, err)

	got, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, types.StateCreated, got.State, "failed apply must not mutate")
}

func TestApplyClearsFieldOnNil(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	createIssue(t, store, 1)

	_, err := store.Apply(ctx, 1, map[string]interface{}{"url": "https://example.com/1"})
	require.NoError(t, err)
	_, err = store.Apply(ctx, 1, map[string]interface{}{"url": nil})
	require.NoError(t, err)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got.URL)
}

func TestWorkerFlagsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWorkerPaused(ctx, "w1", true))
	require.NoError(t, store.SetWorkerPaused(ctx, "w1", true)) // no error, no toggle

	flags, err := store.WorkerFlags(ctx)
	require.NoError(t, err)
	assert.True(t, flags["w1"])

	require.NoError(t, store.SetWorkerPaused(ctx, "w1", false))
	flags, err = store.WorkerFlags(ctx)
	require.NoError(t, err)
	assert.False(t, flags["w1"])
}

func TestConcurrentAppliesLoseNothing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for n := 1; n <= 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Apply(ctx, n, map[string]interface{}{
				"title":      fmt.Sprintf("issue %d", n),
				"type":       types.TypeTask,
				"state":      types.StateCreated,
				"branch":     types.BranchFor(n),
				"created_at": time.Now().UTC(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	issues, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 20, "racing applies must not drop records")
}
