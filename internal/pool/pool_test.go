package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

func activeIssue(number int, worker string, assignedAt time.Time) *types.Issue {
	return &types.Issue{
		Number:         number,
		State:          types.StateAssigned,
		AssignedWorker: worker,
		AssignedAt:     &assignedAt,
	}
}

func TestPickLeastLoaded(t *testing.T) {
	now := time.Now().UTC()
	alloc := New([]string{"w1", "w2"}, "fallback")

	// w2 carries one active issue, w1 none.
	issues := []*types.Issue{activeIssue(1, "w2", now)}

	picked, err := alloc.Pick(issues, nil)
	require.NoError(t, err)
	assert.Equal(t, "w1", picked)
}

func TestPickTiebreakOldestAssignment(t *testing.T) {
	now := time.Now().UTC()
	alloc := New([]string{"w1", "w2"}, "")

	issues := []*types.Issue{
		activeIssue(1, "w1", now.Add(-1*time.Hour)),
		activeIssue(2, "w2", now.Add(-3*time.Hour)),
	}

	// Both at active_count 1; w2 has gone longer without new work.
	picked, err := alloc.Pick(issues, nil)
	require.NoError(t, err)
	assert.Equal(t, "w2", picked)
}

func TestPickNeverAssignedWinsTie(t *testing.T) {
	now := time.Now().UTC()
	alloc := New([]string{"w1", "w2"}, "")

	// Merged issues don't count as active, but the assignment stamp on
	// w1 still records when it last received work.
	merged := activeIssue(1, "w1", now)
	merged.State = types.StateMerged
	mt := now
	merged.MergedAt = &mt

	picked, err := alloc.Pick([]*types.Issue{merged}, nil)
	require.NoError(t, err)
	assert.Equal(t, "w2", picked)
}

func TestPickSkipsPaused(t *testing.T) {
	alloc := New([]string{"w1", "w2"}, "")

	picked, err := alloc.Pick(nil, map[string]bool{"w1": true})
	require.NoError(t, err)
	assert.Equal(t, "w2", picked)
}

func TestPickAllPaused(t *testing.T) {
	alloc := New([]string{"w1", "w2"}, "")

	_, err := alloc.Pick(nil, map[string]bool{"w1": true, "w2": true})
	assert.ErrorIs(t, err, ErrNoAvailableWorkers)
}

func TestEmptyRosterDegeneratesToDefault(t *testing.T) {
	alloc := New(nil, "solo")

	picked, err := alloc.Pick(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "solo", picked)
}

func TestWorkersDerivation(t *testing.T) {
	now := time.Now().UTC()
	alloc := New([]string{"w1", "w2"}, "")

	inReview := activeIssue(1, "w1", now.Add(-2*time.Hour))
	inReview.State = types.StateInReview

	closed := activeIssue(2, "w1", now.Add(-1*time.Hour))
	closed.State = types.StateClosed
	ct := now
	closed.ClosedAt = &ct

	workers := alloc.Workers([]*types.Issue{inReview, closed}, map[string]bool{"w2": true})
	require.Len(t, workers, 2)

	w1 := workers[0]
	assert.Equal(t, "w1", w1.ID)
	assert.Equal(t, 1, w1.ActiveCount, "closed issues don't count")
	require.NotNil(t, w1.LastAssignedAt)
	assert.True(t, w1.LastAssignedAt.Equal(now.Add(-1*time.Hour)), "latest stamp wins")

	w2 := workers[1]
	assert.True(t, w2.Paused)
	assert.Zero(t, w2.ActiveCount)
	assert.Nil(t, w2.LastAssignedAt)
}

func TestContains(t *testing.T) {
	alloc := New([]string{"w1"}, "solo")
	assert.True(t, alloc.Contains("w1"))
	assert.False(t, alloc.Contains("solo"), "default only counts for empty rosters")

	empty := New(nil, "solo")
	assert.True(t, empty.Contains("solo"))
	assert.False(t, empty.Contains("w1"))
}
