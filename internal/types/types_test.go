package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIssue() *Issue {
	return &Issue{
		Number:    42,
		Title:     "login fails",
		Type:      TypeBug,
		State:     StateCreated,
		Branch:    "issue-42",
		CreatedAt: time.Now().UTC(),
	}
}

func TestBranchFor(t *testing.T) {
	assert.Equal(t, "issue-42", BranchFor(42))
	assert.Equal(t, "issue-7", BranchFor(7))
}

func TestStateIsTerminal(t *testing.T) {
	assert.True(t, StateMerged.IsTerminal())
	assert.True(t, StateClosed.IsTerminal())
	for _, s := range []State{StateCreated, StateAssigned, StateInReview, StateApproved, StateChangesRequested} {
		assert.False(t, s.IsTerminal(), "state %s", s)
	}
}

func TestCountsAsActive(t *testing.T) {
	iss := validIssue()
	for s, want := range map[State]bool{
		StateCreated:          false,
		StateAssigned:         true,
		StateInReview:         true,
		StateChangesRequested: true,
		StateApproved:         false,
		StateMerged:           false,
		StateClosed:           false,
	} {
		iss.State = s
		assert.Equal(t, want, iss.CountsAsActive(), "state %s", s)
	}
}

func TestValidateHappyPath(t *testing.T) {
	require.NoError(t, validIssue().Validate())
}

func TestValidateStateTimestampConsistency(t *testing.T) {
	now := time.Now().UTC()

	iss := validIssue()
	iss.State = StateMerged
	require.Error(t, iss.Validate(), "merged without merged_at")

	iss = validIssue()
	iss.MergedAt = &now
	require.Error(t, iss.Validate(), "merged_at while created")

	iss = validIssue()
	iss.State = StateClosed
	require.Error(t, iss.Validate(), "closed without closed_at")

	iss = validIssue()
	iss.ClosedAt = &now
	require.Error(t, iss.Validate(), "closed_at while created")

	iss = validIssue()
	iss.State = StateMerged
	iss.MergedAt = &now
	iss.AssignedWorker = "w1"
	iss.AssignedAt = &now
	require.NoError(t, iss.Validate())
}

func TestValidateRequiresWorkerPastCreated(t *testing.T) {
	iss := validIssue()
	iss.State = StateAssigned
	require.Error(t, iss.Validate(), "assigned without worker")

	now := time.Now().UTC()
	iss.AssignedWorker = "w1"
	iss.AssignedAt = &now
	require.NoError(t, iss.Validate())
}

func TestValidateBranchMatchesNumber(t *testing.T) {
	iss := validIssue()
	iss.Branch = "issue-41"
	require.Error(t, iss.Validate())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, TypeBug.IsValid())
	assert.False(t, IssueType("epic").IsValid())
	assert.True(t, StateChangesRequested.IsValid())
	assert.False(t, State("open").IsValid())
}
