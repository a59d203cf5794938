// Package types defines core data structures for the openclaw pipeline.
package types

import (
	"fmt"
	"time"
)

// State represents where an issue is in its lifecycle.
type State string

// Lifecycle state constants
const (
	StateCreated          State = "created"
	StateAssigned         State = "assigned"
	StateInReview         State = "in-review"
	StateApproved         State = "approved"           // merge deferred (manual-merge mode)
	StateChangesRequested State = "changes-requested"  // review rejected, back to the worker
	StateMerged           State = "merged"
	StateClosed           State = "closed"
)

// IsValid checks if the state value is valid
func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateAssigned, StateInReview, StateApproved,
		StateChangesRequested, StateMerged, StateClosed:
		return true
	}
	return false
}

// IsTerminal reports whether the state has no outgoing transitions.
func (s State) IsTerminal() bool {
	return s == StateMerged || s == StateClosed
}

// IssueType categorizes the kind of work
type IssueType string

// Issue type constants
const (
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeTask    IssueType = "task"
)

// IsValid checks if the issue type value is valid
func (t IssueType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeTask:
		return true
	}
	return false
}

// Issue is the unit of tracked work moving through the lifecycle.
// Field names in JSON are the keys accepted by statestore.Apply.
type Issue struct {
	Number         int       `json:"number"`
	Title          string    `json:"title"`
	URL            string    `json:"url,omitempty"`
	Type           IssueType `json:"type"`
	State          State     `json:"state"`
	Thread         string    `json:"thread,omitempty"`          // board thread handle, created once
	Branch         string    `json:"branch"`                    // derived at creation, never changes
	AssignedWorker string    `json:"assigned_worker,omitempty"` // kept across reject/retry cycles
	PR             int       `json:"pr,omitempty"`              // latest PR supersedes earlier ones
	AutoMerge      bool      `json:"auto_merge,omitempty"`      // fixed for the issue's life
	Reason         string    `json:"reason,omitempty"`          // most recent reject/close reason

	CreatedAt         time.Time  `json:"created_at"`
	AssignedAt        *time.Time `json:"assigned_at,omitempty"`
	ReviewRequestedAt *time.Time `json:"review_requested_at,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	RejectedAt        *time.Time `json:"rejected_at,omitempty"`
	MergedAt          *time.Time `json:"merged_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

// BranchFor derives the working branch name for an issue number.
func BranchFor(number int) string {
	return fmt.Sprintf("issue-%d", number)
}

// CountsAsActive reports whether the issue contributes to its worker's
// active count: assigned but not yet merged or closed.
func (i *Issue) CountsAsActive() bool {
	switch i.State {
	case StateAssigned, StateInReview, StateChangesRequested:
		return true
	}
	return false
}

// Validate checks that the issue's fields are internally consistent.
// The state and its set timestamps must agree: merged_at present iff
// state is merged, closed_at present iff state is closed, and any state
// past created requires an assigned worker and timestamp.
func (i *Issue) Validate() error {
	if i.Number <= 0 {
		return fmt.Errorf("issue number must be positive (got %d)", i.Number)
	}
	if len(i.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if !i.State.IsValid() {
		return fmt.Errorf("invalid state: %s", i.State)
	}
	if !i.Type.IsValid() {
		return fmt.Errorf("invalid issue type: %s", i.Type)
	}
	if i.Branch != BranchFor(i.Number) {
		return fmt.Errorf("branch %q does not match issue number %d", i.Branch, i.Number)
	}
	if i.State == StateMerged && i.MergedAt == nil {
		return fmt.Errorf("merged issues must have merged_at timestamp")
	}
	if i.State != StateMerged && i.MergedAt != nil {
		return fmt.Errorf("non-merged issues cannot have merged_at timestamp")
	}
	if i.State == StateClosed && i.ClosedAt == nil {
		return fmt.Errorf("closed issues must have closed_at timestamp")
	}
	if i.State != StateClosed && i.ClosedAt != nil {
		return fmt.Errorf("non-closed issues cannot have closed_at timestamp")
	}
	if i.State != StateCreated && i.State != StateClosed {
		if i.AssignedWorker == "" {
			return fmt.Errorf("state %s requires an assigned worker", i.State)
		}
		if i.AssignedAt == nil {
			return fmt.Errorf("state %s requires assigned_at timestamp", i.State)
		}
	}
	return nil
}

// Worker is a member of the assignment pool. ActiveCount and
// LastAssignedAt are derived from a scan of the state store, never
// persisted; Paused is the only attribute the core owns.
type Worker struct {
	ID             string     `json:"id"`
	Paused         bool       `json:"paused,omitempty"`
	ActiveCount    int        `json:"active_count"`
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`
}
