// Package lifecycle implements the per-issue state machine and the
// engine that drives it.
//
// States: created → assigned → in-review → {approved | changes-requested}
// → merged | closed. changes-requested loops back to in-review on the
// next review request; approved is the deferred-merge side state; merged
// and closed are terminal. Every guard violation is a PreconditionError
// naming the expected and actual state — the engine never silently no-ops
// an out-of-sequence step.
//
// Ordering discipline: validation first (no side effects), then dependent
// collaborator calls, then the durable state transition, and only after
// commit the notification dispatch. Notification failures are reported
// but never roll the transition back.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/pool"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/router"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/statestore"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/telemetry"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

// Tracker is the external issue/PR system of record.
type Tracker interface {
	CreateIssue(ctx context.Context, title, body string, labels []string) (number int, url string, err error)
	CloseIssue(ctx context.Context, number int, reason string) error
	MergePR(ctx context.Context, pr int, strategy string) error
	ReviewPR(ctx context.Context, pr int, verdict, body string) error
	FetchIssueBody(ctx context.Context, number int) (string, error)
}

// Drafter produces an issue title and body from a short description.
// Implementations must be time-boxed and degrade to a deterministic
// template instead of blocking create indefinitely.
type Drafter interface {
	Draft(ctx context.Context, kind, description, repo string) (title, body string, err error)
}

// Deployer executes the project's deploy steps after a merge.
type Deployer interface {
	Run(ctx context.Context, steps []string) (output string, err error)
}

// Options carries the per-project knobs the engine needs.
type Options struct {
	Repo          string // tracker repo identifier, for drafter context
	MergeStrategy string // tracker merge strategy (merge|squash|rebase)
	DeploySteps   []string
}

// Engine coordinates one command invocation: it validates the requested
// transition, consults the allocator when assigning, applies the
// transition to the store, and hands the committed event to the router.
// It holds no state across invocations beyond what the store persists.
type Engine struct {
	store    *statestore.Store
	tracker  Tracker
	drafter  Drafter
	deployer Deployer
	router   *router.Router
	alloc    *pool.Allocator
	opts     Options

	now func() time.Time
}

// New creates an engine. Collaborators that a given command never touches
// may be nil.
func New(store *statestore.Store, tracker Tracker, drafter Drafter, deployer Deployer, rt *router.Router, alloc *pool.Allocator, opts Options) *Engine {
	return &Engine{
		store:    store,
		tracker:  tracker,
		drafter:  drafter,
		deployer: deployer,
		router:   rt,
		alloc:    alloc,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Result is what every engine operation hands back to the command layer:
// the issue after the transition, a one-line summary, and the outcome of
// each post-commit delivery.
type Result struct {
	Issue   *types.Issue            `json:"issue"`
	Summary string                  `json:"summary"`
	Notices []router.DispatchResult `json:"notices,omitempty"`
}

// Failed reports whether any post-commit delivery failed. The transition
// itself stands either way.
func (r *Result) Failed() bool {
	for _, n := range r.Notices {
		if !n.Success {
			return true
		}
	}
	return false
}

// Create allocates a new issue: drafts title and body, creates the
// tracker issue, opens the board thread, and stores the record in state
// created with its branch and auto-merge flag fixed for life.
func (e *Engine) Create(ctx context.Context, typ types.IssueType, description string, autoMerge bool) (*Result, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("invalid issue type: %s", typ)
	}
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}

	title, body, err := e.drafter.Draft(ctx, string(typ), description, e.opts.Repo)
	if err != nil {
		// Drafter implementations fall back to a template themselves;
		// an error here means even the fallback path broke.
		return nil, &CollaboratorError{Collaborator: "drafter", Err: err}
	}

	number, url, err := e.tracker.CreateIssue(ctx, title, body, []string{string(typ)})
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "tracker", Err: err}
	}

	issue := &types.Issue{
		Number:    number,
		Title:     title,
		URL:       url,
		Type:      typ,
		State:     types.StateCreated,
		Branch:    types.BranchFor(number),
		AutoMerge: autoMerge,
		CreatedAt: e.now(),
	}

	thread, err := e.router.OpenThread(ctx, issue)
	if err != nil {
		// The tracker issue exists but no state was stored; rerunning
		// create would duplicate it, so the operator must reconcile.
		return nil, &CollaboratorError{Collaborator: "board", Err: fmt.Errorf("issue %d created on tracker but thread failed: %w", number, err)}
	}
	issue.Thread = thread

	stored, err := e.store.Apply(ctx, number, map[string]interface{}{
		"title":      issue.Title,
		"url":        issue.URL,
		"type":       issue.Type,
		"state":      issue.State,
		"thread":     issue.Thread,
		"branch":     issue.Branch,
		"auto_merge": issue.AutoMerge,
		"created_at": issue.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountTransition(ctx, string(router.EventCreated))

	notices := e.router.Dispatch(ctx, router.EventCreated, stored, "")
	return &Result{
		Issue:   stored,
		Summary: fmt.Sprintf("created issue #%d (%s) on branch %s", number, typ, stored.Branch),
		Notices: notices,
	}, nil
}

// Assign selects a worker for a freshly created issue. Re-running assign
// on an already-assigned issue fails: a second assignment would either
// duplicate the worker notification or silently override the recorded
// worker.
func (e *Engine) Assign(ctx context.Context, number int) (*Result, error) {
	issue, err := e.store.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if issue.State != types.StateCreated {
		return nil, &PreconditionError{Trigger: "assign", Expected: []string{string(types.StateCreated)}, Actual: string(issue.State)}
	}

	issues, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	paused, err := e.store.WorkerFlags(ctx)
	if err != nil {
		return nil, err
	}
	worker, err := e.alloc.Pick(issues, paused)
	if err != nil {
		return nil, err
	}

	stored, err := e.store.Apply(ctx, number, map[string]interface{}{
		"state":           types.StateAssigned,
		"assigned_worker": worker,
		"assigned_at":     e.now(),
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountTransition(ctx, string(router.EventAssigned))

	notices := e.router.Dispatch(ctx, router.EventAssigned, stored, "")
	return &Result{
		Issue:   stored,
		Summary: fmt.Sprintf("assigned issue #%d to %s", number, worker),
		Notices: notices,
	}, nil
}

// RequestReview moves an issue into review with the given PR. Called
// while already in-review it is accepted and the new PR supersedes the
// old one — a worker pushing a replacement PR before the first review.
func (e *Engine) RequestReview(ctx context.Context, number, pr int) (*Result, error) {
	if pr <= 0 {
		return nil, fmt.Errorf("pr number must be positive (got %d)", pr)
	}
	issue, err := e.store.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	switch issue.State {
	case types.StateAssigned, types.StateChangesRequested, types.StateInReview:
	default:
		return nil, &PreconditionError{
			Trigger:  "request-review",
			Expected: []string{string(types.StateAssigned), string(types.StateChangesRequested), string(types.StateInReview)},
			Actual:   string(issue.State),
		}
	}

	stored, err := e.store.Apply(ctx, number, map[string]interface{}{
		"state":               types.StateInReview,
		"pr":                  pr,
		"review_requested_at": e.now(),
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountTransition(ctx, string(router.EventReviewRequested))

	notices := e.router.Dispatch(ctx, router.EventReviewRequested, stored, "")
	return &Result{
		Issue:   stored,
		Summary: fmt.Sprintf("issue #%d in review (PR #%d)", number, pr),
		Notices: notices,
	}, nil
}

// Approve accepts an in-review issue. With auto-merge the issue is first
// committed as approved, then merged via the tracker — a merge failure
// leaves it approved so the operation is safely retried with
// CompleteMerge. Without auto-merge the issue parks in approved.
func (e *Engine) Approve(ctx context.Context, number int) (*Result, error) {
	issue, err := e.store.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if issue.State != types.StateInReview {
		return nil, &PreconditionError{Trigger: "approve", Expected: []string{string(types.StateInReview)}, Actual: string(issue.State)}
	}

	if err := e.tracker.ReviewPR(ctx, issue.PR, "approve", fmt.Sprintf("Approved for issue #%d.", number)); err != nil {
		return nil, &CollaboratorError{Collaborator: "tracker", Err: err}
	}

	stored, err := e.store.Apply(ctx, number, map[string]interface{}{
		"state":       types.StateApproved,
		"approved_at": e.now(),
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountTransition(ctx, string(router.EventApproved))

	if !stored.AutoMerge {
		notices := e.router.Dispatch(ctx, router.EventApproved, stored, "")
		return &Result{
			Issue:   stored,
			Summary: fmt.Sprintf("issue #%d approved, merge deferred", number),
			Notices: notices,
		}, nil
	}
	return e.merge(ctx, stored)
}

// CompleteMerge is the explicit completion signal for an approved issue
// in manual-merge mode.
func (e *Engine) CompleteMerge(ctx context.Context, number int) (*Result, error) {
	issue, err := e.store.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if issue.State != types.StateApproved {
		return nil, &PreconditionError{Trigger: "complete-merge", Expected: []string{string(types.StateApproved)}, Actual: string(issue.State)}
	}
	return e.merge(ctx, issue)
}

// merge performs the tracker merge for an approved issue, commits the
// merged state, and runs the deploy steps. The approved record is already
// durable, so a tracker failure here reports Committed and the operator
// retries with complete-merge.
func (e *Engine) merge(ctx context.Context, issue *types.Issue) (*Result, error) {
	if err := e.tracker.MergePR(ctx, issue.PR, e.opts.MergeStrategy); err != nil {
		return nil, &CollaboratorError{Collaborator: "tracker", Committed: true, Err: fmt.Errorf("issue #%d stays approved: %w", issue.Number, err)}
	}

	stored, err := e.store.Apply(ctx, issue.Number, map[string]interface{}{
		"state":     types.StateMerged,
		"merged_at": e.now(),
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountTransition(ctx, string(router.EventMerged))

	notices := e.router.Dispatch(ctx, router.EventMerged, stored, "")
	summary := fmt.Sprintf("issue #%d merged (PR #%d)", stored.Number, stored.PR)

	// Deploy runs synchronously and blocks this invocation until done.
	// Its outcome is announced post-merge; a failure never unwinds the
	// merge, it surfaces as a failed notice.
	if len(e.opts.DeploySteps) > 0 {
		out, deployErr := e.deployer.Run(ctx, e.opts.DeploySteps)
		detail := out
		if deployErr != nil {
			detail = fmt.Sprintf("FAILED: %v\n%s", deployErr, out)
			notices = append(notices, router.DispatchResult{
				Destination: "deployer",
				Identity:    router.IdentityObserver,
				Success:     false,
				Error:       deployErr.Error(),
			})
			summary += " (deploy failed)"
		} else {
			summary += " and deployed"
		}
		notices = append(notices, e.router.Dispatch(ctx, router.EventDeployed, stored, detail)...)
	}

	return &Result{Issue: stored, Summary: summary, Notices: notices}, nil
}

// Reject sends an in-review issue back to its worker. The worker recorded
// at assign time keeps the issue through every review round.
func (e *Engine) Reject(ctx context.Context, number int, reason string) (*Result, error) {
	if reason == "" {
		return nil, fmt.Errorf("reject reason is required")
	}
	issue, err := e.store.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if issue.State != types.StateInReview {
		return nil, &PreconditionError{Trigger: "reject", Expected: []string{string(types.StateInReview)}, Actual: string(issue.State)}
	}

	if err := e.tracker.ReviewPR(ctx, issue.PR, "request-changes", reason); err != nil {
		return nil, &CollaboratorError{Collaborator: "tracker", Err: err}
	}

	stored, err := e.store.Apply(ctx, number, map[string]interface{}{
		"state":       types.StateChangesRequested,
		"reason":      reason,
		"rejected_at": e.now(),
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountTransition(ctx, string(router.EventRejected))

	notices := e.router.Dispatch(ctx, router.EventRejected, stored, reason)
	return &Result{
		Issue:   stored,
		Summary: fmt.Sprintf("issue #%d: changes requested", number),
		Notices: notices,
	}, nil
}

// Close terminates an issue from any non-terminal state (duplicate,
// won't-fix, resolved without code changes).
func (e *Engine) Close(ctx context.Context, number int, reason string) (*Result, error) {
	if reason == "" {
		return nil, fmt.Errorf("close reason is required")
	}
	issue, err := e.store.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if issue.State.IsTerminal() {
		return nil, &PreconditionError{Trigger: "close", Expected: []string{"any non-terminal state"}, Actual: string(issue.State)}
	}

	if err := e.tracker.CloseIssue(ctx, number, reason); err != nil {
		return nil, &CollaboratorError{Collaborator: "tracker", Err: err}
	}

	stored, err := e.store.Apply(ctx, number, map[string]interface{}{
		"state":     types.StateClosed,
		"reason":    reason,
		"closed_at": e.now(),
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountTransition(ctx, string(router.EventClosed))

	notices := e.router.Dispatch(ctx, router.EventClosed, stored, reason)
	return &Result{
		Issue:   stored,
		Summary: fmt.Sprintf("issue #%d closed: %s", number, reason),
		Notices: notices,
	}, nil
}

// Status returns one issue, read-only.
func (e *Engine) Status(ctx context.Context, number int) (*types.Issue, error) {
	return e.store.Get(ctx, number)
}

// List returns all issues in first-appearance order, read-only.
func (e *Engine) List(ctx context.Context) ([]*types.Issue, error) {
	return e.store.List(ctx)
}

// IssueBody fetches the issue body from the tracker, for status --body.
func (e *Engine) IssueBody(ctx context.Context, number int) (string, error) {
	if _, err := e.store.Get(ctx, number); err != nil {
		return "", err
	}
	body, err := e.tracker.FetchIssueBody(ctx, number)
	if err != nil {
		return "", &CollaboratorError{Collaborator: "tracker", Err: err}
	}
	return body, nil
}

// Workers returns the derived view of the pool: roster with paused flags,
// active counts and last-assignment times.
func (e *Engine) Workers(ctx context.Context) ([]*types.Worker, error) {
	issues, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	paused, err := e.store.WorkerFlags(ctx)
	if err != nil {
		return nil, err
	}
	return e.alloc.Workers(issues, paused), nil
}

// PauseWorker excludes a worker from future assignments. Idempotent:
// pausing a paused worker is a no-op, not an error. Issues already
// assigned to the worker are unaffected.
func (e *Engine) PauseWorker(ctx context.Context, workerID string) error {
	return e.setWorkerPaused(ctx, workerID, true)
}

// ResumeWorker re-admits a worker to the pool. Idempotent like PauseWorker.
func (e *Engine) ResumeWorker(ctx context.Context, workerID string) error {
	return e.setWorkerPaused(ctx, workerID, false)
}

func (e *Engine) setWorkerPaused(ctx context.Context, workerID string, paused bool) error {
	if !e.alloc.Contains(workerID) {
		return fmt.Errorf("worker not in roster: %s", workerID)
	}
	return e.store.SetWorkerPaused(ctx, workerID, paused)
}
