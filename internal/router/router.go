// Package router maps lifecycle transitions to the outbound message set
// and dispatches it to the board.
//
// The router is a post-commit layer: callers invoke it only after the
// state transition is durably applied. Delivery failures are reported per
// destination and never roll back the transition — the stored state is
// ground truth, messages are best effort.
package router

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/telemetry"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

// Identity selects which sender a message goes out as. The two must never
// be confused: a worker reacting to its own completion broadcast would
// loop forever.
type Identity string

const (
	// IdentityActor provokes agent action. Used for assignment and
	// review-request messages; recipients are expected to act on them.
	IdentityActor Identity = "actor"

	// IdentityObserver purely informs. Used for status and result
	// broadcasts; must never trigger recipient action.
	IdentityObserver Identity = "observer"
)

// Event names a committed lifecycle transition.
type Event string

// Transition event constants
const (
	EventCreated         Event = "created"
	EventAssigned        Event = "assigned"
	EventReviewRequested Event = "review-requested"
	EventApproved        Event = "approved"
	EventRejected        Event = "rejected"
	EventMerged          Event = "merged"
	EventClosed          Event = "closed"
	EventDeployed        Event = "deployed"
)

// Board is the external chat platform consumed by the router.
type Board interface {
	// CreateThread opens the issue's dedicated discussion surface and
	// returns an opaque handle for later posts.
	CreateThread(ctx context.Context, title, body string, tags []string) (string, error)

	// PostMessage delivers one message. destination is a thread handle
	// or a channel identifier.
	PostMessage(ctx context.Context, destination, body string, identity Identity) error

	// ArchiveThread marks the thread resolved and read-only.
	ArchiveThread(ctx context.Context, thread string) error

	// ApplyTag attaches a tag to the thread.
	ApplyTag(ctx context.Context, thread, tag string) error
}

// Destinations are the project-level surfaces beyond per-issue threads.
type Destinations struct {
	// ReviewChannel receives a copy of every review-requested, approved,
	// rejected and closed event, for visibility independent of thread
	// following. Empty disables the copies.
	ReviewChannel string

	// DeployChannel receives post-merge deploy outcomes only.
	// Empty disables deploy announcements.
	DeployChannel string
}

// DispatchResult records the outcome of one outbound message.
type DispatchResult struct {
	Destination string   `json:"destination"`
	Identity    Identity `json:"identity"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
}

// message is one planned outbound delivery.
type message struct {
	destination string
	body        string
	identity    Identity
}

// Router builds and dispatches the message set for each transition.
type Router struct {
	board Board
	dest  Destinations
}

// New creates a router over the given board and project destinations.
func New(board Board, dest Destinations) *Router {
	return &Router{board: board, dest: dest}
}

// OpenThread creates the issue's discussion thread. Bound exclusively to
// the create transition; the returned handle is stored on the issue and
// reused for its lifetime.
func (r *Router) OpenThread(ctx context.Context, issue *types.Issue) (string, error) {
	title := fmt.Sprintf("#%d %s", issue.Number, issue.Title)
	body := fmt.Sprintf("%s · branch %s\n%s", issue.Type, issue.Branch, issue.URL)
	return r.board.CreateThread(ctx, title, body, []string{string(issue.Type)})
}

// Dispatch sends the message set for a committed transition and returns
// one result per delivery attempt. detail carries event-specific text
// (reject/close reason, deploy output). Dispatch never returns an error:
// failures are per-destination results for the caller to surface.
func (r *Router) Dispatch(ctx context.Context, event Event, issue *types.Issue, detail string) []DispatchResult {
	msgs := r.plan(event, issue, detail)

	results := make([]DispatchResult, len(msgs))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range msgs {
		g.Go(func() error {
			err := r.board.PostMessage(ctx, m.destination, m.body, m.identity)
			res := DispatchResult{Destination: m.destination, Identity: m.identity, Success: err == nil}
			if err != nil {
				res.Error = err.Error()
				telemetry.CountDispatchFailure(ctx, m.destination)
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	// Thread lifecycle side effects are bound to the terminal transitions
	// only: archive and resolved tag on merged/closed, nothing else.
	if (event == EventMerged || event == EventClosed) && issue.Thread != "" {
		results = append(results, r.resolveThread(ctx, event, issue)...)
	}
	return results
}

func (r *Router) resolveThread(ctx context.Context, event Event, issue *types.Issue) []DispatchResult {
	var results []DispatchResult
	tagRes := DispatchResult{Destination: issue.Thread, Identity: IdentityObserver, Success: true}
	if err := r.board.ApplyTag(ctx, issue.Thread, "resolved"); err != nil {
		tagRes.Success = false
		tagRes.Error = fmt.Sprintf("apply tag: %v", err)
	}
	results = append(results, tagRes)

	archRes := DispatchResult{Destination: issue.Thread, Identity: IdentityObserver, Success: true}
	if err := r.board.ArchiveThread(ctx, issue.Thread); err != nil {
		archRes.Success = false
		archRes.Error = fmt.Sprintf("archive: %v", err)
	}
	results = append(results, archRes)
	return results
}

// plan builds the outbound message set for one event.
func (r *Router) plan(event Event, issue *types.Issue, detail string) []message {
	var msgs []message
	thread := func(body string, id Identity) {
		if issue.Thread != "" {
			msgs = append(msgs, message{destination: issue.Thread, body: body, identity: id})
		}
	}
	review := func(body string) {
		if r.dest.ReviewChannel != "" {
			msgs = append(msgs, message{destination: r.dest.ReviewChannel, body: body, identity: IdentityObserver})
		}
	}

	n := issue.Number
	switch event {
	case EventCreated:
		thread(fmt.Sprintf("Issue #%d created (%s, branch %s).", n, issue.Type, issue.Branch), IdentityObserver)

	case EventAssigned:
		// The worker is expected to act on this.
		thread(fmt.Sprintf("@%s you are assigned issue #%d. Work on branch %s.", issue.AssignedWorker, n, issue.Branch), IdentityActor)

	case EventReviewRequested:
		thread(fmt.Sprintf("Review requested for issue #%d: PR #%d.", n, issue.PR), IdentityActor)
		review(fmt.Sprintf("PR #%d awaiting review (issue #%d: %s).", issue.PR, n, issue.Title))

	case EventApproved:
		thread(fmt.Sprintf("Issue #%d approved. Merge deferred; run approve --complete to merge PR #%d.", n, issue.PR), IdentityObserver)
		review(fmt.Sprintf("PR #%d approved, merge deferred (issue #%d).", issue.PR, n))

	case EventRejected:
		// Back to the worker: changes requested.
		thread(fmt.Sprintf("@%s changes requested on PR #%d: %s", issue.AssignedWorker, issue.PR, detail), IdentityActor)
		review(fmt.Sprintf("PR #%d rejected (issue #%d): %s", issue.PR, n, detail))

	case EventMerged:
		thread(fmt.Sprintf("Issue #%d merged (PR #%d).", n, issue.PR), IdentityObserver)
		review(fmt.Sprintf("PR #%d merged (issue #%d: %s).", issue.PR, n, issue.Title))

	case EventClosed:
		thread(fmt.Sprintf("Issue #%d closed: %s", n, detail), IdentityObserver)
		review(fmt.Sprintf("Issue #%d closed: %s", n, detail))

	case EventDeployed:
		if r.dest.DeployChannel != "" {
			msgs = append(msgs, message{
				destination: r.dest.DeployChannel,
				body:        fmt.Sprintf("Deploy for issue #%d:\n%s", n, detail),
				identity:    IdentityObserver,
			})
		}
	}
	return msgs
}
