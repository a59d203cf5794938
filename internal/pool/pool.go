// Package pool implements worker selection for newly assignable issues.
//
// Selection is least-loaded with an idle tiebreak: among unpaused workers
// with the minimum active count, the one that has gone longest without a
// new assignment wins. This approximates round-robin fairness under ties
// without storing a rotation pointer.
package pool

import (
	"errors"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

// ErrNoAvailableWorkers is returned when every worker in the roster is paused.
var ErrNoAvailableWorkers = errors.New("no available workers")

// Allocator chooses a worker for an assignable issue.
type Allocator struct {
	roster        []string
	defaultWorker string
}

// New creates an allocator over the project's worker roster. When the
// roster is empty the allocator degenerates to a pool of one: every
// assignment goes to defaultWorker.
func New(roster []string, defaultWorker string) *Allocator {
	return &Allocator{roster: roster, defaultWorker: defaultWorker}
}

// Workers derives the current view of the pool from a store snapshot:
// active counts and last-assignment times from the issues, paused flags
// from the store's worker flags. Roster order is preserved.
func (a *Allocator) Workers(issues []*types.Issue, paused map[string]bool) []*types.Worker {
	roster := a.roster
	if len(roster) == 0 {
		roster = []string{a.defaultWorker}
	}
	workers := make([]*types.Worker, 0, len(roster))
	for _, id := range roster {
		w := &types.Worker{ID: id, Paused: paused[id]}
		for _, iss := range issues {
			if iss.AssignedWorker != id {
				continue
			}
			if iss.CountsAsActive() {
				w.ActiveCount++
			}
			if iss.AssignedAt != nil && (w.LastAssignedAt == nil || iss.AssignedAt.After(*w.LastAssignedAt)) {
				t := *iss.AssignedAt
				w.LastAssignedAt = &t
			}
		}
		workers = append(workers, w)
	}
	return workers
}

// Pick selects the worker to receive a new assignment. The snapshot may
// be milliseconds stale relative to concurrent invocations; that is
// acceptable, a corrupt snapshot is not (the store guards against that).
func (a *Allocator) Pick(issues []*types.Issue, paused map[string]bool) (string, error) {
	if len(a.roster) == 0 {
		// Degenerate pool of size one.
		return a.defaultWorker, nil
	}

	var best *types.Worker
	for _, w := range a.Workers(issues, paused) {
		if w.Paused {
			continue
		}
		if best == nil || w.ActiveCount < best.ActiveCount {
			best = w
			continue
		}
		if w.ActiveCount == best.ActiveCount && olderAssignment(w, best) {
			best = w
		}
	}
	if best == nil {
		return "", ErrNoAvailableWorkers
	}
	return best.ID, nil
}

// olderAssignment reports whether w has been idle longer than current.
// A worker never assigned anything sorts before any timestamp.
func olderAssignment(w, current *types.Worker) bool {
	if w.LastAssignedAt == nil {
		return current.LastAssignedAt != nil
	}
	if current.LastAssignedAt == nil {
		return false
	}
	return w.LastAssignedAt.Before(*current.LastAssignedAt)
}

// Contains reports whether the given worker is part of the pool,
// including the degenerate default worker.
func (a *Allocator) Contains(workerID string) bool {
	if len(a.roster) == 0 {
		return workerID == a.defaultWorker
	}
	for _, id := range a.roster {
		if id == workerID {
			return true
		}
	}
	return false
}
