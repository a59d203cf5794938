// Package statestore provides the durable per-project issue store.
//
// The backing medium is a single JSON file per project. Every mutation
// takes an exclusive flock on a sidecar lock file, re-reads the file,
// merges the requested field updates, and writes the result via a temp
// file and rename. The lock file (rather than the data file itself) is
// locked so the rename never invalidates a held lock.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

// ErrNotFound is returned when a requested issue does not exist in the store.
var ErrNotFound = errors.New("issue not found")

// ErrCorrupt is returned when the state file exists but cannot be parsed.
// Callers must not treat a corrupt store as empty: doing so would lead to
// duplicate issue creation and duplicate tracker calls.
var ErrCorrupt = errors.New("state file corrupt")

// projectState is the on-disk layout. Issues keep their first-appearance
// order; worker flags hold the only worker attribute the core owns.
type projectState struct {
	Issues  []*types.Issue         `json:"issues"`
	Workers map[string]workerFlags `json:"workers,omitempty"`
}

type workerFlags struct {
	Paused bool `json:"paused,omitempty"`
}

// Store is a durable mapping from issue number to issue record,
// scoped to one project.
type Store struct {
	path     string
	lockPath string
}

// Open returns a store for the given project under dir, creating the
// directory if needed. The state file itself is created lazily on the
// first Apply.
func Open(dir, project string) (*Store, error) {
	if project == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	path := filepath.Join(dir, project+".json")
	return &Store{path: path, lockPath: path + ".lock"}, nil
}

// Path returns the location of the backing state file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the issue with the given number, or ErrNotFound.
func (s *Store) Get(ctx context.Context, number int) (*types.Issue, error) {
	var found *types.Issue
	err := s.withLock(ctx, func(st *projectState) (bool, error) {
		for _, iss := range st.Issues {
			if iss.Number == number {
				found = iss
				return false, nil
			}
		}
		return false, fmt.Errorf("%w: %d", ErrNotFound, number)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List returns all issues in first-appearance order.
func (s *Store) List(ctx context.Context) ([]*types.Issue, error) {
	var issues []*types.Issue
	err := s.withLock(ctx, func(st *projectState) (bool, error) {
		issues = st.Issues
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// Apply merges the given field updates into the issue record, creating
// the record if absent. Keys are the issue's JSON field names; a nil
// value clears the field. Fields not named in updates are never touched,
// so two racing commands can at worst overwrite each other per field,
// not lose a record. The merged record is validated before commit.
func (s *Store) Apply(ctx context.Context, number int, updates map[string]interface{}) (*types.Issue, error) {
	var result *types.Issue
	err := s.withLock(ctx, func(st *projectState) (bool, error) {
		idx := -1
		for i, iss := range st.Issues {
			if iss.Number == number {
				idx = i
				break
			}
		}
		base := &types.Issue{Number: number}
		if idx >= 0 {
			base = st.Issues[idx]
		}

		merged, err := mergeIssue(base, updates)
		if err != nil {
			return false, err
		}
		merged.Number = number
		if err := merged.Validate(); err != nil {
			return false, fmt.Errorf("refusing to store inconsistent issue %d: %w", number, err)
		}

		if idx >= 0 {
			st.Issues[idx] = merged
		} else {
			st.Issues = append(st.Issues, merged)
		}
		result = merged
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WorkerFlags returns the persisted paused flags keyed by worker ID.
func (s *Store) WorkerFlags(ctx context.Context) (map[string]bool, error) {
	flags := make(map[string]bool)
	err := s.withLock(ctx, func(st *projectState) (bool, error) {
		for id, wf := range st.Workers {
			flags[id] = wf.Paused
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return flags, nil
}

// SetWorkerPaused records the paused flag for a worker. Setting the flag
// to its current value is a no-op, which makes pause/resume idempotent.
func (s *Store) SetWorkerPaused(ctx context.Context, workerID string, paused bool) error {
	return s.withLock(ctx, func(st *projectState) (bool, error) {
		if st.Workers == nil {
			st.Workers = make(map[string]workerFlags)
		}
		if st.Workers[workerID].Paused == paused {
			return false, nil
		}
		st.Workers[workerID] = workerFlags{Paused: paused}
		return true, nil
	})
}

// withLock runs fn under the project's exclusive lock. fn receives the
// freshly loaded state and returns whether the state should be written
// back. A missing state file loads as empty; an unparsable one fails
// with ErrCorrupt before fn runs.
func (s *Store) withLock(ctx context.Context, fn func(st *projectState) (dirty bool, err error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lf, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer func() { _ = lf.Close() }()

	if err := flockExclusive(lf); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = flockUnlock(lf) }()

	st, err := s.load()
	if err != nil {
		return err
	}

	dirty, err := fn(st)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	return s.write(st)
}

func (s *Store) load() (*projectState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &projectState{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var st projectState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return &st, nil
}

func (s *Store) write(st *projectState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// mergeIssue applies field-level updates to an issue by round-tripping
// through its JSON representation. This keeps the merge semantics in one
// place: whatever the JSON tags say is a field is what Apply can update.
func mergeIssue(base *types.Issue, updates map[string]interface{}) (*types.Issue, error) {
	raw, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issue: %w", err)
	}
	for k, v := range updates {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	raw, err = json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged issue: %w", err)
	}
	var merged types.Issue
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("invalid field update: %w", err)
	}
	return &merged, nil
}
