package lifecycle

import "fmt"

// PreconditionError is returned when a transition is requested from an
// incompatible state. The requested step is out of sequence; nothing has
// been mutated.
type PreconditionError struct {
	Trigger  string
	Expected []string
	Actual   string
}

func (e *PreconditionError) Error() string {
	if len(e.Expected) == 1 {
		return fmt.Sprintf("cannot %s: issue is %s, expected %s", e.Trigger, e.Actual, e.Expected[0])
	}
	return fmt.Sprintf("cannot %s: issue is %s, expected one of %v", e.Trigger, e.Actual, e.Expected)
}

// CollaboratorError wraps a failed tracker, board, drafter or deployer
// call. Committed tells the operator whether the core's own state
// transition was already durably applied before the failing call, i.e.
// whether manual reconciliation is needed versus a plain retry.
type CollaboratorError struct {
	Collaborator string
	Committed    bool
	Err          error
}

func (e *CollaboratorError) Error() string {
	if e.Committed {
		return fmt.Sprintf("%s call failed after state was committed: %v", e.Collaborator, e.Err)
	}
	return fmt.Sprintf("%s call failed, no state was changed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
