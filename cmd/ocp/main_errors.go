package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/config"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/lifecycle"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/pool"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/statestore"
)

// Exit codes. Operators and wrappers branch on these, so the mapping is
// part of the command contract.
const (
	exitOK           = 0
	exitError        = 1 // unexpected failure
	exitUsage        = 2 // malformed input, nothing touched
	exitNotFound     = 3 // unknown project or issue, nothing touched
	exitPrecondition = 4 // out-of-sequence transition or no workers, nothing touched
	exitCorrupt      = 5 // state store unreadable
	exitCollaborator = 6 // tracker/board/deployer failure
)

// exitCode maps an error to its exit code.
func exitCode(err error) int {
	var pre *lifecycle.PreconditionError
	var collab *lifecycle.CollaboratorError
	switch {
	case errors.Is(err, statestore.ErrNotFound), errors.Is(err, config.ErrProjectNotFound):
		return exitNotFound
	case errors.As(err, &pre), errors.Is(err, pool.ErrNoAvailableWorkers):
		return exitPrecondition
	case errors.Is(err, statestore.ErrCorrupt):
		return exitCorrupt
	case errors.As(err, &collab):
		return exitCollaborator
	}
	return exitError
}

// fatal prints the error and exits with its mapped code.
func fatal(err error) {
	if jsonOutput {
		_ = json.NewEncoder(os.Stderr).Encode(map[string]string{"error": err.Error()})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// fatalUsage reports malformed command input.
func fatalUsage(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", fmt.Sprintf(format, args...))
	os.Exit(exitUsage)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printResult reports a committed transition. The state always prints;
// failed deliveries are warned about and mapped to the collaborator exit
// code, but the transition stands — it is never both reported as a
// success and silently stripped of its delivery errors.
func printResult(res *lifecycle.Result) {
	if jsonOutput {
		printJSON(res)
	} else {
		fmt.Println(res.Summary)
		fmt.Printf("state: %s\n", res.Issue.State)
		for _, n := range res.Notices {
			if !n.Success {
				fmt.Fprintf(os.Stderr, "Warning: delivery to %s failed: %s\n", n.Destination, n.Error)
			}
		}
	}
	if res.Failed() {
		os.Exit(exitCollaborator)
	}
}
