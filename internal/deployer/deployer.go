// Package deployer runs the project's post-merge deploy steps.
package deployer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultStepTimeout bounds a single deploy step.
const DefaultStepTimeout = 10 * time.Minute

// Shell executes deploy steps as shell commands, sequentially, capturing
// combined output for the deploy announcement. A failing step stops the
// run; output gathered so far is still returned.
type Shell struct {
	Dir         string // working directory, empty for inherited
	StepTimeout time.Duration
}

// New creates a shell deployer rooted at dir.
func New(dir string, stepTimeout time.Duration) *Shell {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &Shell{Dir: dir, StepTimeout: stepTimeout}
}

// Run executes the steps in order and returns their combined output.
func (s *Shell) Run(ctx context.Context, steps []string) (string, error) {
	var out strings.Builder
	for i, step := range steps {
		stepCtx, cancel := context.WithTimeout(ctx, s.StepTimeout)
		cmd := exec.CommandContext(stepCtx, "sh", "-c", step)
		cmd.Dir = s.Dir
		combined, err := cmd.CombinedOutput()
		cancel()

		fmt.Fprintf(&out, "$ %s\n%s", step, combined)
		if err != nil {
			return out.String(), fmt.Errorf("deploy step %d (%s) failed: %w", i+1, step, err)
		}
	}
	return out.String(), nil
}
