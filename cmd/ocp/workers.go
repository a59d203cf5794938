package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the worker pool",
	Long: `Shows every worker in the roster with its paused flag, active issue
count and last assignment time, derived from a scan of the state store.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		engine := newLocalEngine(loadProject())
		workers, err := engine.Workers(rootCtx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			printJSON(workers)
			return
		}
		for _, w := range workers {
			state := "active"
			if w.Paused {
				state = "paused"
			}
			last := "never"
			if w.LastAssignedAt != nil {
				last = w.LastAssignedAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-20s %-7s %d active, last assigned %s\n", w.ID, state, w.ActiveCount, last)
		}
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <worker>",
	Short: "Exclude a worker from future assignments",
	Long: `Pausing is idempotent and does not touch issues the worker already
holds; only future assign calls skip it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := newLocalEngine(loadProject())
		if err := engine.PauseWorker(rootCtx, args[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("Paused %s\n", args[0])
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <worker>",
	Short: "Re-admit a worker to the assignment pool",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := newLocalEngine(loadProject())
		if err := engine.ResumeWorker(rootCtx, args[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("Resumed %s\n", args[0])
	},
}

func init() {
	workersCmd.AddCommand(pauseCmd)
	workersCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(workersCmd)
}
