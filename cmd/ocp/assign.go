package main

import (
	"github.com/spf13/cobra"
)

var assignCmd = &cobra.Command{
	Use:   "assign <issue>",
	Short: "Assign a created issue to the least-loaded worker",
	Long: `Selects the unpaused worker with the fewest active issues; ties go to
the worker idle longest. Assigning an already-assigned issue fails
rather than silently reassigning or re-notifying.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		number := parseIssueNumber(args[0])
		engine := newEngine(loadProject())
		res, err := engine.Assign(rootCtx, number)
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

func init() {
	rootCmd.AddCommand(assignCmd)
}
