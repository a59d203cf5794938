package main

import (
	"github.com/spf13/cobra"
)

var rejectCmd = &cobra.Command{
	Use:   "reject <issue>",
	Short: "Request changes on an in-review issue",
	Long: `Rejects the issue's PR with a reason and sends the issue back to its
worker as changes-requested. The worker recorded at assign time keeps
the issue through every review round.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		number := parseIssueNumber(args[0])
		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			fatalUsage("--reason is required")
		}
		engine := newEngine(loadProject())
		res, err := engine.Reject(rootCtx, number, reason)
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

func init() {
	rejectCmd.Flags().String("reason", "", "Why changes are requested")
	rootCmd.AddCommand(rejectCmd)
}
