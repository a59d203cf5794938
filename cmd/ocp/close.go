package main

import (
	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close <issue>",
	Short: "Close an issue without merging",
	Long: `Closes an issue from any non-terminal state (duplicate, won't fix,
resolved without code changes). The tracker issue is closed, the board
thread archived and tagged resolved.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		number := parseIssueNumber(args[0])
		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			fatalUsage("--reason is required")
		}
		engine := newEngine(loadProject())
		res, err := engine.Close(rootCtx, number, reason)
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

func init() {
	closeCmd.Flags().String("reason", "", "Why the issue is being closed")
	rootCmd.AddCommand(closeCmd)
}
