package main

import (
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review <issue>",
	Short: "Request review of a PR for an issue",
	Long: `Moves the issue into review with the given PR. Requesting review while
already in review is accepted: the new PR supersedes the old one.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		number := parseIssueNumber(args[0])
		pr, _ := cmd.Flags().GetInt("pr")
		if pr <= 0 {
			fatalUsage("--pr is required")
		}
		engine := newEngine(loadProject())
		res, err := engine.RequestReview(rootCtx, number, pr)
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

func init() {
	reviewCmd.Flags().Int("pr", 0, "Pull request number")
	rootCmd.AddCommand(reviewCmd)
}
