package main

import (
	"github.com/spf13/cobra"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/lifecycle"
)

var approveCmd = &cobra.Command{
	Use:   "approve <issue>",
	Short: "Approve an in-review issue",
	Long: `Approves the issue's PR. With auto-merge the PR is merged immediately
and deploy steps run; otherwise the issue parks in approved until
approve --complete delivers the explicit completion signal.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		number := parseIssueNumber(args[0])
		complete, _ := cmd.Flags().GetBool("complete")

		engine := newEngine(loadProject())
		var res *lifecycle.Result
		var err error
		if complete {
			res, err = engine.CompleteMerge(rootCtx, number)
		} else {
			res, err = engine.Approve(rootCtx, number)
		}
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

func init() {
	approveCmd.Flags().Bool("complete", false, "Complete a deferred merge on an approved issue")
	rootCmd.AddCommand(approveCmd)
}
