package main

import (
	"github.com/spf13/cobra"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

var createCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create a new issue from a short description",
	Long: `Drafts an issue from the description, creates it on the tracker, opens
its board thread and records it in the state store. The branch name and
the auto-merge flag are fixed at creation for the issue's life.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typ, _ := cmd.Flags().GetString("type")
		autoMerge, _ := cmd.Flags().GetBool("auto-merge")

		issueType := types.IssueType(typ)
		if !issueType.IsValid() {
			fatalUsage("--type must be bug, feature or task (got %q)", typ)
		}

		engine := newEngine(loadProject())
		res, err := engine.Create(rootCtx, issueType, args[0], autoMerge)
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

func init() {
	createCmd.Flags().String("type", "task", "Issue type: bug, feature or task")
	createCmd.Flags().Bool("auto-merge", false, "Merge automatically on approve")
	rootCmd.AddCommand(createCmd)
}
