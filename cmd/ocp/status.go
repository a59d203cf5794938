package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status [issue]",
	Short: "Show issue status",
	Long: `With an issue number, shows that issue. Without one, lists every issue
in the project in first-appearance order. Never mutates state.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadProject()

		if len(args) == 0 {
			engine := newLocalEngine(cfg)
			issues, err := engine.List(rootCtx)
			if err != nil {
				fatal(err)
			}
			if jsonOutput {
				printJSON(issues)
				return
			}
			for _, iss := range issues {
				fmt.Println(formatIssueLine(iss))
			}
			return
		}

		number := parseIssueNumber(args[0])
		withBody, _ := cmd.Flags().GetBool("body")

		if withBody {
			// Needs the tracker; wire the full engine.
			engine := newEngine(cfg)
			issue, err := engine.Status(rootCtx, number)
			if err != nil {
				fatal(err)
			}
			body, err := engine.IssueBody(rootCtx, number)
			if err != nil {
				fatal(err)
			}
			printIssue(issue)
			if !jsonOutput {
				fmt.Printf("\n%s\n", body)
			}
			return
		}

		engine := newLocalEngine(cfg)
		issue, err := engine.Status(rootCtx, number)
		if err != nil {
			fatal(err)
		}
		printIssue(issue)
	},
}

func printIssue(iss *types.Issue) {
	if jsonOutput {
		printJSON(iss)
		return
	}
	fmt.Println(formatIssueLine(iss))
	if iss.AssignedWorker != "" {
		fmt.Printf("  worker: %s\n", iss.AssignedWorker)
	}
	if iss.PR != 0 {
		fmt.Printf("  pr: #%d\n", iss.PR)
	}
	if iss.Reason != "" {
		fmt.Printf("  reason: %s\n", iss.Reason)
	}
	if iss.URL != "" {
		fmt.Printf("  url: %s\n", iss.URL)
	}
}

func formatIssueLine(iss *types.Issue) string {
	return fmt.Sprintf("#%-5d %-17s %-8s %s  (%s)",
		iss.Number, iss.State, iss.Type, iss.Title, iss.CreatedAt.Format(time.DateOnly))
}

func init() {
	statusCmd.Flags().Bool("body", false, "Also fetch the issue body from the tracker")
	rootCmd.AddCommand(statusCmd)
}
