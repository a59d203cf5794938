package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init <project>",
	Short: "Create a project configuration skeleton",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo, _ := cmd.Flags().GetString("repo")
		parts := strings.SplitN(repo, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			fatalUsage("--repo must be owner/name (got %q)", repo)
		}
		path, err := config.Init(args[0], parts[0], parts[1])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Initialized project %s\nEdit %s to finish setup.\n", args[0], path)
	},
}

func init() {
	initCmd.Flags().String("repo", "", "Tracker repository as owner/name")
	rootCmd.AddCommand(initCmd)
}
