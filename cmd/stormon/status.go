package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the latest persisted run without probing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		run, err := a.store.LatestRun()
		if err != nil {
			return fmt.Errorf("failed to load latest run: %w", err)
		}
		if run == nil {
			fmt.Println("No runs recorded yet")
			return nil
		}

		fmt.Printf("Last run: %s (%s)\n", run.FinishedAt.Format("2006-01-02 15:04:05"), run.Hostname)
		printRun(run)

		issues, err := a.store.OpenIssues()
		if err != nil {
			return fmt.Errorf("failed to load open issues: %w", err)
		}
		if len(issues) > 0 {
			fmt.Printf("\nOpen issues:\n")
			for _, issue := range issues {
				fmt.Printf("  %s[%-7s]%s %s (since %s, %d alerts)\n",
					colorFor(issue.CurrentStatus), issue.CurrentStatus, ansiReset,
					issue.Key, issue.LastChangeAt.Format("2006-01-02 15:04"), issue.AlertCount)
			}
		}

		a.close()
		os.Exit(exitCode(run.OverallStatus))
		return nil
	},
}
