package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stormon/stormon/internal/models"
)

var runLoop bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one monitoring cycle (or loop with --loop)",
	Long: `Runs all enabled checks once, persists the results, and sends any
due alerts. The exit code reflects the outcome: 2 when anything is
CRIT, 1 when the worst result is WARN, 0 otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		if runLoop {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a.runner.Loop(ctx)
			return nil
		}

		run := a.runner.RunOnce(cmd.Context())
		printRun(run)
		a.close()
		os.Exit(exitCode(run.OverallStatus))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runLoop, "loop", false, "keep running at the configured interval")
}

// exitCode maps the overall severity to the scriptable exit status.
func exitCode(overall models.Severity) int {
	switch overall {
	case models.SeverityCrit:
		return 2
	case models.SeverityWarn:
		return 1
	default:
		return 0
	}
}

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiGray   = "\033[90m"
)

func colorFor(s models.Severity) string {
	switch s {
	case models.SeverityCrit:
		return ansiRed
	case models.SeverityWarn:
		return ansiYellow
	case models.SeverityOK:
		return ansiGreen
	default:
		return ansiGray
	}
}

func printRun(run *models.Run) {
	fmt.Printf("Run %s on %s\n", run.ID, run.Hostname)
	for _, r := range run.Results {
		name := r.CheckName
		if r.Identifier != "" {
			name += " (" + r.Identifier + ")"
		}
		fmt.Printf("  %s[%-7s]%s %-30s %s\n", colorFor(r.Status), r.Status, ansiReset, name, r.Summary)
	}
	fmt.Printf("Overall: %s%s%s\n", colorFor(run.OverallStatus), run.OverallStatus, ansiReset)
}
