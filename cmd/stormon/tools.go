package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	testSlack bool
	testEmail bool
)

var testAlertsCmd = &cobra.Command{
	Use:   "test-alerts",
	Short: "Send a test notification through the configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		var backends []string
		if testSlack {
			backends = append(backends, "slack")
		}
		if testEmail {
			backends = append(backends, "email")
		}

		outcome := a.runner.SendTest(backends...)
		if len(outcome) == 0 {
			fmt.Println("No matching alert backends configured")
			return nil
		}

		failed := false
		for backend, sendErr := range outcome {
			if sendErr != nil {
				failed = true
				fmt.Printf("  %s: FAILED (%v)\n", backend, sendErr)
			} else {
				fmt.Printf("  %s: ok\n", backend)
			}
		}
		if failed {
			return fmt.Errorf("one or more backends failed")
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()
		fmt.Println("Schema up to date")
		return nil
	},
}

var retentionVacuum bool

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Delete history older than the configured retention windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		deleted, err := a.store.RunRetention(a.cfg)
		if err != nil {
			return err
		}
		for table, count := range deleted {
			fmt.Printf("  %s: %d rows deleted\n", table, count)
		}

		if retentionVacuum {
			if err := a.store.Vacuum(); err != nil {
				return fmt.Errorf("vacuum failed: %w", err)
			}
			fmt.Println("Database vacuumed")
		}
		return nil
	},
}

var (
	ackNote  string
	ackBy    string
	ackClear bool
)

var ackCmd = &cobra.Command{
	Use:   "ack <dedup-key>",
	Short: "Acknowledge an issue (mute its alerts) or clear one with --clear",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		key := args[0]

		if ackClear {
			deleted, err := a.store.DeleteAck(key)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("no acknowledgment found for %s", key)
			}
			fmt.Printf("Acknowledgment cleared for %s\n", key)
			return nil
		}

		if err := a.store.SaveAck(key, ackBy, ackNote); err != nil {
			return err
		}
		fmt.Printf("Acknowledged %s, alerts muted until cleared\n", key)
		return nil
	},
}

func init() {
	testAlertsCmd.Flags().BoolVar(&testSlack, "slack", false, "only test the slack backend")
	testAlertsCmd.Flags().BoolVar(&testEmail, "email", false, "only test the email backend")
	retentionCmd.Flags().BoolVar(&retentionVacuum, "vacuum", false, "vacuum the database after cleanup")
	ackCmd.Flags().StringVar(&ackNote, "note", "", "why the issue is acknowledged")
	ackCmd.Flags().StringVar(&ackBy, "by", "cli", "who acknowledges the issue")
	ackCmd.Flags().BoolVar(&ackClear, "clear", false, "clear the acknowledgment instead")
}
