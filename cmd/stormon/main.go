package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stormon/stormon/internal/alerts"
	"github.com/stormon/stormon/internal/checks"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/database"
	"github.com/stormon/stormon/internal/engine"
	"github.com/stormon/stormon/internal/handlers"
	"github.com/stormon/stormon/internal/logging"
	"github.com/stormon/stormon/internal/runner"
	"github.com/stormon/stormon/internal/storage"
	"gorm.io/gorm"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "stormon",
	Short:   "Storage health monitor for LVM RAID, SMART, filesystems, and kernel logs",
	Version: handlers.Version,
	Long: `stormon periodically probes LVM RAID sync state, SMART attributes,
filesystem capacity, and kernel logs, persists the history, and alerts
via Slack and email when something degrades.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: /config, /etc/stormon, .)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testAlertsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(ackCmd)
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	store  *storage.Store
	runner *runner.Runner
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log, verbose)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	store := storage.New(db)
	eng := engine.New(store, cfg.Alerts.Cooldown())
	notifiers := alerts.FromConfig(cfg.Alerts, cfg.Target.Hostname())
	r := runner.New(cfg, store, eng, buildChecks(cfg, store), notifiers, handlers.Version)

	return &app{cfg: cfg, db: db, store: store, runner: r}, nil
}

func buildChecks(cfg *config.Config, store *storage.Store) []checks.Check {
	return []checks.Check{
		checks.NewLvmCheck(cfg.LVM, store),
		checks.NewSmartCheck(cfg.Smart, store),
		checks.NewFilesystemCheck(cfg.Filesystem),
		checks.NewJournalCheck(cfg.Journal),
	}
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
